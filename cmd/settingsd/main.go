// Command settingsd serves business and representative settings, including
// the Do-Not-Disturb lifecycle, and provides admin subcommands.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Strob0t/settingsd/internal/config"
	"github.com/Strob0t/settingsd/internal/logger"
)

var version = "dev"

// CLI is the parsed command line.
var CLI cli

// cli is the kong command tree.
type cli struct {
	Version kong.VersionFlag
	Config  string `help:"YAML config file." type:"path" default:"${config_file}" env:"SETTINGSD_CONFIG"`
	EnvFile string `help:"dotenv file loaded into the environment." default:"${env_file}" name:"env-file"`

	Serve ServeCmd `cmd:"" help:"Run the HTTP API and the DnD expiry scheduler." default:"1"`
	Admin struct {
		ExpireDnd    ExpireDndCmd    `cmd:"" help:"Run one DnD expiry pass now."`
		ShowBusiness ShowBusinessCmd `cmd:"" help:"Print a business's settings."`
		ExtendDnd    ExtendDndCmd    `cmd:"" help:"Extend an active DnD window."`
		Migrate      MigrateCmd      `cmd:"" help:"Apply, roll back or inspect database migrations."`
		RegisterRep  RegisterRepCmd  `cmd:"" help:"Register a representative for a business."`
		GrantSupport GrantSupportCmd `cmd:"" help:"Grant a user the support role."`
	} `cmd:"" help:"Administrative commands."`
}

// appContext is bound into every command's Run method.
type appContext struct {
	cfg *config.Config
	out io.Writer
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("settingsd"),
		kong.Description("Business settings and Do-Not-Disturb service"),
		kong.UsageOnError(),
		kong.Vars{
			"version":     version,
			"config_file": config.DefaultConfigFile,
			"env_file":    config.DefaultEnvFile,
		},
	)

	cfg, err := config.LoadFrom(CLI.Config, CLI.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)

	err = kctx.Run(&appContext{cfg: cfg, out: os.Stdout})
	closeLog.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
