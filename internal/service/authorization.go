package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/settingsd/internal/port/directory"
)

// AuthorizationPolicy decides who may mutate which settings. It asks the
// representative directory and fails closed: a lookup error or an unresolved
// parent denies.
type AuthorizationPolicy struct {
	dir directory.Directory
}

// NewAuthorizationPolicy creates a policy backed by the given directory.
func NewAuthorizationPolicy(dir directory.Directory) *AuthorizationPolicy {
	return &AuthorizationPolicy{dir: dir}
}

// CanModifyBusinessSettings reports whether actorRepID is the parent
// representative of businessID.
func (p *AuthorizationPolicy) CanModifyBusinessSettings(ctx context.Context, actorRepID, businessID string) bool {
	if actorRepID == "" || businessID == "" {
		return false
	}
	parent, found, err := p.dir.ParentRepresentative(ctx, businessID)
	if err != nil {
		slog.Warn("parent representative lookup failed, denying",
			"business_id", businessID, "actor_id", actorRepID, "error", err)
		return false
	}
	if !found {
		slog.Warn("business has no parent representative, denying",
			"business_id", businessID, "actor_id", actorRepID)
		return false
	}
	return parent == actorRepID
}

// CanModifyRepSettings reports whether actorRepID may write targetRepID's
// settings. Representatives may only write their own.
func (p *AuthorizationPolicy) CanModifyRepSettings(actorRepID, targetRepID string) bool {
	return actorRepID != "" && actorRepID == targetRepID
}

// IsSupportActor reports whether the user holds the support role.
func (p *AuthorizationPolicy) IsSupportActor(ctx context.Context, actorUserID string) bool {
	if actorUserID == "" {
		return false
	}
	ok, err := p.dir.IsSupportActor(ctx, actorUserID)
	if err != nil {
		slog.Warn("support role lookup failed, denying", "actor_id", actorUserID, "error", err)
		return false
	}
	return ok
}

// CanUpdateBusiness combines the parent check with the support override that
// applies to business settings updates.
func (p *AuthorizationPolicy) CanUpdateBusiness(ctx context.Context, actorID, businessID string) bool {
	return p.CanModifyBusinessSettings(ctx, actorID, businessID) || p.IsSupportActor(ctx, actorID)
}
