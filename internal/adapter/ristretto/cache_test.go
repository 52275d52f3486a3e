package ristretto_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/settingsd/internal/adapter/ristretto"
	"github.com/Strob0t/settingsd/internal/port/cache"
)

var _ cache.Cache = (*ristretto.Cache)(nil)

func TestCacheSetGetDelete(t *testing.T) {
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if _, found, _ := c.Get(ctx, "parent/biz-1"); found {
		t.Fatal("expected miss on empty cache")
	}

	if err := c.Set(ctx, "parent/biz-1", []byte(`{"id":"rep-1","found":true}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, "parent/biz-1")
	if err != nil || !found {
		t.Fatalf("expected hit, got found=%v err=%v", found, err)
	}
	if string(val) != `{"id":"rep-1","found":true}` {
		t.Fatalf("unexpected value %s", val)
	}

	_ = c.Delete(ctx, "parent/biz-1")
	if _, found, _ := c.Get(ctx, "parent/biz-1"); found {
		t.Fatal("expected miss after Delete")
	}
}
