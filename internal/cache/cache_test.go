package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "test"), mr
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestSetNXWinsOnce(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	won, err := c.SetNX(ctx, "lock", []byte("a"), time.Minute)
	if err != nil || !won {
		t.Fatalf("first SetNX should win, got won=%v err=%v", won, err)
	}
	won, err = c.SetNX(ctx, "lock", []byte("b"), time.Minute)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if won {
		t.Fatal("second SetNX must not win")
	}
	got, err := c.Get(ctx, "lock")
	if err != nil || string(got) != "a" {
		t.Fatalf("expected first write to stick, got %q err=%v", got, err)
	}
}

func TestDeletePattern(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"authz:resolution:u1", "authz:resolution:u2", "authz:hierarchy:u1", "other"} {
		if err := c.Set(ctx, k, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := c.DeletePattern(ctx, "authz:resolution:*"); err != nil {
		t.Fatalf("DeletePattern: %v", err)
	}
	for _, k := range []string{"authz:resolution:u1", "authz:resolution:u2"} {
		if _, err := c.Get(ctx, k); !errors.Is(err, ErrMiss) {
			t.Fatalf("expected %s evicted, got %v", k, err)
		}
	}
	for _, k := range []string{"authz:hierarchy:u1", "other"} {
		if _, err := c.Get(ctx, k); err != nil {
			t.Fatalf("expected %s retained, got %v", k, err)
		}
	}
}

func TestJSONHelpers(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := payload{Name: "boards", Count: 3}
	if err := c.SetJSON(ctx, "p", in, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out payload
	if err := c.GetJSON(ctx, "p", &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestBackendDownSurfacesError(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	_, err := c.Get(ctx, "k")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("expected backend error, got %v", err)
	}
}
