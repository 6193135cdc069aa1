package authz

import (
	"context"
	"errors"
	"testing"
)

func TestPermissionSetChecks(t *testing.T) {
	set := NewPermissionSet("ViewBoards", "EditBoards")

	if !set.Has("ViewBoards") {
		t.Fatal("expected ViewBoards")
	}
	if set.Has("DeleteBoards") {
		t.Fatal("unexpected DeleteBoards")
	}
	if !set.HasAny("DeleteBoards", "EditBoards") {
		t.Fatal("expected HasAny to match EditBoards")
	}
	if set.HasAny("DeleteBoards", "ManageUsers") {
		t.Fatal("HasAny must not match")
	}
	if !set.HasAll("ViewBoards", "EditBoards") {
		t.Fatal("expected HasAll to pass")
	}
	if set.HasAll("ViewBoards", "DeleteBoards") {
		t.Fatal("HasAll must fail on a missing permission")
	}
}

func TestRequireNamesMissingPermission(t *testing.T) {
	set := NewPermissionSet("ViewBoards")

	if err := set.Require("ViewBoards"); err != nil {
		t.Fatalf("unexpected denial: %v", err)
	}

	err := set.Require("DeleteBoards")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.Permission != "DeleteBoards" {
		t.Fatalf("denial must carry the missing permission, got %v", err)
	}
}

func TestRequireAny(t *testing.T) {
	set := NewPermissionSet("EditBoards")

	if err := set.RequireAny("ViewBoards", "EditBoards"); err != nil {
		t.Fatalf("unexpected denial: %v", err)
	}
	err := set.RequireAny("ViewBoards", "DeleteBoards")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
}

func TestAuthContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := AuthFromContext(ctx); ok {
		t.Fatal("empty context must hold no auth")
	}

	ac := AuthContext{
		UserID:      "u1",
		Email:       "u1@example.com",
		ProfileID:   "p1",
		Permissions: NewPermissionSet("ViewBoards"),
	}
	got, ok := AuthFromContext(ContextWithAuth(ctx, ac))
	if !ok {
		t.Fatal("expected auth context")
	}
	if got.UserID != "u1" || !got.Permissions.Has("ViewBoards") {
		t.Fatalf("unexpected auth context: %+v", got)
	}
}
