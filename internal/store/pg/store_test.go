package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"teamboard.io/internal/authz"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, email, name, password_hash").
		WithArgs("u1@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "direct_profile_id", "first_login", "created_at", "updated_at"}).
			AddRow("u1", "u1@example.com", "User One", "$2a$10$hash", "p1", false, now, now))

	user, err := store.UserByEmail(context.Background(), "u1@example.com")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if user.ID != "u1" || user.DirectProfileID != "p1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, email, name, password_hash").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "direct_profile_id", "first_login", "created_at", "updated_at"}))

	_, err := store.User(context.Background(), "missing")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfilePermissions(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT p.id, p.name, p.category").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}).
			AddRow("perm-edit", "EditBoards", "boards").
			AddRow("perm-view", "ViewBoards", "boards"))

	perms, err := store.ProfilePermissions(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ProfilePermissions: %v", err)
	}
	if len(perms) != 2 || perms[0].Name != "EditBoards" || perms[1].Name != "ViewBoards" {
		t.Fatalf("unexpected permissions: %+v", perms)
	}
}

func TestTeamsForUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT t.id, t.name, ut.role").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}).
			AddRow("t1", "Platform", "member"))

	memberships, err := store.TeamsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("TeamsForUser: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Team.Name != "Platform" || memberships[0].Role != "member" {
		t.Fatalf("unexpected memberships: %+v", memberships)
	}
}

func TestTeamMemberIDs(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT user_id").
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	ids, err := store.TeamMemberIDs(context.Background(), "t1")
	if err != nil {
		t.Fatalf("TeamMemberIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" || ids[1] != "u2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestSetUserProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE users").
		WithArgs("u1", "p2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetUserProfile(context.Background(), "u1", "p2"); err != nil {
		t.Fatalf("SetUserProfile: %v", err)
	}

	mock.ExpectExec("UPDATE users").
		WithArgs("missing", "p2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetUserProfile(context.Background(), "missing", "p2")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRemoveTeamMemberNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM user_teams").
		WithArgs("u1", "t9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.RemoveTeamMember(context.Background(), "u1", "t9")
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetProfilePermissionsReplacesInTx(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM profile_permissions").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO profile_permissions").
		WithArgs("p1", "perm-view").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO profile_permissions").
		WithArgs("p1", "perm-edit").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.SetProfilePermissions(context.Background(), "p1", []string{"perm-view", "perm-edit"})
	if err != nil {
		t.Fatalf("SetProfilePermissions: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSetProfilePermissionsRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM profile_permissions").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO profile_permissions").
		WithArgs("p1", "perm-view").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.SetProfilePermissions(context.Background(), "p1", []string{"perm-view"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
