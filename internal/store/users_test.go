package store

import (
	"context"
	"testing"
	"time"

	"github.com/whazzaudio/api/internal/model"
)

func TestUserStore_CreateEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestRedis(t))

	first := &model.User{Email: "a@example.com", Username: "alice", IsActive: true, CreatedAt: time.Now()}
	if err := users.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	dupEmail := &model.User{Email: "A@Example.com", Username: "other", CreatedAt: time.Now()}
	if err := users.Create(ctx, dupEmail); err != ErrConflict {
		t.Errorf("expected ErrConflict for duplicate email, got %v", err)
	}

	dupName := &model.User{Email: "b@example.com", Username: "Alice", CreatedAt: time.Now()}
	if err := users.Create(ctx, dupName); err != ErrConflict {
		t.Errorf("expected ErrConflict for duplicate username, got %v", err)
	}

	// The rolled-back email must be reusable.
	retry := &model.User{Email: "b@example.com", Username: "bob", CreatedAt: time.Now()}
	if err := users.Create(ctx, retry); err != nil {
		t.Errorf("expected email to be free after rollback, got %v", err)
	}
}

func TestUserStore_GetByEmail(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestRedis(t))

	user := &model.User{Email: "a@example.com", Username: "alice", IsActive: true, CreatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := users.GetByEmail(ctx, "A@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != user.ID || got.Username != "alice" {
		t.Errorf("unexpected user %+v", got)
	}

	if _, err := users.GetByEmail(ctx, "missing@example.com"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserStore_SetActive(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestRedis(t))

	user := &model.User{Email: "a@example.com", Username: "alice", IsActive: true, CreatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	got, err := users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Error("expected user to be inactive")
	}
}

func TestUserStore_ListSearch(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestRedis(t))

	for _, u := range []*model.User{
		{Email: "alice@example.com", Username: "alice", CreatedAt: time.Now()},
		{Email: "bob@example.com", Username: "bob", CreatedAt: time.Now().Add(time.Second)},
	} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	matches, err := users.List(ctx, 0, 10, "ali")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matches) != 1 || matches[0].Username != "alice" {
		t.Errorf("expected only alice, got %d users", len(matches))
	}

	all, err := users.List(ctx, 0, 10, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].Username != "bob" {
		t.Errorf("expected newest-first listing, got %d users", len(all))
	}
}

func TestUserStore_DeleteFreesIdentifiers(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(newTestRedis(t))

	user := &model.User{Email: "a@example.com", Username: "alice", CreatedAt: time.Now()}
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.Delete(ctx, user); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := users.Get(ctx, user.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	replacement := &model.User{Email: "a@example.com", Username: "alice", CreatedAt: time.Now()}
	if err := users.Create(ctx, replacement); err != nil {
		t.Errorf("expected identifiers to be free after delete, got %v", err)
	}
}
