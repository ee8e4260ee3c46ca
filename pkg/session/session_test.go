package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestViewerCanEdit(t *testing.T) {
	tests := []struct {
		name   string
		viewer Viewer
		owner  string
		want   bool
	}{
		{"moderator", Viewer{ID: "u1", Moderator: true}, "u2", true},
		{"owner", Viewer{ID: "u2"}, "u2", true},
		{"someone else", Viewer{ID: "u1"}, "u2", false},
		{"anonymous", Viewer{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.viewer.CanEdit(tt.owner); got != tt.want {
				t.Errorf("CanEdit(%q) = %v, want %v", tt.owner, got, tt.want)
			}
		})
	}
}

func TestNewSession(t *testing.T) {
	a := New("tok", Viewer{ID: "u1"}, time.Hour)
	b := New("tok", Viewer{ID: "u1"}, time.Hour)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids %q and %q should be unique", a.ID, b.ID)
	}
	if a.IsExpired() {
		t.Error("fresh session is expired")
	}
	if !New("tok", Viewer{}, -time.Second).IsExpired() {
		t.Error("negative ttl should be expired")
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	sess := New("tok", Viewer{ID: "u1", Name: "Maria"}, time.Hour)
	if err := store.Set(ctx, sess); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Token != "tok" || got.Viewer.Name != "Maria" {
		t.Errorf("Get = %+v", got)
	}

	info, err := os.Stat(filepath.Join(dir, sess.ID+".json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Get(ctx, sess.ID); got != nil {
		t.Error("Get after Delete should be nil")
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStoreExpired(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(dir)

	sess := New("tok", Viewer{ID: "u1"}, -time.Minute)
	if err := store.SetCurrent(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if got, err := store.Current(ctx); got != nil || err != nil {
		t.Errorf("Current = %v, %v, want logged out", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, sess.ID+".json")); !os.IsNotExist(err) {
		t.Error("expired session file should be removed on read")
	}
}

func TestFileStoreCurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := NewFileStore(t.TempDir())

	if got, err := store.Current(ctx); got != nil || err != nil {
		t.Fatalf("Current before login = %v, %v", got, err)
	}
	if err := store.ClearCurrent(ctx); err != nil {
		t.Fatalf("ClearCurrent while logged out: %v", err)
	}

	first := New("one", Viewer{ID: "u1"}, time.Hour)
	second := New("two", Viewer{ID: "u2"}, time.Hour)
	_ = store.SetCurrent(ctx, first)
	_ = store.SetCurrent(ctx, second)

	got, err := store.Current(ctx)
	if err != nil || got == nil || got.ID != second.ID {
		t.Fatalf("Current = %v, %v, want %s", got, err, second.ID)
	}

	if err := store.ClearCurrent(ctx); err != nil {
		t.Fatalf("ClearCurrent: %v", err)
	}
	if got, _ := store.Current(ctx); got != nil {
		t.Error("still logged in after ClearCurrent")
	}
	if got, _ := store.Get(ctx, second.ID); got != nil {
		t.Error("ClearCurrent should delete the session")
	}
	if got, _ := store.Get(ctx, first.ID); got == nil {
		t.Error("ClearCurrent should leave other sessions alone")
	}
}

func TestFileStoreIDCannotEscape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, _ := NewFileStore(filepath.Join(dir, "sessions"))

	sess := New("tok", Viewer{}, time.Hour)
	sess.ID = "../escape"
	if err := store.Set(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.json")); !os.IsNotExist(err) {
		t.Error("session written outside the store directory")
	}
	if got, _ := store.Get(ctx, "../escape"); got == nil {
		t.Error("session not readable by its id")
	}
}

func TestRedisStoreRejectsExpired(t *testing.T) {
	store := NewRedisStore(nil)
	err := store.Set(context.Background(), New("tok", Viewer{}, -time.Second))
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Set(expired) = %v, want ErrExpired", err)
	}
}
