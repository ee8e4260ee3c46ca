// Package session holds the identity of whoever is looking at a tree or
// moderating a suggestion.
//
// The backend remains the authority on permissions. rootline only uses the
// [Viewer] to decide which mutation controls to offer, for instance whether
// a picture upload is allowed for a given person.
//
// Sessions are kept in a [Store]:
//   - [FileStore]: JSON files under ~/.config/rootline/sessions, for the CLI
//   - [RedisStore]: shared storage for `rootline serve` deployments
//
// # Usage
//
//	sess := session.New(token, session.Viewer{ID: "u42"}, session.DefaultTTL)
//	if err := store.Set(ctx, sess); err != nil {
//	    return err
//	}
//
//	sess, err := store.Get(ctx, id)
//	if err != nil {
//	    return err
//	}
//	if sess == nil {
//	    // not logged in, or expired
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrExpired is returned when storing a session whose expiry has passed.
var ErrExpired = errors.New("session expired")

// DefaultTTL is the default session duration.
const DefaultTTL = 30 * 24 * time.Hour

// Viewer identifies the account using rootline.
type Viewer struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Moderator bool   `json:"moderator"`
}

// CanEdit reports whether the viewer may change a person owned by ownerID.
// Moderators may edit anyone; an anonymous viewer may edit no one.
func (v Viewer) CanEdit(ownerID string) bool {
	if v.Moderator {
		return true
	}
	return v.ID != "" && v.ID == ownerID
}

// Anonymous reports whether the viewer is not logged in.
func (v Viewer) Anonymous() bool { return v.ID == "" }

// Session stores a viewer's API token.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Viewer    Viewer    `json:"viewer"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// New creates a session with a fresh random id.
func New(token string, viewer Viewer, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Token:     token,
		Viewer:    viewer,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// Store persists sessions. Get returns nil, nil for a missing or expired
// session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Set(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}
