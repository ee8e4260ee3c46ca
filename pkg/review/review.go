// Package review records moderator decisions on suggestions.
//
// The backend applies a decision; rootline keeps its own ledger of who
// decided what, for audit. A suggestion is decided at most once, which every
// [Store] enforces.
//
// [Service.Decide] is the full decide flow: load the suggestion, check the
// transition, send the decision to the backend, then record it.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/session"
	"github.com/rootline/rootline/pkg/suggest"
)

// ErrAlreadyDecided is returned by [Store.Record] when the suggestion already
// has a decision.
var ErrAlreadyDecided = errors.New("decision already recorded")

// Decision is one moderator decision.
type Decision struct {
	SuggestionID string         `json:"suggestion_id" bson:"suggestion_id"`
	Status       suggest.Status `json:"status" bson:"status"`
	ModeratorID  string         `json:"moderator_id" bson:"moderator_id"`
	Note         string         `json:"note,omitempty" bson:"note,omitempty"`
	DecidedAt    time.Time      `json:"decided_at" bson:"decided_at"`
}

// Store is the decision ledger.
type Store interface {
	// Record stores d. It returns ErrAlreadyDecided if the suggestion
	// already has a decision.
	Record(ctx context.Context, d Decision) error

	// Get returns the decision for a suggestion, or nil if there is none.
	Get(ctx context.Context, suggestionID string) (*Decision, error)

	// List returns the most recent decisions, newest first.
	List(ctx context.Context, limit int) ([]Decision, error)

	Close(ctx context.Context) error
}

// Backend loads suggestions and applies decisions.
type Backend interface {
	Suggestion(ctx context.Context, id string) (*suggest.Suggestion, error)
	SubmitDecision(ctx context.Context, id string, status suggest.Status, note string) error
}

// Service runs the decide flow against a backend and a ledger.
type Service struct {
	Backend Backend
	Store   Store
	Logger  *log.Logger
	Now     func() time.Time
}

// Decide approves or rejects suggestion id on behalf of viewer.
func (s *Service) Decide(ctx context.Context, viewer session.Viewer, id string, status suggest.Status, note string) (*Decision, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	if !viewer.Moderator {
		return nil, rlerrors.New(rlerrors.ErrCodeForbidden, "only moderators may decide suggestions")
	}
	if prev, err := s.Store.Get(ctx, id); err != nil {
		return nil, rlerrors.Wrap(rlerrors.ErrCodeInternal, err, "read decision ledger")
	} else if prev != nil {
		return nil, rlerrors.New(rlerrors.ErrCodeConflict, "suggestion %s was already %s by %s", id, prev.Status, prev.ModeratorID)
	}

	sug, err := s.Backend.Suggestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if sug == nil {
		return nil, rlerrors.New(rlerrors.ErrCodeSuggestionNotFound, "suggestion %s not found", id)
	}
	if err := sug.Decide(status); err != nil {
		switch {
		case errors.Is(err, suggest.ErrAlreadyDecided):
			return nil, rlerrors.Wrap(rlerrors.ErrCodeConflict, err, "suggestion %s is already %s", id, sug.Status)
		default:
			return nil, rlerrors.Wrap(rlerrors.ErrCodeInvalidStatus, err, "cannot decide %s", id)
		}
	}

	if err := s.Backend.SubmitDecision(ctx, id, status, note); err != nil {
		return nil, err
	}

	d := Decision{
		SuggestionID: id,
		Status:       status,
		ModeratorID:  viewer.ID,
		Note:         note,
		DecidedAt:    now().UTC(),
	}
	if err := s.Store.Record(ctx, d); err != nil {
		// The backend already accepted the decision; the ledger is best effort.
		logger.Error("decision not recorded", "suggestion", id, "err", err)
		return &d, nil
	}
	logger.Info("suggestion decided", "suggestion", id, "status", status, "moderator", viewer.ID)
	return &d, nil
}

func (d Decision) String() string {
	return fmt.Sprintf("%s %s by %s at %s", d.SuggestionID, d.Status, d.ModeratorID, d.DecidedAt.Format(time.RFC3339))
}
