package suggest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
)

// ErrClosed is returned by [Preview] methods after [Preview.Close].
var ErrClosed = errors.New("preview closed")

// Backend fetches the people a preview shows.
type Backend interface {
	FetchSnapshot(ctx context.Context, treeRef string) (*profile.Snapshot, error)
	FetchSummary(ctx context.Context, treeRef string) (*profile.Summary, error)
	FetchSummaryByID(ctx context.Context, profileID string) (*profile.Summary, error)
}

// RelationPreview describes a relationship change as
// "subject —[action relation]→ related". The refs are always set, so both
// ends stay identifiable when a fetch fails.
type RelationPreview struct {
	Action       string           `json:"action"`
	Relation     string           `json:"relation"`
	SubjectRef   string           `json:"subject_ref"`
	Subject      *profile.Summary `json:"subject,omitempty"`
	SubjectError string           `json:"subject_error,omitempty"`
	RelatedRef   string           `json:"related_ref,omitempty"`
	Related      *profile.Summary `json:"related,omitempty"`
	RelatedError string           `json:"related_error,omitempty"`
}

// Previewer opens previews of suggestions.
type Previewer struct {
	backend  Backend
	resolver *refs.Resolver
	logger   *log.Logger
}

// PreviewerOption configures a [Previewer].
type PreviewerOption func(*Previewer)

// WithLogger sets the previewer's logger.
func WithLogger(l *log.Logger) PreviewerOption {
	return func(p *Previewer) { p.logger = l }
}

// NewPreviewer creates a previewer that fetches people from backend and
// resolves references with resolver.
func NewPreviewer(backend Backend, resolver *refs.Resolver, opts ...PreviewerOption) *Previewer {
	p := &Previewer{backend: backend, resolver: resolver}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	return p
}

// Preview is one open preview dialog. It owns its label table and its
// lookups; Close abandons both.
//
// Preview is safe for concurrent use.
type Preview struct {
	suggestion Suggestion
	logger     *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	labels   *refs.Labels
	resolved chan struct{}

	mu          sync.Mutex
	closed      bool
	snapshot    *profile.Snapshot
	snapshotErr error
	patch       Patch
	result      *Result
	relation    *RelationPreview
	report      refs.Report
}

// Open starts a preview of s.
//
// For an update suggestion it fetches the current profile and computes a
// first diff with raw reference ids, then resolves references in the
// background; [Preview.Wait] blocks until they are in. For a relationship
// suggestion it fetches both people concurrently.
//
// Fetch failures never fail Open; they are reported per panel. Open returns
// an error only for a suggestion it cannot preview at all.
func (p *Previewer) Open(ctx context.Context, s Suggestion) (*Preview, error) {
	if !s.Type.Known() {
		return nil, rlerrors.New(rlerrors.ErrCodeUnsupported, "cannot preview suggestion type %q", s.Type)
	}
	if s.ProfileTreeRef == "" {
		return nil, rlerrors.New(rlerrors.ErrCodeInvalidInput, "suggestion %s names no profile", s.ID)
	}

	pctx, cancel := context.WithCancel(ctx)
	pv := &Preview{
		suggestion: s,
		logger:     p.logger.With("suggestion", s.ID),
		ctx:        pctx,
		cancel:     cancel,
		labels:     refs.NewLabels(),
		resolved:   make(chan struct{}),
	}

	if s.Type.IsFamily() {
		if err := p.openRelation(pv); err != nil {
			cancel()
			return nil, err
		}
		close(pv.resolved)
		return pv, nil
	}

	patch, err := s.Patch()
	if err != nil {
		cancel()
		return nil, rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "suggestion %s", s.ID)
	}
	pv.patch = patch

	snap, err := p.backend.FetchSnapshot(pctx, s.ProfileTreeRef)
	if err == nil && snap == nil {
		err = rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", s.ProfileTreeRef)
	}
	if err != nil {
		pv.logger.Warn("profile fetch failed", "ref", s.ProfileTreeRef, "err", err)
		pv.snapshotErr = err
		close(pv.resolved)
		return pv, nil
	}
	pv.snapshot = snap

	if err := pv.Recompute(); err != nil {
		cancel()
		return nil, rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "suggestion %s", s.ID)
	}

	keys := append(snap.RefKeys(), patch.RefKeys()...)
	go func() {
		defer close(pv.resolved)
		report, err := p.resolver.Resolve(pctx, keys, pv.labels)
		if err != nil {
			return
		}
		pv.mu.Lock()
		pv.report = report
		pv.mu.Unlock()
		_ = pv.Recompute()
	}()
	return pv, nil
}

func (p *Previewer) openRelation(pv *Preview) error {
	s := pv.suggestion
	related, err := s.Related()
	if err != nil {
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidInput, err, "suggestion %s", s.ID)
	}

	rel := &RelationPreview{
		Action:     s.Type.Action(),
		Relation:   s.Type.Relation(),
		SubjectRef: s.ProfileTreeRef,
		RelatedRef: related.String(),
	}

	g, gctx := errgroup.WithContext(pv.ctx)
	g.Go(func() error {
		sum, err := p.backend.FetchSummary(gctx, s.ProfileTreeRef)
		if err == nil && sum == nil {
			err = rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", s.ProfileTreeRef)
		}
		if err != nil {
			pv.logger.Warn("subject fetch failed", "ref", s.ProfileTreeRef, "err", err)
			rel.SubjectError = rlerrors.UserMessage(err)
			return nil
		}
		rel.Subject = sum
		return nil
	})
	g.Go(func() error {
		var (
			sum *profile.Summary
			err error
		)
		switch {
		case related.TreeRef != "":
			sum, err = p.backend.FetchSummary(gctx, related.TreeRef)
		case related.ProfileID != "":
			sum, err = p.backend.FetchSummaryByID(gctx, related.ProfileID)
		default:
			err = rlerrors.New(rlerrors.ErrCodeInvalidInput, "suggestion names no related person")
		}
		if err == nil && sum == nil {
			err = rlerrors.New(rlerrors.ErrCodeProfileNotFound, "related person %s not found", related)
		}
		if err != nil {
			pv.logger.Warn("related person fetch failed", "related", related.String(), "err", err)
			rel.RelatedError = rlerrors.UserMessage(err)
			return nil
		}
		rel.Related = sum
		return nil
	})
	_ = g.Wait()

	pv.relation = rel
	return nil
}

// Wait blocks until reference resolution has finished or ctx is done.
func (pv *Preview) Wait(ctx context.Context) error {
	select {
	case <-pv.resolved:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolving reports whether reference lookups are still in flight.
func (pv *Preview) Resolving() bool {
	select {
	case <-pv.resolved:
		return false
	default:
		return true
	}
}

// Recompute re-runs the diff against the labels resolved so far. Rows keep
// their order and only unresolved labels change, with one exception: a row
// whose sides differ only by reference ids drops out once those ids resolve
// to the same label. Callers that must not see rows vanish should wait for
// [Preview.Resolving] to report false.
func (pv *Preview) Recompute() error {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	if pv.closed {
		return ErrClosed
	}
	if pv.snapshot == nil {
		return nil
	}
	res, err := Diff(*pv.snapshot, pv.patch, pv.labels)
	if err != nil {
		return err
	}
	pv.result = &res
	return nil
}

// State is a point-in-time copy of a preview, shaped for rendering.
type State struct {
	SuggestionID   string           `json:"suggestion_id"`
	Type           Type             `json:"type"`
	ProfileTreeRef string           `json:"profile_tree_ref"`
	Rows           []Row            `json:"rows,omitempty"`
	NoChanges      bool             `json:"no_changes"`
	Ignored        []string         `json:"ignored,omitempty"`
	SnapshotError  string           `json:"snapshot_error,omitempty"`
	Relation       *RelationPreview `json:"relation,omitempty"`
	Resolving      bool             `json:"resolving"`
	FailedLookups  int              `json:"failed_lookups,omitempty"`
}

// State returns the current preview. NoChanges is only reported once
// references are resolved. While Resolving is set, Rows may still shrink;
// see [Preview.Recompute].
func (pv *Preview) State() State {
	resolving := pv.Resolving()

	pv.mu.Lock()
	defer pv.mu.Unlock()
	st := State{
		SuggestionID:   pv.suggestion.ID,
		Type:           pv.suggestion.Type,
		ProfileTreeRef: pv.suggestion.ProfileTreeRef,
		Relation:       pv.relation,
		Resolving:      resolving,
		FailedLookups:  pv.report.Failed,
	}
	if pv.snapshotErr != nil {
		st.SnapshotError = rlerrors.UserMessage(pv.snapshotErr)
	}
	if pv.result != nil {
		st.Rows = append([]Row(nil), pv.result.Rows...)
		st.NoChanges = pv.result.NoChanges && !resolving
		st.Ignored = pv.result.Ignored
	}
	return st
}

// Result returns the latest diff, if the profile was fetched.
func (pv *Preview) Result() (Result, bool) {
	pv.mu.Lock()
	defer pv.mu.Unlock()
	if pv.result == nil {
		return Result{}, false
	}
	return *pv.result, true
}

// Labels returns the preview's label table.
func (pv *Preview) Labels() *refs.Labels { return pv.labels }

// Suggestion returns the previewed suggestion.
func (pv *Preview) Suggestion() Suggestion { return pv.suggestion }

// Close abandons in-flight lookups and clears the label table. Lookups that
// complete afterwards are dropped.
func (pv *Preview) Close() {
	pv.mu.Lock()
	if pv.closed {
		pv.mu.Unlock()
		return
	}
	pv.closed = true
	pv.mu.Unlock()

	pv.cancel()
	pv.labels.Reset()
}

func (pv *Preview) String() string {
	return fmt.Sprintf("preview %s (%s)", pv.suggestion.ID, pv.suggestion.Type)
}
