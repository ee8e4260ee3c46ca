package tree

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/observability"
	"github.com/rootline/rootline/pkg/session"
)

var (
	// ErrSuperseded is returned by [View.Load] when a newer load replaced it
	// before it finished. Its result was discarded.
	ErrSuperseded = errors.New("traversal superseded by a newer request")

	// ErrClosed is returned by [View] methods after [View.Close].
	ErrClosed = errors.New("view closed")
)

// Fetcher fetches traversals from the backend.
type Fetcher interface {
	FetchTraversal(ctx context.Context, req Request) (*Traversal, error)
}

// PictureUploader stores a new picture for a person and returns its URL.
type PictureUploader interface {
	UploadPicture(ctx context.Context, ref, filename string, image io.Reader) (string, error)
}

// Centerer is the renderer callback that scrolls an appearance into view.
type Centerer interface {
	Center(id string)
}

// CentererFunc adapts a function to [Centerer].
type CentererFunc func(id string)

// Center calls f(id).
func (f CentererFunc) Center(id string) { f(id) }

// State is the lifecycle state of a [View].
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
	StateFailed  State = "failed"
)

// Status is a point-in-time copy of a view's state. Graph is nil unless
// State is [StateReady]; Err is set for [StateEmpty] and [StateFailed].
type Status struct {
	State   State
	Request Request
	Graph   *Graph
	Err     error
}

// View is one tree rendering session.
//
// Load supersedes any load still in flight for the same view: the older
// fetch is cancelled and its result is never published. Failed or empty loads
// leave an explicit state and are not retried. Close abandons everything;
// results that arrive afterwards are dropped.
//
// View is safe for concurrent use.
type View struct {
	fetcher  Fetcher
	uploader PictureUploader
	centerer Centerer
	logger   *log.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
	status Status
	hopper *Hopper
}

// ViewOption configures a [View].
type ViewOption func(*View)

// WithUploader sets the picture uploader used by [View.UploadPicture].
func WithUploader(u PictureUploader) ViewOption {
	return func(v *View) { v.uploader = u }
}

// WithCenterer sets the renderer callback used by [View.Hop].
func WithCenterer(c Centerer) ViewOption {
	return func(v *View) { v.centerer = c }
}

// WithLogger sets the view's logger.
func WithLogger(l *log.Logger) ViewOption {
	return func(v *View) { v.logger = l }
}

// NewView creates an idle view that loads traversals through f.
func NewView(f Fetcher, opts ...ViewOption) *View {
	v := &View{
		fetcher: f,
		status:  Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = log.Default()
	}
	return v
}

// Load fetches the traversal for req and publishes it.
//
// It returns [ErrSuperseded] when a later Load started first, [ErrClosed]
// after Close, [ErrEmptyTraversal] for an empty response, or the fetch or
// build error. In the last two cases the view is left in
// [StateEmpty] or [StateFailed].
func (v *View) Load(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.cancel != nil {
		v.cancel()
		observability.Tree().OnTraversalSuperseded(ctx, v.status.Request.RootRef)
	}
	v.gen++
	gen := v.gen
	loadCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.status = Status{State: StateLoading, Request: req}
	v.mu.Unlock()

	defer cancel()

	start := time.Now()
	observability.Tree().OnTraversalStart(ctx, req.RootRef)
	t, err := v.fetcher.FetchTraversal(loadCtx, req)

	var g *Graph
	switch {
	case err == nil && t == nil:
		err = ErrEmptyTraversal
	case err == nil:
		g, err = Build(*t)
	}
	nodeCount := 0
	if g != nil {
		nodeCount = g.Len()
	}
	observability.Tree().OnTraversalComplete(ctx, req.RootRef, nodeCount, time.Since(start), err)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if gen != v.gen {
		v.logger.Debug("discarding superseded traversal", "request", req.String())
		return ErrSuperseded
	}
	v.cancel = nil

	switch {
	case errors.Is(err, ErrEmptyTraversal):
		v.status = Status{State: StateEmpty, Request: req, Err: err}
		v.logger.Info("traversal is empty", "root", req.RootRef)
		return err
	case err != nil:
		v.status = Status{State: StateFailed, Request: req, Err: err}
		v.logger.Warn("traversal failed", "root", req.RootRef, "err", err)
		return err
	}

	v.status = Status{State: StateReady, Request: req, Graph: g}
	v.hopper = NewHopper(g)
	v.logger.Debug("traversal loaded",
		"root", req.RootRef,
		"nodes", g.Len(),
		"people", len(g.refOrder),
		"dangling", g.Dangling(),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Status returns the current state of the view. Graph is a copy; picture
// uploads made afterwards do not show in it.
func (v *View) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.status
	if st.Graph != nil {
		st.Graph = st.Graph.Clone()
	}
	return st
}

// Snapshot is a render-ready copy of a loaded view.
type Snapshot struct {
	RootID   string       `json:"root_id"`
	Nodes    []RenderNode `json:"nodes"`
	Edges    []Edge       `json:"edges"`
	Dangling int          `json:"dangling"`
}

// Render returns a copy of the loaded graph for the renderer. ok is false
// unless the view is ready.
func (v *View) Render() (Snapshot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	g := v.status.Graph
	if v.status.State != StateReady || g == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		RootID:   g.RootID(),
		Nodes:    g.RenderNodes(),
		Edges:    g.Edges(),
		Dangling: g.Dangling(),
	}, true
}

// Appearance returns a copy of the appearance id in the loaded graph.
func (v *View) Appearance(id string) (Node, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.status.State != StateReady || v.status.Graph == nil {
		return Node{}, false
	}
	return v.status.Graph.Node(id)
}

// Hop moves to the next appearance of ref and asks the renderer to center on
// it. It does nothing unless the view is ready and ref appears more than once.
func (v *View) Hop(ref string) (string, bool) {
	return v.hop(func(h *Hopper) (string, bool) { return h.Hop(ref) })
}

// HopFrom is [View.Hop] for the person behind the clicked appearance fromID,
// starting from that appearance.
func (v *View) HopFrom(fromID string) (string, bool) {
	return v.hop(func(h *Hopper) (string, bool) { return h.HopFrom(fromID) })
}

func (v *View) hop(fn func(*Hopper) (string, bool)) (string, bool) {
	v.mu.Lock()
	if v.closed || v.hopper == nil || v.status.State != StateReady {
		v.mu.Unlock()
		return "", false
	}
	id, moved := fn(v.hopper)
	var ref string
	var size int
	if moved {
		n := v.status.Graph.nodes[id]
		ref, size = n.Ref, v.status.Graph.Count(n.Ref)
	}
	centerer := v.centerer
	v.mu.Unlock()

	if moved {
		observability.Tree().OnHop(context.Background(), ref, size)
		if centerer != nil {
			centerer.Center(id)
		}
	}
	return id, moved
}

// UploadPicture uploads a new picture for the person behind ref and sets it
// on every appearance of that person. Only the person's owner or a moderator
// may do this. It returns the new URL and the number of appearances updated.
func (v *View) UploadPicture(ctx context.Context, viewer session.Viewer, ref, filename string, image io.Reader) (string, int, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return "", 0, ErrClosed
	}
	if v.status.State != StateReady {
		v.mu.Unlock()
		return "", 0, rlerrors.New(rlerrors.ErrCodeConflict, "tree is not loaded")
	}
	owner, ok := v.status.Graph.OwnerID(ref)
	uploader := v.uploader
	v.mu.Unlock()

	if !ok {
		return "", 0, rlerrors.New(rlerrors.ErrCodeNotFound, "person %s is not in this tree", ref)
	}
	if !viewer.CanEdit(owner) {
		return "", 0, rlerrors.New(rlerrors.ErrCodeForbidden, "viewer %q may not edit %s", viewer.ID, ref)
	}
	if uploader == nil {
		return "", 0, rlerrors.New(rlerrors.ErrCodeUnsupported, "picture upload is not configured")
	}

	url, err := uploader.UploadPicture(ctx, ref, filename, image)
	if err != nil {
		return "", 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return "", 0, ErrClosed
	}
	updated := 0
	if v.status.Graph != nil {
		updated = v.status.Graph.SetPicture(ref, url)
	}
	v.logger.Info("picture updated", "ref", ref, "appearances", updated)
	return url, updated, nil
}

// Close cancels any in-flight load and discards the current graph.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.status = Status{State: StateIdle}
	v.hopper = nil
}
