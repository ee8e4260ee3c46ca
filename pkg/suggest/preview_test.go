package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
)

type fakeBackend struct {
	snapshots map[string]*profile.Snapshot
	summaries map[string]*profile.Summary
	byID      map[string]*profile.Summary
	fail      map[string]error
}

func (b *fakeBackend) FetchSnapshot(_ context.Context, ref string) (*profile.Snapshot, error) {
	if err := b.fail[ref]; err != nil {
		return nil, err
	}
	s, ok := b.snapshots[ref]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", ref)
	}
	cp := *s
	return &cp, nil
}

func (b *fakeBackend) FetchSummary(_ context.Context, ref string) (*profile.Summary, error) {
	if err := b.fail[ref]; err != nil {
		return nil, err
	}
	s, ok := b.summaries[ref]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", ref)
	}
	return s, nil
}

func (b *fakeBackend) FetchSummaryByID(_ context.Context, id string) (*profile.Summary, error) {
	s, ok := b.byID[id]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile #%s not found", id)
	}
	return s, nil
}

// gatedLookup resolves places only after release is closed.
type gatedLookup struct {
	release chan struct{}
}

func (g *gatedLookup) wait(ctx context.Context) error {
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gatedLookup) Place(ctx context.Context, id string) (*refs.Place, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	// pl1b is a duplicate record of pl1.
	if id == "pl1" || id == "pl1b" {
		return &refs.Place{ID: id, Name: "Iași", Country: "Romania"}, nil
	}
	return nil, errors.New("no such place")
}

func (g *gatedLookup) Cemetery(ctx context.Context, id string) (*refs.Cemetery, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return &refs.Cemetery{ID: id, Name: "Bellu"}, nil
}

func (g *gatedLookup) Ethnicity(ctx context.Context, id string) (*refs.Ethnicity, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return &refs.Ethnicity{ID: id, Name: "Romanian"}, nil
}

func newTestPreviewer(b Backend, l refs.Lookup) *Previewer {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return NewPreviewer(b, refs.NewResolver(l, refs.WithLogger(logger)), WithLogger(logger))
}

func testBackend() *fakeBackend {
	snap := ion()
	return &fakeBackend{
		snapshots: map[string]*profile.Snapshot{"P1": &snap},
		summaries: map[string]*profile.Summary{
			"P1": {ID: "1", TreeRef: "P1", Name: profile.Name{First: []string{"Ion"}, Last: []string{"Popescu"}}},
			"P2": {ID: "2", TreeRef: "P2", Name: profile.Name{First: []string{"Maria"}}},
		},
		byID: map[string]*profile.Summary{
			"2": {ID: "2", TreeRef: "P2", Name: profile.Name{First: []string{"Maria"}}},
		},
		fail: map[string]error{},
	}
}

func update(payload string) Suggestion {
	return Suggestion{ID: "s1", Type: TypeUpdate, Status: StatusPending, ProfileTreeRef: "P1", Payload: json.RawMessage(payload)}
}

func TestPreviewUpdateResolvesIncrementally(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{})}
	p := newTestPreviewer(testBackend(), lookup)

	pv, err := p.Open(context.Background(), update(`{"birth":{"date":"1902"}}`))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pv.Close()

	st := pv.State()
	if !st.Resolving {
		t.Error("State should be resolving before lookups finish")
	}
	if len(st.Rows) != 1 || st.Rows[0].After != "1902 • pl1" {
		t.Fatalf("initial rows = %+v, want raw id", st.Rows)
	}

	close(lookup.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pv.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	st = pv.State()
	if st.Resolving {
		t.Error("State still resolving after Wait")
	}
	want := Row{Field: profile.FieldBirth, Before: "1901 • Iași, Romania", After: "1902 • Iași, Romania",
		BeforeSources: []string{"parish register"}, AfterSources: []string{"parish register"}}
	if len(st.Rows) != 1 || st.Rows[0].Before != want.Before || st.Rows[0].After != want.After {
		t.Errorf("rows = %+v, want %+v", st.Rows, want)
	}
}

func TestPreviewNoChangesWaitsForLabels(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{})}
	pv, err := newTestPreviewer(testBackend(), lookup).Open(context.Background(), update(`{"sex":"M"}`))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pv.Close()

	if pv.State().NoChanges {
		t.Error("NoChanges reported while still resolving")
	}
	close(lookup.release)
	_ = pv.Wait(context.Background())
	if !pv.State().NoChanges {
		t.Error("NoChanges should be reported once resolved")
	}
}

func TestPreviewRowDropsWhenIDsShareLabel(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{})}
	pv, err := newTestPreviewer(testBackend(), lookup).Open(context.Background(), update(`{"birth":{"place_id":"pl1b"}}`))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pv.Close()

	st := pv.State()
	if !st.Resolving || len(st.Rows) != 1 || st.Rows[0].After != "1901 • pl1b" {
		t.Fatalf("initial state = %+v, want one raw-id row while resolving", st)
	}
	if st.NoChanges {
		t.Error("NoChanges reported while still resolving")
	}

	close(lookup.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pv.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	st = pv.State()
	if len(st.Rows) != 0 || !st.NoChanges {
		t.Errorf("resolved state = %+v, want no rows and NoChanges", st)
	}
}

func TestPreviewSnapshotError(t *testing.T) {
	b := testBackend()
	b.fail["P1"] = rlerrors.New(rlerrors.ErrCodeNetwork, "backend unreachable")
	pv, err := newTestPreviewer(b, &gatedLookup{release: make(chan struct{})}).Open(context.Background(), update(`{"sex":"F"}`))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pv.Close()

	st := pv.State()
	if st.SnapshotError != "backend unreachable" {
		t.Errorf("SnapshotError = %q", st.SnapshotError)
	}
	if st.Rows != nil || st.NoChanges || st.Resolving {
		t.Errorf("State = %+v, want only the error", st)
	}
}

func TestPreviewCloseDropsLookups(t *testing.T) {
	lookup := &gatedLookup{release: make(chan struct{})}
	pv, err := newTestPreviewer(testBackend(), lookup).Open(context.Background(), update(`{"ethnicity":{"id":"e1"}}`))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	pv.Close()
	close(lookup.release)
	_ = pv.Wait(context.Background())

	if n := pv.Labels().Len(); n != 0 {
		t.Errorf("labels = %v after Close", pv.Labels().Snapshot())
	}
	if err := pv.Recompute(); !errors.Is(err, ErrClosed) {
		t.Errorf("Recompute() error = %v, want ErrClosed", err)
	}
}

func TestPreviewRelation(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		failSubject bool
		wantRelated string
		wantErr     bool
	}{
		{name: "ByTreeRef", payload: `{"related_tree_ref":"P2"}`, wantRelated: "P2"},
		{name: "ByProfileID", payload: `{"related_profile_id":"2"}`, wantRelated: "P2"},
		{name: "RelatedMissing", payload: `{"related_tree_ref":"P404"}`, wantErr: true},
		{name: "NoRelated", payload: `{}`, wantErr: true},
		{name: "SubjectFails", payload: `{"related_tree_ref":"P2"}`, failSubject: true, wantRelated: "P2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testBackend()
			if tt.failSubject {
				b.fail["P1"] = errors.New("timeout")
			}
			s := Suggestion{ID: "s2", Type: TypeFamilyAddParent, ProfileTreeRef: "P1", Payload: json.RawMessage(tt.payload)}

			pv, err := newTestPreviewer(b, &gatedLookup{}).Open(context.Background(), s)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer pv.Close()

			st := pv.State()
			rel := st.Relation
			if rel == nil {
				t.Fatal("Relation is nil")
			}
			if rel.Action != "add" || rel.Relation != "parent" || rel.SubjectRef != "P1" {
				t.Errorf("relation = %+v", rel)
			}
			if st.Resolving {
				t.Error("relation previews have nothing to resolve")
			}

			if tt.failSubject {
				if rel.Subject != nil || rel.SubjectError == "" {
					t.Errorf("subject = %+v / %q, want error", rel.Subject, rel.SubjectError)
				}
			} else if rel.Subject == nil || rel.Subject.TreeRef != "P1" {
				t.Errorf("subject = %+v, want P1", rel.Subject)
			}

			if tt.wantErr {
				if rel.RelatedError == "" || rel.Related != nil {
					t.Errorf("related = %+v / %q, want an explicit error", rel.Related, rel.RelatedError)
				}
				if rel.Subject == nil {
					t.Error("a related failure must not hide the subject")
				}
				return
			}
			if rel.Related == nil || rel.Related.TreeRef != tt.wantRelated {
				t.Errorf("related = %+v, want %s", rel.Related, tt.wantRelated)
			}
		})
	}
}

func TestPreviewOpenErrors(t *testing.T) {
	p := newTestPreviewer(testBackend(), &gatedLookup{})
	tests := []struct {
		name string
		s    Suggestion
		code rlerrors.Code
	}{
		{"UnknownType", Suggestion{ID: "x", Type: "merge", ProfileTreeRef: "P1"}, rlerrors.ErrCodeUnsupported},
		{"NoProfile", Suggestion{ID: "x", Type: TypeUpdate}, rlerrors.ErrCodeInvalidInput},
		{"BadPayload", update(`[1]`), rlerrors.ErrCodeInvalidInput},
		{"BadFieldType", update(`{"sex":5}`), rlerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Open(context.Background(), tt.s)
			if !rlerrors.Is(err, tt.code) {
				t.Errorf("Open() error = %v, want %s", err, tt.code)
			}
		})
	}
}
