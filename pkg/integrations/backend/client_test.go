package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rootline/rootline/pkg/cache"
	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/suggest"
	"github.com/rootline/rootline/pkg/tree"
)

func newTestClient(t *testing.T, h http.Handler, c cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL:    srv.URL,
		Token:      "tok",
		Cache:      c,
		HTTPClient: srv.Client(),
		Logger:     log.NewWithOptions(io.Discard, log.Options{}),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestNewClientInvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "example.org"} {
		if _, err := NewClient(Options{BaseURL: u}); !rlerrors.Is(err, rlerrors.ErrCodeInvalidInput) {
			t.Errorf("NewClient(%q) error = %v, want INVALID_INPUT", u, err)
		}
	}
}

func TestFetchTraversal(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotAuth = r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization")
		writeJSON(w, tree.Traversal{
			RootID: "a1",
			Nodes:  []tree.Node{{ID: "a1", Ref: "P1", Name: "Ion Popescu"}},
		})
	}), nil)

	req := tree.Request{RootRef: "P1", Up: 2, Down: 1, MaxNodes: 50}
	tr, err := client.FetchTraversal(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchTraversal: %v", err)
	}
	if gotPath != "/api/tree/P1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "down=1&max=50&up=2" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if tr == nil || tr.RootID != "a1" || len(tr.Nodes) != 1 {
		t.Errorf("traversal = %+v", tr)
	}
}

func TestFetchTraversalEmpty(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, tree.Traversal{})
	}), nil)

	tr, err := client.FetchTraversal(context.Background(), tree.NewRequest("P1"))
	if err != nil {
		t.Fatalf("FetchTraversal: %v", err)
	}
	if tr != nil {
		t.Errorf("empty traversal should be nil, got %+v", tr)
	}
}

func TestErrorTranslation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		call   func(*Client) error
		want   rlerrors.Code
	}{
		{"profile 404", 404, func(c *Client) error {
			_, err := c.FetchSnapshot(context.Background(), "P9")
			return err
		}, rlerrors.ErrCodeProfileNotFound},
		{"suggestion 404", 404, func(c *Client) error {
			_, err := c.Suggestion(context.Background(), "s9")
			return err
		}, rlerrors.ErrCodeSuggestionNotFound},
		{"place 404", 404, func(c *Client) error {
			_, err := c.Place(context.Background(), "pl9")
			return err
		}, rlerrors.ErrCodeNotFound},
		{"unauthorized", 401, func(c *Client) error {
			_, err := c.FetchSummary(context.Background(), "P1")
			return err
		}, rlerrors.ErrCodeUnauthorized},
		{"forbidden", 403, func(c *Client) error {
			return c.SubmitDecision(context.Background(), "s1", suggest.StatusApproved, "")
		}, rlerrors.ErrCodeForbidden},
		{"conflict", 409, func(c *Client) error {
			return c.SubmitDecision(context.Background(), "s1", suggest.StatusApproved, "")
		}, rlerrors.ErrCodeConflict},
		{"bad request", 400, func(c *Client) error {
			_, err := c.FetchSummaryByID(context.Background(), "42")
			return err
		}, rlerrors.ErrCodeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}), nil)
			err := tt.call(client)
			if !rlerrors.Is(err, tt.want) {
				t.Errorf("error = %v (code %s), want %s", err, rlerrors.GetCode(err), tt.want)
			}
		})
	}
}

func TestCallerContextErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := client.FetchSnapshot(ctx, "P1")
	if !errors.Is(err, context.Canceled) || rlerrors.Is(err, rlerrors.ErrCodeNetwork) {
		t.Errorf("cancelled fetch error = %v, want a bare context.Canceled", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.FetchSnapshot(ctx, "P1")
	if !rlerrors.Is(err, rlerrors.ErrCodeTimeout) {
		t.Errorf("timed out fetch error = %v, want TIMEOUT", err)
	}
}

func TestFetchSnapshot(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/profiles/P1" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{
			"name": {"first": ["Ion"], "last": ["Popescu"]},
			"birth": {"date": "1901", "place_id": "pl1"},
			"burial": {"date": "1970", "cemetery_id": "c1"},
			"deceased": true
		}`)
	}), nil)

	s, err := client.FetchSnapshot(context.Background(), "P1")
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if s.TreeRef != "P1" {
		t.Errorf("TreeRef = %q, want P1", s.TreeRef)
	}
	if len(s.Burial) != 1 || s.Burial[0].CemeteryID != "c1" {
		t.Errorf("Burial = %+v", s.Burial)
	}
}

func TestSummaries(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/profiles/P1/summary":
			writeJSON(w, map[string]any{"id": "1", "tree_ref": "P1"})
		case "/api/profiles/by-id/2/summary":
			writeJSON(w, map[string]any{"id": "2", "tree_ref": "P2"})
		default:
			http.NotFound(w, r)
		}
	}), nil)

	ctx := context.Background()
	s1, err := client.FetchSummary(ctx, "P1")
	if err != nil || s1.ID != "1" {
		t.Errorf("FetchSummary = %+v, %v", s1, err)
	}
	s2, err := client.FetchSummaryByID(ctx, "2")
	if err != nil || s2.TreeRef != "P2" {
		t.Errorf("FetchSummaryByID = %+v, %v", s2, err)
	}
}

func TestReferencesCached(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/api/places/pl1":
			writeJSON(w, map[string]any{"id": "pl1", "name": "Cluj", "country": "Romania"})
		case "/api/cemeteries/c1":
			writeJSON(w, map[string]any{"id": "c1", "name": "Hajongard", "place": map[string]any{"id": "pl1", "name": "Cluj"}})
		case "/api/ethnicities/e1":
			writeJSON(w, map[string]any{"id": "e1", "name": "Romanian"})
		default:
			http.NotFound(w, r)
		}
	}), mustFileCache(t))

	ctx := context.Background()
	for range 2 {
		p, err := client.Place(ctx, "pl1")
		if err != nil || p.Label() != "Cluj, Romania" {
			t.Fatalf("Place = %+v, %v", p, err)
		}
	}
	cem, err := client.Cemetery(ctx, "c1")
	if err != nil || cem.Label() != "Hajongard (Cluj)" {
		t.Errorf("Cemetery = %+v, %v", cem, err)
	}
	e, err := client.Ethnicity(ctx, "e1")
	if err != nil || e.Label() != "Romanian" {
		t.Errorf("Ethnicity = %+v, %v", e, err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("backend hits = %d, want 3", got)
	}
}

func mustFileCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUploadPicture(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/profiles/P1/picture" {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		writeJSON(w, map[string]string{"url": "https://img/" + hdr.Filename + "?" + string(data)})
	}), nil)

	url, err := client.UploadPicture(context.Background(), "P1", "me.png", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("UploadPicture: %v", err)
	}
	if url != "https://img/me.png?x" {
		t.Errorf("url = %q", url)
	}
}

func TestUploadPictureNoURL(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{})
	}), nil)

	_, err := client.UploadPicture(context.Background(), "P1", "me.png", strings.NewReader("x"))
	if !rlerrors.Is(err, rlerrors.ErrCodeInternal) {
		t.Errorf("error = %v, want INTERNAL_ERROR", err)
	}
}

func TestSuggestions(t *testing.T) {
	var gotStatus string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/suggestions":
			gotStatus = r.URL.Query().Get("status")
			writeJSON(w, []map[string]any{
				{"id": "s1", "type": "update", "status": "pending", "profile_tree_ref": "P1", "payload": map[string]any{}},
			})
		case "/api/suggestions/s1":
			writeJSON(w, map[string]any{"id": "s1", "type": "family_add_parent", "status": "pending", "profile_tree_ref": "P1", "payload": map[string]any{"related_tree_ref": "P2"}})
		default:
			http.NotFound(w, r)
		}
	}), nil)

	ctx := context.Background()
	list, err := client.Suggestions(ctx, suggest.StatusPending)
	if err != nil || len(list) != 1 {
		t.Fatalf("Suggestions = %+v, %v", list, err)
	}
	if gotStatus != "pending" {
		t.Errorf("status query = %q", gotStatus)
	}

	s, err := client.Suggestion(ctx, "s1")
	if err != nil {
		t.Fatalf("Suggestion: %v", err)
	}
	rel, err := s.Related()
	if err != nil || rel.TreeRef != "P2" {
		t.Errorf("Related = %+v, %v", rel, err)
	}
}

func TestSubmitDecision(t *testing.T) {
	var body map[string]string
	var path string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	if err := client.SubmitDecision(context.Background(), "s1", suggest.StatusRejected, "duplicate"); err != nil {
		t.Fatalf("SubmitDecision: %v", err)
	}
	if path != "/api/suggestions/s1/decision" {
		t.Errorf("path = %q", path)
	}
	if body["status"] != "rejected" || body["note"] != "duplicate" {
		t.Errorf("body = %v", body)
	}
}

func TestViewer(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer tok":
			writeJSON(w, map[string]any{"id": "u1", "name": "Ana", "moderator": true})
		case "Bearer other":
			writeJSON(w, map[string]any{"id": "u2", "name": "Dan"})
		case "Bearer blank":
			writeJSON(w, map[string]any{})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}), nil)
	ctx := context.Background()

	me, err := client.Viewer(ctx)
	if err != nil {
		t.Fatalf("Viewer: %v", err)
	}
	if me.ID != "u1" || !me.Moderator {
		t.Errorf("viewer = %+v", me)
	}

	other, err := client.Authenticate(ctx, "other")
	if err != nil || other.ID != "u2" || other.Moderator {
		t.Errorf("Authenticate(other) = %+v, %v", other, err)
	}

	tests := []struct {
		token string
		want  rlerrors.Code
	}{
		{"", rlerrors.ErrCodeUnauthorized},
		{"bad", rlerrors.ErrCodeUnauthorized},
		{"blank", rlerrors.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		if _, err := client.Authenticate(ctx, tt.token); !rlerrors.Is(err, tt.want) {
			t.Errorf("Authenticate(%q) = %v, want %s", tt.token, err, tt.want)
		}
	}
}
