package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
	"github.com/rootline/rootline/pkg/review"
	"github.com/rootline/rootline/pkg/session"
	"github.com/rootline/rootline/pkg/suggest"
	"github.com/rootline/rootline/pkg/tree"
)

type fakeBackend struct {
	mu          sync.Mutex
	traversals  map[string]*tree.Traversal
	snapshots   map[string]*profile.Snapshot
	suggestions map[string]*suggest.Suggestion
	viewers     map[string]session.Viewer
	decided     map[string]suggest.Status
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		traversals: map[string]*tree.Traversal{
			"P1": {
				RootID: "a1",
				Nodes: []tree.Node{
					{ID: "a1", Ref: "P1", Name: "Ion Popescu", Sex: "M", OwnerID: "u-owner", PIDs: []string{"b1"}},
					{ID: "b1", Ref: "P2", Name: "Maria", Sex: "F", PIDs: []string{"a1"}},
					{ID: "a2", Ref: "P1", Name: "Ion Popescu", Sex: "M", OwnerID: "u-owner"},
					{ID: "a3", Ref: "P1", Name: "Ion Popescu", Sex: "M", OwnerID: "u-owner"},
				},
			},
			"EMPTY": nil,
		},
		snapshots: map[string]*profile.Snapshot{
			"P1": {TreeRef: "P1", Name: profile.Name{First: []string{"Ion"}, Last: []string{"Popescu"}}},
		},
		suggestions: map[string]*suggest.Suggestion{
			"s1": {ID: "s1", Type: suggest.TypeUpdate, Status: suggest.StatusPending, ProfileTreeRef: "P1",
				Payload: json.RawMessage(`{"name":{"last":["Ionescu"]}}`)},
		},
		viewers: map[string]session.Viewer{
			"owner-token": {ID: "u-owner", Name: "Ion"},
			"mod-token":   {ID: "u-mod", Name: "Mod", Moderator: true},
			"other-token": {ID: "u-other", Name: "Other"},
		},
		decided: map[string]suggest.Status{},
	}
}

func (b *fakeBackend) FetchTraversal(_ context.Context, req tree.Request) (*tree.Traversal, error) {
	t, ok := b.traversals[req.RootRef]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", req.RootRef)
	}
	return t, nil
}

func (b *fakeBackend) UploadPicture(_ context.Context, ref, filename string, _ io.Reader) (string, error) {
	return "https://img.test/" + ref + "/" + filename, nil
}

func (b *fakeBackend) Place(_ context.Context, id string) (*refs.Place, error) {
	return &refs.Place{ID: id, Name: "Place " + id}, nil
}

func (b *fakeBackend) Cemetery(_ context.Context, id string) (*refs.Cemetery, error) {
	return &refs.Cemetery{ID: id, Name: "Cemetery " + id}, nil
}

func (b *fakeBackend) Ethnicity(_ context.Context, id string) (*refs.Ethnicity, error) {
	return &refs.Ethnicity{ID: id, Name: "Ethnicity " + id}, nil
}

func (b *fakeBackend) FetchSnapshot(_ context.Context, ref string) (*profile.Snapshot, error) {
	s, ok := b.snapshots[ref]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeProfileNotFound, "profile %s not found", ref)
	}
	cp := *s
	return &cp, nil
}

func (b *fakeBackend) FetchSummary(_ context.Context, ref string) (*profile.Summary, error) {
	return &profile.Summary{TreeRef: ref}, nil
}

func (b *fakeBackend) FetchSummaryByID(_ context.Context, id string) (*profile.Summary, error) {
	return &profile.Summary{ID: id}, nil
}

func (b *fakeBackend) Suggestion(_ context.Context, id string) (*suggest.Suggestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.suggestions[id]
	if !ok {
		return nil, rlerrors.New(rlerrors.ErrCodeSuggestionNotFound, "suggestion %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (b *fakeBackend) SubmitDecision(_ context.Context, id string, status suggest.Status, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decided[id] = status
	b.suggestions[id].Status = status
	return nil
}

func (b *fakeBackend) Suggestions(_ context.Context, status suggest.Status) ([]suggest.Suggestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []suggest.Suggestion
	for _, s := range b.suggestions {
		if status == "" || s.Status == status {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (b *fakeBackend) Authenticate(_ context.Context, token string) (session.Viewer, error) {
	v, ok := b.viewers[token]
	if !ok {
		return session.Viewer{}, rlerrors.New(rlerrors.ErrCodeUnauthorized, "bad token")
	}
	return v, nil
}

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	backend *fakeBackend
	api     *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	sessions, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b := newFakeBackend()
	s, err := New(Options{
		Backend:  b,
		Sessions: sessions,
		Ledger:   review.NewMemoryStore(),
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return &harness{t: t, srv: srv, backend: b, api: s}
}

type call struct {
	method  string
	path    string
	body    io.Reader
	headers map[string]string
}

func (h *harness) do(c call) (*http.Response, []byte) {
	h.t.Helper()
	req, err := http.NewRequest(c.method, h.srv.URL+c.path, c.body)
	if err != nil {
		h.t.Fatal(err)
	}
	if c.body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.srv.Client().Do(req)
	if err != nil {
		h.t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (h *harness) login(token string) string {
	h.t.Helper()
	resp, body := h.do(call{method: "POST", path: "/v1/sessions", body: strings.NewReader(`{"token":"` + token + `"}`)})
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("login status = %d: %s", resp.StatusCode, body)
	}
	var out sessionResponse
	json.Unmarshal(body, &out)
	return out.SessionID
}

func bearer(id string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + id}
}

func errCode(t *testing.T, body []byte) rlerrors.Code {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e.Code
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(call{method: "GET", path: "/healthz"})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", resp.StatusCode, body)
	}
}

type openBreaker struct{ *fakeBackend }

func (openBreaker) BreakerState() string { return "open" }

func TestHealthDegraded(t *testing.T) {
	sessions, _ := session.NewFileStore(t.TempDir())
	s, err := New(Options{
		Backend:  openBreaker{newFakeBackend()},
		Sessions: sessions,
		Ledger:   review.NewMemoryStore(),
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := rec.Body.String()
	if rec.Code != http.StatusOK || !strings.Contains(body, `"status":"degraded"`) || !strings.Contains(body, `"backend":"open"`) {
		t.Errorf("healthz = %d %s", rec.Code, body)
	}
}

func TestRequestID(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(call{method: "GET", path: "/healthz", headers: map[string]string{HeaderRequestID: "abc-123"}})
	if got := resp.Header.Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("echoed request id = %q", got)
	}

	resp, body := h.do(call{method: "GET", path: "/v1/tree/P1?up=99"})
	id := resp.Header.Get(HeaderRequestID)
	if id == "" {
		t.Fatal("missing generated request id")
	}
	if !strings.Contains(string(body), id) {
		t.Errorf("error body should carry request id %s: %s", id, body)
	}
}

func TestGetTree(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(call{method: "GET", path: "/v1/tree/P1?up=2&down=2&max=100"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	viewID := resp.Header.Get(HeaderViewID)
	if viewID == "" {
		t.Fatal("missing view id")
	}

	var snap tree.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.RootID != "a1" || len(snap.Nodes) != 4 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if n := snap.Nodes[0]; n.BadgeText != "3" || !n.BadgeDisplay {
		t.Errorf("root badge = %q/%v", n.BadgeText, n.BadgeDisplay)
	}

	resp, _ = h.do(call{method: "GET", path: "/v1/tree/P1", headers: map[string]string{HeaderViewID: viewID}})
	if got := resp.Header.Get(HeaderViewID); got != viewID {
		t.Errorf("reload issued new view id %q, want %q", got, viewID)
	}
}

func TestGetTreeErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   rlerrors.Code
	}{
		{"depth too large", "/v1/tree/P1?up=11", 400, rlerrors.ErrCodeInvalidDepth},
		{"non-numeric", "/v1/tree/P1?down=x", 400, rlerrors.ErrCodeInvalidInput},
		{"bad ref", "/v1/tree/..bad", 400, rlerrors.ErrCodeInvalidRef},
		{"unknown person", "/v1/tree/P404", 404, rlerrors.ErrCodeProfileNotFound},
		{"empty traversal", "/v1/tree/EMPTY", 404, rlerrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := h.do(call{method: "GET", path: tt.path})
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			if code := errCode(t, body); code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func loadView(h *harness, headers map[string]string) string {
	h.t.Helper()
	resp, body := h.do(call{method: "GET", path: "/v1/tree/P1", headers: headers})
	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("load status = %d: %s", resp.StatusCode, body)
	}
	return resp.Header.Get(HeaderViewID)
}

func TestHop(t *testing.T) {
	h := newHarness(t)
	viewID := loadView(h, nil)
	hdr := map[string]string{HeaderViewID: viewID}

	hop := func(body string) hopResponse {
		t.Helper()
		var rdr io.Reader
		if body != "" {
			rdr = strings.NewReader(body)
		}
		resp, data := h.do(call{method: "POST", path: "/v1/tree/P1/hop", body: rdr, headers: hdr})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("hop status = %d: %s", resp.StatusCode, data)
		}
		var out hopResponse
		json.Unmarshal(data, &out)
		return out
	}

	if got := hop(`{"from_id":"a1"}`); got.ID != "a2" || !got.Moved {
		t.Errorf("first hop = %+v, want a2", got)
	}
	if got := hop(""); got.ID != "a3" {
		t.Errorf("second hop = %+v, want a3", got)
	}
	if got := hop(""); got.ID != "a1" {
		t.Errorf("third hop = %+v, want a1", got)
	}

	resp, data := h.do(call{method: "POST", path: "/v1/tree/P2/hop", headers: hdr})
	var single hopResponse
	json.Unmarshal(data, &single)
	if resp.StatusCode != http.StatusOK || single.Moved {
		t.Errorf("hop on single appearance = %d %+v", resp.StatusCode, single)
	}
}

func TestHopErrors(t *testing.T) {
	h := newHarness(t)
	viewID := loadView(h, nil)

	tests := []struct {
		name       string
		path       string
		body       string
		viewID     string
		wantStatus int
	}{
		{"no view header", "/v1/tree/P1/hop", "", "", 400},
		{"unknown view", "/v1/tree/P1/hop", "", "nope", 404},
		{"appearance of another person", "/v1/tree/P1/hop", `{"from_id":"b1"}`, viewID, 400},
		{"unknown appearance", "/v1/tree/P1/hop", `{"from_id":"zz"}`, viewID, 404},
		{"unknown field", "/v1/tree/P1/hop", `{"from":"a1"}`, viewID, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := call{method: "POST", path: tt.path, headers: map[string]string{}}
			if tt.viewID != "" {
				c.headers[HeaderViewID] = tt.viewID
			}
			if tt.body != "" {
				c.body = strings.NewReader(tt.body)
			}
			resp, body := h.do(c)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestViewsAreScopedToViewer(t *testing.T) {
	h := newHarness(t)
	viewID := loadView(h, nil)

	sid := h.login("other-token")
	hdr := bearer(sid)
	hdr[HeaderViewID] = viewID
	resp, _ := h.do(call{method: "POST", path: "/v1/tree/P1/hop", headers: hdr})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("another viewer's view: status = %d, want 404", resp.StatusCode)
	}
}

func multipartImage(t *testing.T, field string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, "me.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("PNG"))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadPicture(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		token      string
		field      string
		wantStatus int
		wantCode   rlerrors.Code
	}{
		{"owner", "owner-token", "image", 200, ""},
		{"moderator", "mod-token", "image", 200, ""},
		{"stranger", "other-token", "image", 403, rlerrors.ErrCodeForbidden},
		{"anonymous", "", "image", 403, rlerrors.ErrCodeForbidden},
		{"wrong field", "owner-token", "file", 400, rlerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tt.token != "" {
				hdr = bearer(h.login(tt.token))
			}
			hdr[HeaderViewID] = loadView(h, hdr)

			body, ctype := multipartImage(t, tt.field)
			hdr["Content-Type"] = ctype
			resp, data := h.do(call{method: "POST", path: "/v1/people/P1/picture", body: body, headers: hdr})
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, data)
			}
			if tt.wantCode != "" {
				if code := errCode(t, data); code != tt.wantCode {
					t.Errorf("code = %s, want %s", code, tt.wantCode)
				}
				return
			}
			var out pictureResponse
			json.Unmarshal(data, &out)
			if out.URL != "https://img.test/P1/me.png" || out.Updated != 3 {
				t.Errorf("response = %+v", out)
			}
		})
	}
}

func TestSessions(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(call{method: "POST", path: "/v1/sessions", body: strings.NewReader(`{"token":"bad"}`)})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d: %s", resp.StatusCode, body)
	}
	resp, _ = h.do(call{method: "POST", path: "/v1/sessions", body: strings.NewReader(`{}`)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing token status = %d", resp.StatusCode)
	}

	sid := h.login("owner-token")
	if strings.Contains(sid, "owner-token") {
		t.Fatal("session id leaks token")
	}

	resp, _ = h.do(call{method: "GET", path: "/v1/suggestions", headers: bearer("not-a-uuid")})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("malformed session status = %d", resp.StatusCode)
	}

	resp, _ = h.do(call{method: "DELETE", path: "/v1/sessions/current", headers: bearer(sid)})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, body = h.do(call{method: "GET", path: "/v1/suggestions", headers: bearer(sid)})
	if resp.StatusCode != http.StatusUnauthorized || errCode(t, body) != rlerrors.ErrCodeSessionExpired {
		t.Errorf("after logout: %d %s", resp.StatusCode, body)
	}
}

func TestPreviewSuggestion(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(call{method: "GET", path: "/v1/suggestions/s1/preview"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous preview status = %d", resp.StatusCode)
	}

	hdr := bearer(h.login("other-token"))
	resp, body := h.do(call{method: "GET", path: "/v1/suggestions/s1/preview", headers: hdr})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status = %d: %s", resp.StatusCode, body)
	}
	var st suggest.State
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st.SuggestionID != "s1" || st.Resolving || st.NoChanges {
		t.Errorf("state = %+v", st)
	}
	if len(st.Rows) == 0 || st.Rows[0].Field != profile.FieldName {
		t.Fatalf("rows = %+v", st.Rows)
	}
	if !strings.Contains(st.Rows[0].After, "Ionescu") || !strings.Contains(st.Rows[0].Before, "Popescu") {
		t.Errorf("name row = %+v", st.Rows[0])
	}

	resp, body = h.do(call{method: "GET", path: "/v1/suggestions/missing/preview", headers: hdr})
	if resp.StatusCode != http.StatusNotFound || errCode(t, body) != rlerrors.ErrCodeSuggestionNotFound {
		t.Errorf("missing suggestion: %d %s", resp.StatusCode, body)
	}
}

func TestListSuggestions(t *testing.T) {
	h := newHarness(t)
	hdr := bearer(h.login("mod-token"))

	resp, body := h.do(call{method: "GET", path: "/v1/suggestions?status=pending", headers: hdr})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var list []suggest.Suggestion
	json.Unmarshal(body, &list)
	if len(list) != 1 || list[0].ID != "s1" {
		t.Errorf("list = %+v", list)
	}

	resp, body = h.do(call{method: "GET", path: "/v1/suggestions?status=approved", headers: hdr})
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("approved list = %d %s", resp.StatusCode, body)
	}

	resp, _ = h.do(call{method: "GET", path: "/v1/suggestions?status=maybe", headers: hdr})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad status filter = %d", resp.StatusCode)
	}
}

func TestDecide(t *testing.T) {
	h := newHarness(t)
	mod := bearer(h.login("mod-token"))
	other := bearer(h.login("other-token"))

	decide := func(hdr map[string]string, body string) (*http.Response, []byte) {
		return h.do(call{method: "POST", path: "/v1/suggestions/s1/decision", body: strings.NewReader(body), headers: hdr})
	}

	resp, body := decide(other, `{"status":"approved"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-moderator status = %d: %s", resp.StatusCode, body)
	}
	resp, _ = decide(mod, `{"status":"pending"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pending status = %d", resp.StatusCode)
	}

	resp, body = decide(mod, `{"status":"approved","note":"checked the parish records"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d: %s", resp.StatusCode, body)
	}
	var d review.Decision
	json.Unmarshal(body, &d)
	if d.Status != suggest.StatusApproved || d.ModeratorID != "u-mod" {
		t.Errorf("decision = %+v", d)
	}
	if h.backend.decided["s1"] != suggest.StatusApproved {
		t.Error("backend did not receive the decision")
	}

	resp, body = decide(mod, `{"status":"rejected"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second decision status = %d: %s", resp.StatusCode, body)
	}

	resp, body = h.do(call{method: "GET", path: "/v1/decisions?limit=10", headers: mod})
	var list []review.Decision
	json.Unmarshal(body, &list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("decisions = %d %s", resp.StatusCode, body)
	}
	resp, _ = h.do(call{method: "GET", path: "/v1/decisions", headers: other})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-moderator decisions status = %d", resp.StatusCode)
	}
}

func TestViewStoreSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	s := newViewStore(func() *tree.View { return tree.NewView(nil) }, time.Minute, log.NewWithOptions(io.Discard, log.Options{}))
	s.now = func() time.Time { return now }

	idA, _ := s.open("", "")
	now = now.Add(45 * time.Second)
	idB, _ := s.open("", "u1")
	now = now.Add(30 * time.Second)

	if got := s.sweep(); got != 1 {
		t.Errorf("sweep() = %d, want 1", got)
	}
	if _, ok := s.get(idA, ""); ok {
		t.Error("idle view survived the sweep")
	}
	if _, ok := s.get(idB, "u1"); !ok {
		t.Error("recent view was swept")
	}
	if _, ok := s.get(idB, ""); ok {
		t.Error("view visible to a different viewer")
	}

	s.close()
	if s.len() != 0 {
		t.Errorf("close left %d views", s.len())
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without dependencies should fail")
	}
}
