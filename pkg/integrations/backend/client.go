package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rootline/rootline/pkg/buildinfo"
	"github.com/rootline/rootline/pkg/cache"
	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/integrations"
	"github.com/rootline/rootline/pkg/profile"
	"github.com/rootline/rootline/pkg/refs"
	"github.com/rootline/rootline/pkg/review"
	"github.com/rootline/rootline/pkg/session"
	"github.com/rootline/rootline/pkg/suggest"
	"github.com/rootline/rootline/pkg/tree"
)

// Options configures a [Client].
type Options struct {
	// BaseURL is the backend root, e.g. "https://genealogy.example.org".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Cache stores reference records. Nil disables caching.
	Cache cache.Cache

	// Keyer names cache entries. Defaults to [cache.NewDefaultKeyer].
	Keyer cache.Keyer

	// RefTTL is how long reference records stay cached. Defaults to
	// [cache.TTLLabel].
	RefTTL time.Duration

	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client

	Logger *log.Logger
}

// Client talks to the genealogy backend.
type Client struct {
	*integrations.Client
	baseURL string
	keyer   cache.Keyer
	logger  *log.Logger
}

var (
	_ tree.Fetcher         = (*Client)(nil)
	_ tree.PictureUploader = (*Client)(nil)
	_ refs.Lookup          = (*Client)(nil)
	_ suggest.Backend      = (*Client)(nil)
	_ review.Backend       = (*Client)(nil)
)

// NewClient returns a client for opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	if err := rlerrors.ValidateURL(opts.BaseURL); err != nil {
		return nil, err
	}
	ttl := opts.RefTTL
	if ttl <= 0 {
		ttl = cache.TTLLabel
	}
	keyer := opts.Keyer
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	headers := integrations.BearerHeaders(opts.Token)
	headers["User-Agent"] = buildinfo.UserAgent()

	c := &Client{
		Client:  integrations.NewClient(opts.Cache, "", ttl, headers),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		keyer:   keyer,
		logger:  logger,
	}
	if opts.HTTPClient != nil {
		c.SetHTTPClient(opts.HTTPClient)
	}
	return c, nil
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(segments ...string) string {
	return integrations.JoinURL(c.baseURL, segments...)
}

// FetchTraversal fetches the bounded traversal described by req.
func (c *Client) FetchTraversal(ctx context.Context, req tree.Request) (*tree.Traversal, error) {
	q := url.Values{}
	q.Set("up", strconv.Itoa(req.Up))
	q.Set("down", strconv.Itoa(req.Down))
	q.Set("max", strconv.Itoa(req.MaxNodes))

	var t tree.Traversal
	if err := c.Get(ctx, c.url("api", "tree", req.RootRef)+"?"+q.Encode(), &t); err != nil {
		return nil, translate(err, rlerrors.ErrCodeProfileNotFound, "traversal for %s", req.RootRef)
	}
	if len(t.Nodes) == 0 {
		return nil, nil
	}
	return &t, nil
}

// FetchSnapshot fetches the current profile of the person behind treeRef.
func (c *Client) FetchSnapshot(ctx context.Context, treeRef string) (*profile.Snapshot, error) {
	var s profile.Snapshot
	if err := c.Get(ctx, c.url("api", "profiles", treeRef), &s); err != nil {
		return nil, translate(err, rlerrors.ErrCodeProfileNotFound, "profile %s", treeRef)
	}
	if s.TreeRef == "" {
		s.TreeRef = treeRef
	}
	return &s, nil
}

// FetchSummary fetches the short description of the person behind treeRef.
func (c *Client) FetchSummary(ctx context.Context, treeRef string) (*profile.Summary, error) {
	var s profile.Summary
	if err := c.Get(ctx, c.url("api", "profiles", treeRef, "summary"), &s); err != nil {
		return nil, translate(err, rlerrors.ErrCodeProfileNotFound, "profile %s", treeRef)
	}
	return &s, nil
}

// FetchSummaryByID is [Client.FetchSummary] for a backend profile id.
func (c *Client) FetchSummaryByID(ctx context.Context, profileID string) (*profile.Summary, error) {
	var s profile.Summary
	if err := c.Get(ctx, c.url("api", "profiles", "by-id", profileID, "summary"), &s); err != nil {
		return nil, translate(err, rlerrors.ErrCodeProfileNotFound, "profile id %s", profileID)
	}
	return &s, nil
}

// Place fetches a place record.
func (c *Client) Place(ctx context.Context, id string) (*refs.Place, error) {
	var p refs.Place
	if err := c.reference(ctx, refs.KindPlace, "places", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Cemetery fetches a cemetery record with its place.
func (c *Client) Cemetery(ctx context.Context, id string) (*refs.Cemetery, error) {
	var cem refs.Cemetery
	if err := c.reference(ctx, refs.KindCemetery, "cemeteries", id, &cem); err != nil {
		return nil, err
	}
	return &cem, nil
}

// Ethnicity fetches an ethnicity record.
func (c *Client) Ethnicity(ctx context.Context, id string) (*refs.Ethnicity, error) {
	var e refs.Ethnicity
	if err := c.reference(ctx, refs.KindEthnicity, "ethnicities", id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) reference(ctx context.Context, kind refs.Kind, path, id string, v any) error {
	key := c.keyer.HTTPKey(string(kind), id)
	err := c.Cached(ctx, key, false, v, func() error {
		return c.Get(ctx, c.url("api", path, id), v)
	})
	if err != nil {
		return translate(err, rlerrors.ErrCodeNotFound, "%s %s", kind, id)
	}
	return nil
}

// UploadPicture uploads image as the new picture of the person behind ref and
// returns its URL.
func (c *Client) UploadPicture(ctx context.Context, ref, filename string, image io.Reader) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.PostFile(ctx, c.url("api", "profiles", ref, "picture"), "image", filename, image, &resp); err != nil {
		return "", translate(err, rlerrors.ErrCodeProfileNotFound, "upload picture for %s", ref)
	}
	if resp.URL == "" {
		return "", rlerrors.New(rlerrors.ErrCodeInternal, "upload picture for %s: backend returned no url", ref)
	}
	return resp.URL, nil
}

// Suggestions lists suggestions with the given status. An empty status lists
// all of them.
func (c *Client) Suggestions(ctx context.Context, status suggest.Status) ([]suggest.Suggestion, error) {
	u := c.url("api", "suggestions")
	if status != "" {
		u += "?status=" + integrations.URLEncode(string(status))
	}
	var out []suggest.Suggestion
	if err := c.Get(ctx, u, &out); err != nil {
		return nil, translate(err, rlerrors.ErrCodeNotFound, "list suggestions")
	}
	return out, nil
}

// Suggestion fetches one suggestion.
func (c *Client) Suggestion(ctx context.Context, id string) (*suggest.Suggestion, error) {
	var s suggest.Suggestion
	if err := c.Get(ctx, c.url("api", "suggestions", id), &s); err != nil {
		return nil, translate(err, rlerrors.ErrCodeSuggestionNotFound, "suggestion %s", id)
	}
	return &s, nil
}

// SubmitDecision approves or rejects a suggestion on the backend.
func (c *Client) SubmitDecision(ctx context.Context, id string, status suggest.Status, note string) error {
	body := struct {
		Status suggest.Status `json:"status"`
		Note   string         `json:"note,omitempty"`
	}{status, note}
	if err := c.PostJSON(ctx, c.url("api", "suggestions", id, "decision"), body, nil); err != nil {
		return translate(err, rlerrors.ErrCodeSuggestionNotFound, "decide suggestion %s", id)
	}
	c.logger.Debug("decision submitted", "suggestion", id, "status", status)
	return nil
}

// Viewer returns the identity behind the client's token.
func (c *Client) Viewer(ctx context.Context) (session.Viewer, error) {
	return c.authenticate(ctx, nil)
}

// Authenticate returns the identity behind token, which need not be the
// client's own.
func (c *Client) Authenticate(ctx context.Context, token string) (session.Viewer, error) {
	if token == "" {
		return session.Viewer{}, rlerrors.New(rlerrors.ErrCodeUnauthorized, "token is required")
	}
	return c.authenticate(ctx, map[string]string{"Authorization": "Bearer " + token})
}

func (c *Client) authenticate(ctx context.Context, headers map[string]string) (session.Viewer, error) {
	var me struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Moderator bool   `json:"moderator"`
	}
	if err := c.GetWithHeaders(ctx, c.url("api", "me"), headers, &me); err != nil {
		return session.Viewer{}, translate(err, rlerrors.ErrCodeSessionNotFound, "current viewer")
	}
	if me.ID == "" {
		return session.Viewer{}, rlerrors.New(rlerrors.ErrCodeUnauthorized, "backend returned no user id")
	}
	return session.Viewer{ID: me.ID, Name: me.Name, Moderator: me.Moderator}, nil
}

// translate maps transport errors to rootline error codes. notFound is the
// code used for 404 responses.
func translate(err error, notFound rlerrors.Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	var code rlerrors.Code
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = rlerrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, integrations.ErrNotFound):
		code = notFound
	case errors.Is(err, integrations.ErrUnauthorized):
		code = rlerrors.ErrCodeUnauthorized
	case errors.Is(err, integrations.ErrForbidden):
		code = rlerrors.ErrCodeForbidden
	case errors.Is(err, integrations.ErrConflict):
		code = rlerrors.ErrCodeConflict
	case errors.Is(err, integrations.ErrRateLimited):
		code = rlerrors.ErrCodeRateLimited
	case errors.Is(err, integrations.ErrNetwork), errors.Is(err, integrations.ErrUnavailable):
		code = rlerrors.ErrCodeNetwork
	default:
		code = rlerrors.ErrCodeInternal
	}
	return rlerrors.Wrap(code, err, "%s", what)
}
