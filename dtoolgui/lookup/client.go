package lookup

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gopkg.in/yaml.v3"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
)

// Options configures a Client
type Options struct {
	// Token is used when no config store is given
	Token     string
	VerifySSL bool
	Timeout   time.Duration
	// Store supplies and persists the bearer token. The client follows its change events.
	Store   *config.Store
	Metrics *common.Metrics
}

// Client talks to a dtool lookup server
type Client struct {
	mu      sync.RWMutex
	baseURL string
	token   string

	http        *client.Client
	timeout     time.Duration
	store       *config.Store
	metrics     *common.Metrics
	unsubscribe func()
}

// NewClient creates a lookup client for the server at baseURL
func NewClient(baseURL string, opts Options) (*Client, error) {
	normalized, err := normalizeServerURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lookup server URL: %w", err)
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(10*time.Second),
		client.WithMaxIdleConnDuration(60*time.Second),
		client.WithDialer(standard.NewDialer()),
		client.WithTLSConfig(&tls.Config{InsecureSkipVerify: !opts.VerifySSL}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: normalized,
		token:   opts.Token,
		http:    hc,
		timeout: opts.Timeout,
		store:   opts.Store,
		metrics: opts.Metrics,
	}

	if c.store != nil {
		if tok, ok := c.store.Get(config.KeyLookupServerToken); ok {
			c.token = tok
		}
		c.unsubscribe = c.store.Broker().Subscribe(internal.ConfigChangedTopic, c.onConfigChanged)
	}

	return c, nil
}

// NewClientFromConfig creates a client using the lookup server URL and token of the dtool config
func NewClientFromConfig(store *config.Store, verifySSL bool, metrics *common.Metrics) (*Client, error) {
	baseURL := store.GetDefault(config.KeyLookupServerURL, internal.DefaultLookupURL)
	return NewClient(baseURL, Options{VerifySSL: verifySSL, Store: store, Metrics: metrics})
}

// normalizeServerURL ensures a scheme and strips the trailing slash
func normalizeServerURL(server string) (string, error) {
	server = strings.TrimSpace(server)
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", common.ErrValidation, server)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

func (c *Client) onConfigChanged(ev config.Event) {
	// external edits carry no key list
	if len(ev.Keys) > 0 && !slices.Contains(ev.Keys, config.KeyLookupServerToken) {
		return
	}
	tok := c.store.GetDefault(config.KeyLookupServerToken, "")
	c.mu.Lock()
	changed := tok != c.token
	c.token = tok
	c.mu.Unlock()
	if changed {
		slog.Debug("Lookup token reloaded from config", "source", ev.Source)
	}
}

// Close detaches the client from config change events
func (c *Client) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// BaseURL returns the normalized server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the bearer token and persists it when a config store is attached.
func (c *Client) SetToken(token string) error {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Set(config.KeyLookupServerToken, token); err != nil {
			return fmt.Errorf("failed to persist lookup token: %w", err)
		}
	}
	return nil
}

// Authenticate posts credentials to authURL and stores the returned token.
func (c *Client) Authenticate(ctx context.Context, authURL, username, password string) (string, error) {
	start := time.Now()
	token, err := c.authenticate(ctx, authURL, username, password)
	c.metrics.ObserveLookup("authenticate", start, err)
	if err != nil {
		return "", err
	}

	if err := c.SetToken(token); err != nil {
		return "", err
	}
	slog.Info("Authenticated against lookup server", "username", username)
	return token, nil
}

func (c *Client) authenticate(ctx context.Context, authURL, username, password string) (string, error) {
	body, err := sonic.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}

	resp, err := c.doWithToken(ctx, consts.MethodPost, authURL, body, "")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != consts.StatusOK {
		return "", fmt.Errorf("%w: %w", common.ErrAuthFailure, &common.HTTPError{
			Status: resp.StatusCode(), Route: "authenticate", Body: string(resp.Body()),
		})
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := sonic.Unmarshal(resp.Body(), &out); err != nil || out.Token == "" {
		return "", fmt.Errorf("%w: response carries no token", common.ErrAuthFailure)
	}
	return out.Token, nil
}

// Config returns the server configuration (GET /config/info)
func (c *Client) Config(ctx context.Context) (map[string]any, error) {
	return c.getMapping(ctx, "config", endpointConfigInfo)
}

// Versions returns server and plugin versions (GET /config/versions)
func (c *Client) Versions(ctx context.Context) (map[string]any, error) {
	return c.getMapping(ctx, "versions", endpointConfigVersions)
}

// Summary returns catalog statistics for the current user (GET /dataset/summary)
func (c *Client) Summary(ctx context.Context) (map[string]any, error) {
	return c.getMapping(ctx, "summary", endpointSummary)
}

// All lists all datasets visible to the current user
func (c *Client) All(ctx context.Context, opts ListOptions) (*Page, error) {
	return c.listPage(ctx, "all", consts.MethodGet, endpointDatasetList, nil, opts)
}

// Search runs a free text search
func (c *Client) Search(ctx context.Context, freeText string, opts ListOptions) (*Page, error) {
	body, err := sonic.Marshal(map[string]string{"free_text": freeText})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search: %w", err)
	}
	return c.listPage(ctx, "search", consts.MethodPost, endpointDatasetSearch, body, opts)
}

// ByQuery runs a mongo query. The query text is normalized to single-line JSON first.
func (c *Client) ByQuery(ctx context.Context, query string, opts ListOptions) (*Page, error) {
	normalized, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	body := []byte(`{"query":` + normalized + `}`)
	return c.listPage(ctx, "query", consts.MethodPost, endpointMongoQuery, body, opts)
}

// ByUUID returns the dataset with the given uuid. A dataset registered under several
// base URIs is reported once, as its first registration; an unknown uuid yields no records.
func (c *Client) ByUUID(ctx context.Context, uuid string) ([]DatasetInfo, error) {
	if err := common.ValidateUUID(uuid); err != nil {
		return nil, err
	}
	page, err := c.listPage(ctx, "by_uuid", consts.MethodGet, fmt.Sprintf(endpointDatasetLookup, uuid), nil, ListOptions{})
	if err != nil {
		return nil, err
	}
	return page.Datasets, nil
}

// Graph returns the datasets connected to uuid by derivation.
// Without dependency keys the server default is used (GET); otherwise the keys are posted.
// Duplicate records are kept as returned.
func (c *Client) Graph(ctx context.Context, uuid string, dependencyKeys any) ([]DatasetInfo, error) {
	if err := common.ValidateUUID(uuid); err != nil {
		return nil, err
	}

	route := fmt.Sprintf(endpointGraphLookup, uuid)
	method := consts.MethodGet
	var body []byte
	if keys, ok := ParseDependencyKeys(dependencyKeys); ok {
		encoded, err := sonic.Marshal(map[string][]string{"dependency_keys": keys})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dependency keys: %w", err)
		}
		method = consts.MethodPost
		body = encoded
	}

	start := time.Now()
	resp, err := c.authorized(ctx, method, route, body, nil)
	if err != nil {
		c.metrics.ObserveLookup("graph", start, err)
		return nil, err
	}
	records, _, err := decodeListBody(resp.Body())
	c.metrics.ObserveLookup("graph", start, err)
	if err != nil {
		return nil, err
	}
	return parseRecords(records, false), nil
}

// Readme returns the parsed readme of the dataset at uri
func (c *Client) Readme(ctx context.Context, uri string) (map[string]any, error) {
	raw, err := c.RawReadme(ctx, uri)
	if err != nil {
		return nil, err
	}
	return decodeYAMLMapping(raw)
}

// RawReadme returns the readme body of the dataset at uri as sent by the server
func (c *Client) RawReadme(ctx context.Context, uri string) ([]byte, error) {
	return c.postURI(ctx, "readme", endpointDatasetReadme, uri)
}

// Manifest returns the parsed manifest of the dataset at uri
func (c *Client) Manifest(ctx context.Context, uri string) (map[string]any, error) {
	raw, err := c.RawManifest(ctx, uri)
	if err != nil {
		return nil, err
	}
	return decodeYAMLMapping(raw)
}

// RawManifest returns the manifest body of the dataset at uri as sent by the server
func (c *Client) RawManifest(ctx context.Context, uri string) ([]byte, error) {
	return c.postURI(ctx, "manifest", endpointManifest, uri)
}

// ListBaseURIs returns the base URIs registered on the server
func (c *Client) ListBaseURIs(ctx context.Context) ([]map[string]any, error) {
	start := time.Now()
	resp, err := c.authorized(ctx, consts.MethodGet, endpointBaseURIs, nil, nil)
	if err != nil {
		c.metrics.ObserveLookup("base_uris", start, err)
		return nil, err
	}
	records, _, err := decodeListBody(resp.Body())
	c.metrics.ObserveLookup("base_uris", start, err)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		switch v := r.(type) {
		case map[string]any:
			out = append(out, v)
		case string:
			out = append(out, map[string]any{"base_uri": v})
		default:
			slog.Warn("Dropping malformed base URI record", "record", r)
		}
	}
	return out, nil
}

// UserInfo returns the user record, including search_permissions_on_base_uris
func (c *Client) UserInfo(ctx context.Context, username string) (map[string]any, error) {
	if err := common.ValidateRequiredString(username, "username"); err != nil {
		return nil, err
	}
	return c.getMapping(ctx, "user_info", fmt.Sprintf(endpointUserInfo, url.PathEscape(username)))
}

func (c *Client) getMapping(ctx context.Context, name, route string) (map[string]any, error) {
	start := time.Now()
	resp, err := c.authorized(ctx, consts.MethodGet, route, nil, nil)
	if err != nil {
		c.metrics.ObserveLookup(name, start, err)
		return nil, err
	}
	out, err := decodeYAMLMapping(resp.Body())
	c.metrics.ObserveLookup(name, start, err)
	return out, err
}

func (c *Client) postURI(ctx context.Context, name, route, uri string) ([]byte, error) {
	if err := common.ValidateRequiredString(uri, "uri"); err != nil {
		return nil, err
	}
	body, err := sonic.Marshal(map[string]string{"uri": uri})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal uri: %w", err)
	}

	start := time.Now()
	resp, err := c.authorized(ctx, consts.MethodPost, route, body, nil)
	c.metrics.ObserveLookup(name, start, err)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (c *Client) listPage(ctx context.Context, name, method, route string, body []byte, opts ListOptions) (*Page, error) {
	start := time.Now()
	resp, err := c.authorized(ctx, method, route, body, listQuery(opts))
	if err != nil {
		c.metrics.ObserveLookup(name, start, err)
		return nil, err
	}

	records, envelope, err := decodeListBody(resp.Body())
	c.metrics.ObserveLookup(name, start, err)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Datasets: parseRecords(records, true),
		Sorting:  Sorting{Fields: opts.SortFields, Order: opts.SortOrder},
	}

	if raw := resp.Header.Peek(headerPagination); len(raw) > 0 {
		var p map[string]any
		if err := sonic.Unmarshal(raw, &p); err != nil {
			slog.Warn("Ignoring malformed pagination header", "route", route, "error", err)
		} else {
			page.Pagination = paginationFromMap(p)
		}
	} else if p, ok := envelope["pagination"].(map[string]any); ok {
		page.Pagination = paginationFromMap(p)
	}

	if raw := resp.Header.Peek(headerSort); len(raw) > 0 {
		var s map[string]any
		if err := sonic.Unmarshal(raw, &s); err == nil {
			applySorting(&page.Sorting, s)
		}
	} else if s, ok := envelope["sorting"].(map[string]any); ok {
		applySorting(&page.Sorting, s)
	}

	return page, nil
}

func listQuery(opts ListOptions) url.Values {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	for _, f := range opts.SortFields {
		q.Add("sort_fields", f)
	}
	for _, o := range opts.SortOrder {
		q.Add("sort_order", strconv.Itoa(o))
	}
	return q
}

func applySorting(s *Sorting, raw map[string]any) {
	fields, ok := raw["sort_fields"].([]any)
	if !ok {
		return
	}
	order, _ := raw["sort_order"].([]any)
	if len(order) != len(fields) {
		slog.Warn("Ignoring sorting with mismatched field and order lengths", "sorting", raw)
		return
	}
	out := Sorting{Fields: make([]string, 0, len(fields)), Order: make([]int, 0, len(order))}
	for i := range fields {
		f, _ := fields[i].(string)
		o, _ := toInt64(order[i])
		out.Fields = append(out.Fields, f)
		out.Order = append(out.Order, int(o))
	}
	*s = out
}

// authorized sends a request carrying the bearer token and fails on non-2xx responses.
func (c *Client) authorized(ctx context.Context, method, route string, body []byte, query url.Values) (*protocol.Response, error) {
	token := c.Token()
	if token == "" {
		return nil, fmt.Errorf("%w: no lookup token configured", common.ErrAuthFailure)
	}

	target := c.baseURL + route
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.doWithToken(ctx, method, target, body, token)
	if err != nil {
		return nil, err
	}
	if status := resp.StatusCode(); status < 200 || status > 299 {
		return nil, &common.HTTPError{Status: status, Route: route, Body: string(resp.Body())}
	}
	return resp, nil
}

// doWithToken runs the request on its own goroutine so that cancelling ctx returns
// immediately. Request and response are not pooled since an abandoned request may
// still be writing into them.
func (c *Client) doWithToken(ctx context.Context, method, target string, body []byte, token string) (*protocol.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &protocol.Request{}
	resp := &protocol.Response{}
	req.SetMethod(method)
	req.SetRequestURI(target)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.SetContentTypeBytes([]byte("application/json"))
		req.SetBody(body)
	}

	slog.Debug("Lookup request", "method", method, "url", target)

	done := make(chan error, 1)
	go func() {
		done <- c.http.Do(ctx, req, resp)
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s: %w", common.ErrTransport, method, target, ctx.Err())
		}
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", common.ErrTransport, method, target, err)
		}
	}
	return resp, nil
}

// decodeListBody accepts a bare JSON list or an envelope {data|datasets: [...], pagination: {...}}.
func decodeListBody(body []byte) ([]any, map[string]any, error) {
	var decoded any
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	switch v := decoded.(type) {
	case []any:
		return v, nil, nil
	case map[string]any:
		for _, key := range []string{"data", "datasets", "items"} {
			if list, ok := v[key].([]any); ok {
				return list, v, nil
			}
		}
		return nil, nil, fmt.Errorf("%w: response object carries no dataset list", common.ErrMalformedResponse)
	case nil:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unexpected response of type %T", common.ErrMalformedResponse, decoded)
	}
}

// parseRecords drops malformed records with a warning. With dedupe set,
// later records repeating a uuid are dropped as well.
func parseRecords(records []any, dedupe bool) []DatasetInfo {
	out := make([]DatasetInfo, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		m, ok := r.(map[string]any)
		if !ok {
			slog.Warn("Dropping malformed dataset record", "record", r)
			continue
		}
		info, err := ParseDatasetInfo(m)
		if err != nil {
			slog.Warn("Dropping malformed dataset record", "error", err)
			continue
		}
		if dedupe {
			if _, dup := seen[info.UUID]; dup {
				continue
			}
			seen[info.UUID] = struct{}{}
		}
		out = append(out, info)
	}
	return out
}

// decodeYAMLMapping parses a YAML (or JSON) body into a mapping.
func decodeYAMLMapping(body []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := yaml.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return out, nil
}
