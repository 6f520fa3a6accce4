package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

// Catalog is the part of the lookup client searches run against
type Catalog interface {
	All(ctx context.Context, opts lookup.ListOptions) (*lookup.Page, error)
	Search(ctx context.Context, freeText string, opts lookup.ListOptions) (*lookup.Page, error)
	ByQuery(ctx context.Context, query string, opts lookup.ListOptions) (*lookup.Page, error)
}

// Result is one fetched page together with the state it was ingested into
type Result struct {
	Datasets []lookup.DatasetInfo
	State    Snapshot
}

// Controller runs searches against the catalog. A new Submit cancels the
// search in flight and its results are dropped. Page changes are refused
// while any fetch is pending.
type Controller struct {
	state   *State
	catalog Catalog
	retrier *lookup.AuthRetrier

	mu      sync.Mutex
	gen     uint64
	pending bool
	cancel  context.CancelFunc
}

// NewController creates a controller. retrier may be nil.
func NewController(catalog Catalog, state *State, retrier *lookup.AuthRetrier) *Controller {
	if state == nil {
		state = NewState()
	}
	return &Controller{state: state, catalog: catalog, retrier: retrier}
}

func (c *Controller) State() *State {
	return c.state
}

// Pending reports whether a fetch is in flight
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Cancel aborts the fetch in flight, if any
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Submit starts a search for text on the first page. It supersedes any search in flight.
func (c *Controller) Submit(ctx context.Context, text string) (*Result, error) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state.SetSearchText(text)
	c.state.ResetPagination()
	ctx, gen := c.beginLocked(ctx)
	c.mu.Unlock()

	return c.run(ctx, gen)
}

// ShowPage fetches page (clamped) for the current search text
func (c *Controller) ShowPage(ctx context.Context, page int) (*Result, error) {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: a search is in progress", common.ErrBusy)
	}
	c.state.SetCurrentPage(page)
	ctx, gen := c.beginLocked(ctx)
	c.mu.Unlock()

	return c.run(ctx, gen)
}

// ShowNext fetches the page after the current one
func (c *Controller) ShowNext(ctx context.Context) (*Result, error) {
	return c.ShowPage(ctx, c.state.NextPage())
}

// ShowPrevious fetches the page before the current one
func (c *Controller) ShowPrevious(ctx context.Context) (*Result, error) {
	return c.ShowPage(ctx, c.state.PreviousPage())
}

// Refresh fetches the current page again
func (c *Controller) Refresh(ctx context.Context) (*Result, error) {
	return c.ShowPage(ctx, c.state.CurrentPage())
}

func (c *Controller) beginLocked(ctx context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	c.gen++
	c.pending = true
	c.cancel = cancel
	return ctx, c.gen
}

func (c *Controller) run(ctx context.Context, gen uint64) (*Result, error) {
	text := c.state.SearchText()
	opts := c.state.ListOptions()

	page, err := lookup.Retry(ctx, c.retrier, func(ctx context.Context) (*lookup.Page, error) {
		return c.fetch(ctx, text, opts)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		slog.Debug("Discarding superseded search", "search_text", text)
		return nil, context.Canceled
	}
	c.pending = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if err != nil {
		if !common.IsCancellation(err) {
			slog.Warn("Search failed", "search_text", text, "error", err)
		}
		return nil, err
	}

	c.state.IngestPagination(page.Pagination)
	c.state.IngestSorting(page.Sorting)
	return &Result{Datasets: page.Datasets, State: c.state.Snapshot()}, nil
}

// fetch routes JSON objects to the query endpoint, empty text to the full listing
// and anything else to free-text search.
func (c *Controller) fetch(ctx context.Context, text string, opts lookup.ListOptions) (*lookup.Page, error) {
	switch trimmed := strings.TrimSpace(text); {
	case trimmed == "":
		return c.catalog.All(ctx, opts)
	case lookup.IsQueryText(trimmed):
		return c.catalog.ByQuery(ctx, trimmed, opts)
	default:
		return c.catalog.Search(ctx, trimmed, opts)
	}
}
