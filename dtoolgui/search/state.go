package search

import (
	"fmt"
	"slices"
	"sync"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

// Sort directions
const (
	Ascending  = 1
	Descending = -1
)

// DefaultSortField is the field of the reset sorting
const DefaultSortField = "uri"

// DefaultPageSize is the page size of a fresh State
const DefaultPageSize = 10

// PageSizes are the accepted page sizes
var PageSizes = []int{5, 10, 20, 50, 100}

// Snapshot is a copy of the search state
type Snapshot struct {
	SearchText   string
	PageSize     int
	CurrentPage  int
	FirstPage    int
	LastPage     int
	TotalPages   int
	TotalEntries int
	SortFields   []string
	SortOrder    []int
}

// State holds query text, pagination and sorting of the dataset list.
// Invariants: 1 <= FirstPage <= CurrentPage <= LastPage, len(SortOrder) == len(SortFields),
// SortOrder entries are +1 or -1, PageSize is one of PageSizes.
type State struct {
	mu sync.RWMutex

	searchText   string
	pageSize     int
	currentPage  int
	firstPage    int
	lastPage     int
	totalPages   int
	totalEntries int
	sortFields   []string
	sortOrder    []int
}

// NewState returns a state with a single page, the default page size and sorting by uri
func NewState() *State {
	s := &State{pageSize: DefaultPageSize}
	s.resetPaginationLocked()
	s.resetSortingLocked()
	return s
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		SearchText:   s.searchText,
		PageSize:     s.pageSize,
		CurrentPage:  s.currentPage,
		FirstPage:    s.firstPage,
		LastPage:     s.lastPage,
		TotalPages:   s.totalPages,
		TotalEntries: s.totalEntries,
		SortFields:   slices.Clone(s.sortFields),
		SortOrder:    slices.Clone(s.sortOrder),
	}
}

// ListOptions renders the state as lookup query parameters
func (s *State) ListOptions() lookup.ListOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup.ListOptions{
		Page:       s.currentPage,
		PageSize:   s.pageSize,
		SortFields: slices.Clone(s.sortFields),
		SortOrder:  slices.Clone(s.sortOrder),
	}
}

func (s *State) SearchText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchText
}

// SetSearchText stores the query and returns to the first page
func (s *State) SetSearchText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchText = text
	s.currentPage = s.firstPage
}

func (s *State) PageSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageSize
}

// SetPageSize accepts one of PageSizes and returns to the first page
func (s *State) SetPageSize(size int) error {
	if !slices.Contains(PageSizes, size) {
		return common.NewValidationError("page size", fmt.Sprint(size), fmt.Sprintf("must be one of %v", PageSizes))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = size
	s.currentPage = s.firstPage
	return nil
}

// SetSorting replaces the sort keys and returns to the first page
func (s *State) SetSorting(fields []string, order []int) error {
	if len(fields) != len(order) {
		return common.NewValidationError("sort order", fmt.Sprint(order),
			fmt.Sprintf("has %d entries for %d fields", len(order), len(fields)))
	}
	if len(fields) == 0 {
		return common.NewValidationError("sort fields", "", "cannot be empty")
	}
	for i, o := range order {
		if o != Ascending && o != Descending {
			return common.NewValidationError("sort order", fmt.Sprint(o), "must be +1 or -1")
		}
		if fields[i] == "" {
			return common.NewValidationError("sort fields", "", "field name cannot be empty")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortFields = slices.Clone(fields)
	s.sortOrder = slices.Clone(order)
	s.currentPage = s.firstPage
	return nil
}

// Sorting returns the current sort keys
func (s *State) Sorting() ([]string, []int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sortFields), slices.Clone(s.sortOrder)
}

// ResetSorting sorts by uri ascending
func (s *State) ResetSorting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetSortingLocked()
}

func (s *State) resetSortingLocked() {
	s.sortFields = []string{DefaultSortField}
	s.sortOrder = []int{Ascending}
}

// ResetPagination restores a single empty page
func (s *State) ResetPagination() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetPaginationLocked()
}

func (s *State) resetPaginationLocked() {
	s.firstPage = 1
	s.lastPage = 1
	s.currentPage = 1
	s.totalPages = 1
	s.totalEntries = 0
}

func (s *State) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// SetCurrentPage moves to page, clamped to [FirstPage, LastPage]
func (s *State) SetCurrentPage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPage = s.clampLocked(page)
	return s.currentPage
}

func (s *State) clampLocked(page int) int {
	return max(s.firstPage, min(page, s.lastPage))
}

// NextPage is the page after the current one, bounded by LastPage
func (s *State) NextPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return min(s.currentPage+1, s.lastPage)
}

// PreviousPage is the page before the current one, bounded by FirstPage
func (s *State) PreviousPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return max(s.currentPage-1, s.firstPage)
}

// IngestPagination adopts the server's pagination. Missing keys default to
// first_page=1, last_page=1, page=1, total=0, total_pages=1.
func (s *State) IngestPagination(p lookup.Pagination) {
	get := func(key string, def int) int {
		if v, ok := p[key]; ok {
			return v
		}
		return def
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstPage = max(1, get("first_page", 1))
	s.lastPage = max(s.firstPage, get("last_page", 1))
	s.totalPages = max(1, get("total_pages", 1))
	s.totalEntries = max(0, get("total", 0))
	s.currentPage = s.clampLocked(get("page", 1))
}

// IngestSorting adopts the sort the server applied. Inconsistent reports are ignored.
func (s *State) IngestSorting(sorting lookup.Sorting) {
	if len(sorting.Fields) == 0 || len(sorting.Fields) != len(sorting.Order) {
		return
	}
	for _, o := range sorting.Order {
		if o != Ascending && o != Descending {
			return
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortFields = slices.Clone(sorting.Fields)
	s.sortOrder = slices.Clone(sorting.Order)
}
