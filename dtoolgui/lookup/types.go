package lookup

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// DatasetInfo is one dataset record as returned by the lookup server.
// Keys the client does not model are kept in Extra.
type DatasetInfo struct {
	UUID          string
	Name          string
	BaseURI       string
	URI           string
	Creator       string
	CreatedAt     any
	FrozenAt      any
	SizeInBytes   *int64 // nil when unknown
	NumberOfItems int
	Tags          []string
	Annotations   map[string]any
	DerivedFrom   []string // nil when the record carries no derived_from
	Extra         map[string]any
}

// Pagination holds the integer fields of a pagination response
// (total, total_pages, first_page, last_page, page, next_page, previous_page).
// Absent keys are absent from the map.
type Pagination map[string]int

// Sorting is the applied sort: parallel field and order (+1 ascending, -1 descending) lists.
type Sorting struct {
	Fields []string
	Order  []int
}

// ListOptions carries pagination and sorting query parameters. Zero values are omitted.
type ListOptions struct {
	Page       int
	PageSize   int
	SortFields []string
	SortOrder  []int
}

// Page is one page of datasets together with the server's pagination and sorting.
type Page struct {
	Datasets   []DatasetInfo
	Pagination Pagination
	Sorting    Sorting
}

var knownDatasetKeys = map[string]struct{}{
	"uuid": {}, "name": {}, "base_uri": {}, "uri": {}, "creator_username": {},
	"created_at": {}, "frozen_at": {}, "size_in_bytes": {}, "number_of_items": {},
	"tags": {}, "annotations": {}, "derived_from": {},
}

// ParseDatasetInfo converts a decoded JSON record. Records without a uuid are malformed.
func ParseDatasetInfo(record map[string]any) (DatasetInfo, error) {
	uuid, _ := record["uuid"].(string)
	if uuid == "" {
		return DatasetInfo{}, fmt.Errorf("%w: dataset record without uuid", common.ErrMalformedResponse)
	}

	info := DatasetInfo{
		UUID:      uuid,
		Name:      stringField(record, "name"),
		BaseURI:   stringField(record, "base_uri"),
		URI:       stringField(record, "uri"),
		Creator:   stringField(record, "creator_username"),
		CreatedAt: record["created_at"],
		FrozenAt:  record["frozen_at"],
	}

	if size, ok := toInt64(record["size_in_bytes"]); ok {
		if size < 0 {
			slog.Warn("Ignoring negative dataset size", "uuid", uuid, "size_in_bytes", size)
		} else {
			info.SizeInBytes = &size
		}
	}
	if n, ok := toInt64(record["number_of_items"]); ok {
		info.NumberOfItems = int(n)
	}

	if tags, ok := record["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				info.Tags = append(info.Tags, s)
			}
		}
	}
	if ann, ok := record["annotations"].(map[string]any); ok {
		info.Annotations = ann
	}

	if raw, present := record["derived_from"]; present && raw != nil {
		info.DerivedFrom = parseDerivedFrom(raw)
	}

	for k, v := range record {
		if _, known := knownDatasetKeys[k]; known {
			continue
		}
		if info.Extra == nil {
			info.Extra = make(map[string]any)
		}
		info.Extra[k] = v
	}

	return info, nil
}

// parseDerivedFrom accepts a list of uuid strings or of {uuid: ...} objects.
// Entries are passed through unvalidated.
func parseDerivedFrom(raw any) []string {
	switch v := raw.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			switch e := entry.(type) {
			case string:
				out = append(out, e)
			case map[string]any:
				out = append(out, fmt.Sprint(e["uuid"]))
			default:
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return []string{fmt.Sprint(v)}
	}
}

// ToMap renders the record back into its wire shape.
func (d DatasetInfo) ToMap() map[string]any {
	out := make(map[string]any, len(d.Extra)+12)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["uuid"] = d.UUID
	out["name"] = d.Name
	out["base_uri"] = d.BaseURI
	out["uri"] = d.URI
	out["creator_username"] = d.Creator
	out["created_at"] = d.CreatedAt
	out["frozen_at"] = d.FrozenAt
	if d.SizeInBytes != nil {
		out["size_in_bytes"] = *d.SizeInBytes
	}
	out["number_of_items"] = d.NumberOfItems
	if d.Tags != nil {
		out["tags"] = d.Tags
	}
	if d.Annotations != nil {
		out["annotations"] = d.Annotations
	}
	if d.DerivedFrom != nil {
		out["derived_from"] = d.DerivedFrom
	}
	return out
}

func stringField(record map[string]any, key string) string {
	switch v := record[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		out, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return out, true
	default:
		return 0, false
	}
}

func paginationFromMap(raw map[string]any) Pagination {
	out := make(Pagination, len(raw))
	for k, v := range raw {
		if n, ok := toInt64(v); ok {
			out[k] = int(n)
		}
	}
	return out
}
