package lookup

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
)

// NormalizeQuery validates a mongo query document and re-encodes it as single-line JSON.
func NormalizeQuery(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", common.NewValidationError("query", text, "empty query")
	}

	var doc map[string]any
	if err := sonic.UnmarshalString(text, &doc); err != nil {
		return "", fmt.Errorf("%w: %v", common.NewValidationError("query", text, "not a JSON object"), err)
	}
	out, err := sonic.MarshalString(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode query: %w", err)
	}
	return out, nil
}

// IsQueryText reports whether text looks like a JSON query document rather than free text.
func IsQueryText(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return false
	}
	var doc map[string]any
	return sonic.UnmarshalString(text, &doc) == nil
}

// ParseDependencyKeys turns a dependency key setting into a list of readme paths.
// A list is used as is; a string is decoded as JSON once and must yield a list.
// Any other shape is ignored with a warning and reported as not ok.
func ParseDependencyKeys(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case []string:
		return v, true
	case []any:
		keys := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				slog.Warn("Ignoring dependency keys with non-string entry", "keys", raw)
				return nil, false
			}
			keys = append(keys, s)
		}
		return keys, true
	case string:
		var decoded any
		if err := sonic.UnmarshalString(v, &decoded); err != nil {
			slog.Warn("Ignoring dependency keys that are not valid JSON", "keys", v, "error", err)
			return nil, false
		}
		list, ok := decoded.([]any)
		if !ok {
			slog.Warn("Ignoring dependency keys that are not a list", "keys", v)
			return nil, false
		}
		return ParseDependencyKeys(list)
	default:
		slog.Warn("Ignoring dependency keys of unsupported type", "type", fmt.Sprintf("%T", raw))
		return nil, false
	}
}
