package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONExtractor flattens a JSON document into indented "key: value" lines.
type JSONExtractor struct{}

func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{}
}

func (e *JSONExtractor) Name() string { return "json" }

func (e *JSONExtractor) Extensions() []string { return []string{".json"} }

// Extract keeps document order. Nulls and empty strings are dropped.
func (e *JSONExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}

	var sb strings.Builder
	root := gjson.ParseBytes(data)

	switch {
	case root.IsArray():
		for i, item := range root.Array() {
			writeJSONValue(&sb, fmt.Sprintf("item %d", i+1), item, 0)
		}
	case root.IsObject():
		root.ForEach(func(key, value gjson.Result) bool {
			writeJSONValue(&sb, key.String(), value, 0)
			return true
		})
	default:
		sb.WriteString(root.String())
	}

	return checkText(sb.String())
}

func writeJSONValue(sb *strings.Builder, key string, value gjson.Result, depth int) {
	indent := strings.Repeat("  ", depth)

	switch {
	case value.IsObject():
		fmt.Fprintf(sb, "%s%s:\n", indent, key)
		value.ForEach(func(k, v gjson.Result) bool {
			writeJSONValue(sb, k.String(), v, depth+1)
			return true
		})
	case value.IsArray():
		items := value.Array()
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(sb, "%s%s:\n", indent, key)
		for _, item := range items {
			if item.IsObject() || item.IsArray() {
				writeJSONValue(sb, "-", item, depth+1)
				continue
			}
			if s := item.String(); s != "" {
				fmt.Fprintf(sb, "%s  - %s\n", indent, s)
			}
		}
	case value.Type == gjson.Null:
		// dropped
	default:
		if s := value.String(); s != "" {
			fmt.Fprintf(sb, "%s%s: %s\n", indent, key, s)
		}
	}
}
