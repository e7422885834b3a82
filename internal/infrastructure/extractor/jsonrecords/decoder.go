package jsonrecords

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// Decode accepts an array of objects, a single object, or an object wrapping
// the array under "records" or "items".
func Decode(raw []byte) ([]domain.SourceRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '[':
		var records []map[string]any
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
		return toRecords(records), nil
	case '{':
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("decode json object: %w", err)
		}
		for _, key := range []string{"records", "items"} {
			if nested, ok := obj[key].([]any); ok {
				return fromAny(nested)
			}
		}
		return toRecords([]map[string]any{obj}), nil
	default:
		return nil, fmt.Errorf("decode json: expected array or object")
	}
}

func fromAny(items []any) ([]domain.SourceRecord, error) {
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode json: item %d is not an object", i)
		}
		out = append(out, obj)
	}
	return toRecords(out), nil
}

func toRecords(objs []map[string]any) []domain.SourceRecord {
	out := make([]domain.SourceRecord, 0, len(objs))
	for _, obj := range objs {
		if obj == nil {
			continue
		}
		rec := make(domain.SourceRecord, len(obj))
		for k, v := range obj {
			rec[k] = normalizeNumber(v)
		}
		out = append(out, rec)
	}
	return out
}

// normalizeNumber keeps integers integral so ids like 1023 do not become 1023.0.
func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
