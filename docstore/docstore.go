// Package docstore is the real-time document store the players relay
// non-authoritative game state through: keyed JSON documents with merge
// writes, live subscriptions and simple collection queries.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrNotFound = errors.New("document not found")

// Doc is a JSON object as stored in the relay.
type Doc map[string]any

// Store is the client-facing document store.
type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	// Set replaces the document, or deep-merges doc into it when merge is set.
	Set(ctx context.Context, collection, id string, doc Doc, merge bool) error
	// Watch calls fn with the current document, if any, and with every later
	// version until the returned func is called.
	Watch(ctx context.Context, collection, id string, fn func(Doc)) (func(), error)
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
}

type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
)

type Filter struct {
	Field string `json:"field"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

type Query struct {
	Where   []Filter `json:"where,omitempty"`
	OrderBy string   `json:"orderBy,omitempty"`
	Desc    bool     `json:"desc,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// IncrementKey marks a merge value that adds to the stored number instead of
// replacing it.
const IncrementKey = "$increment"

// Increment returns a field value that adds n to the stored number when
// merged. A missing field counts as zero.
func Increment(n int64) map[string]any {
	return map[string]any{IncrementKey: n}
}

// Encode converts a tagged struct into a Doc.
func Encode(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return d, nil
}

// Decode fills out from a Doc.
func Decode(d Doc, out any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}

// Merge deep-merges src into dst: nested objects merge key by key, Increment
// values add to the number stored, every other value (arrays included)
// replaces what was there.
func Merge(dst, src Doc) Doc {
	if dst == nil {
		dst = Doc{}
	}
	for k, v := range src {
		if n, ok := increment(v); ok {
			cur, _ := toFloat(dst[k])
			dst[k] = cur + n
			continue
		}
		srcMap, srcIsMap := asMap(v)
		if !srcIsMap {
			dst[k] = v
			continue
		}
		dstMap, _ := asMap(dst[k])
		dst[k] = map[string]any(Merge(Doc(dstMap), Doc(srcMap)))
	}
	return dst
}

func increment(v any) (float64, bool) {
	m, ok := asMap(v)
	if !ok || len(m) != 1 {
		return 0, false
	}
	return toFloat(m[IncrementKey])
}

// Clone deep copies d through JSON.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}
	var c Doc
	if err := Decode(d, &c); err != nil {
		return nil
	}
	return c
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Doc:
		return m, true
	}
	return nil, false
}

// Apply filters, orders and limits docs in memory.
func (q Query) Apply(docs []Doc) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if q.matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) matches(d Doc) bool {
	for _, f := range q.Where {
		eq := equal(d[f.Field], f.Value)
		switch f.Op {
		case OpEq, "":
			if !eq {
				return false
			}
		case OpNe:
			if eq {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ab) == string(bb)
}

func compare(a, b any) int {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
