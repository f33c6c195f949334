package types

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxAttributeEntries  = 16
	maxAttributeLiteral  = 64
	attributeKeySep      = ";"
	attributeKeyValueSep = "="
)

// AttributeSet holds the selected product options for a cart line, e.g.
// {"size": "m", "color": "black"}. Stored as jsonb via GORM's json serializer.
//
// Two cart lines for the same product are merged only when their canonical
// keys match, so the key must be stable across map iteration order.
type AttributeSet map[string]string

// CanonicalKey renders the set as a deterministic sorted "k=v;k=v" string.
// An empty or nil set canonicalizes to the empty string.
func (a AttributeSet) CanonicalKey() string {
	if len(a) == 0 {
		return ""
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+attributeKeyValueSep+a[k])
	}
	return strings.Join(parts, attributeKeySep)
}

// Validate rejects malformed attribute sets before they reach the store.
func (a AttributeSet) Validate() error {
	if len(a) > maxAttributeEntries {
		return fmt.Errorf("too many attributes (max %d)", maxAttributeEntries)
	}
	for k, v := range a {
		key := strings.TrimSpace(k)
		if key == "" {
			return fmt.Errorf("attribute key must not be empty")
		}
		if key != k {
			return fmt.Errorf("attribute key %q has surrounding whitespace", k)
		}
		if strings.ContainsAny(k, attributeKeySep+attributeKeyValueSep) {
			return fmt.Errorf("attribute key %q contains reserved characters", k)
		}
		if len(k) > maxAttributeLiteral || len(v) > maxAttributeLiteral {
			return fmt.Errorf("attribute %q exceeds max length %d", k, maxAttributeLiteral)
		}
		if strings.ContainsAny(v, attributeKeySep+attributeKeyValueSep) {
			return fmt.Errorf("attribute value %q contains reserved characters", v)
		}
	}
	return nil
}

// Clone returns an independent copy so snapshots cannot alias cart state.
func (a AttributeSet) Clone() AttributeSet {
	if a == nil {
		return nil
	}
	out := make(AttributeSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
