package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Checklist records which accessories accompanied a unit and in what
// condition, e.g. {"charger": "good", "bag": "missing"}.
type Checklist map[string]string

func (c Checklist) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func (c *Checklist) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("failed to scan checklist: %v", value)
	}
	return json.Unmarshal(b, c)
}

// Normalize trims keys and values and drops blank accessory names.
func (c Checklist) Normalize() Checklist {
	if len(c) == 0 {
		return nil
	}
	out := make(Checklist, len(c))
	for k, v := range c {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Keys returns accessory names in stable order, used by exports.
func (c Checklist) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c Checklist) String() string {
	parts := make([]string, 0, len(c))
	for _, k := range c.Keys() {
		parts = append(parts, k+"="+c[k])
	}
	return strings.Join(parts, ", ")
}
