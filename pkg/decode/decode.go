// Package decode converts loosely typed payloads into typed values via JSON.
package decode

import (
	"encoding/json"
	"fmt"
)

// FromMap decodes a generic map into T.
func FromMap[T any](data map[string]any) (T, error) {
	var result T
	b, err := json.Marshal(data)
	if err != nil {
		return result, fmt.Errorf("encode map: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("decode %T: %w", result, err)
	}
	return result, nil
}

// ToMap encodes v into a generic map.
func ToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
