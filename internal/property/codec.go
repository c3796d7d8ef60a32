// Package property implements the codec between an entity's free-form
// property bag and the flat typed rows the store persists. The round-trip
// law Reconstruct(Flatten(bag)) == bag holds for any bag whose scalars are
// normalized (int64/float64/bool/string) and whose composites use the
// generic map/slice shapes of encoding/json.
package property

import (
	"fmt"
	"sort"
)

// ScalarIndex is the ArrayIndex of a row holding a scalar property. Rows
// belonging to an array carry indices 0..n-1 instead.
const ScalarIndex = -1

// Row is one persisted slot of a property bag: a scalar, or one element
// of an ordered array.
type Row struct {
	Key        string
	ArrayIndex int
	Value      Value
}

// Flatten walks a property bag and emits one row per scalar and one row
// per array element. Output order is deterministic: keys ascending, then
// array index ascending, which keeps re-imports idempotent. A top-level
// list yields one row per element; elements that are themselves composite
// stay as a single JSON blob row (one level of indexing, no deeper
// flattening). An empty list is kept as a JSON blob so it survives the
// round trip.
func Flatten(props map[string]any) ([]Row, error) {
	keys := make([]string, 0, len(props))
	for key := range props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(props))
	for _, key := range keys {
		switch list := props[key].(type) {
		case []any:
			if len(list) == 0 {
				rows = append(rows, Row{Key: key, ArrayIndex: ScalarIndex, Value: JSON([]byte("[]"))})
				continue
			}
			for i, elem := range list {
				value, err := FromAny(elem)
				if err != nil {
					return nil, fmt.Errorf("flattening %s[%d]: %w", key, i, err)
				}
				rows = append(rows, Row{Key: key, ArrayIndex: i, Value: value})
			}
		default:
			value, err := FromAny(props[key])
			if err != nil {
				return nil, fmt.Errorf("flattening %s: %w", key, err)
			}
			rows = append(rows, Row{Key: key, ArrayIndex: ScalarIndex, Value: value})
		}
	}
	return rows, nil
}

// Reconstruct rebuilds the property bag from its rows. Rows sharing a key
// are sorted by array index and become an ordered array; a lone row with
// ScalarIndex is a scalar.
func Reconstruct(rows []Row) (map[string]any, error) {
	grouped := make(map[string][]Row)
	for _, row := range rows {
		grouped[row.Key] = append(grouped[row.Key], row)
	}

	props := make(map[string]any, len(grouped))
	for key, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			return group[i].ArrayIndex < group[j].ArrayIndex
		})

		if len(group) == 1 && group[0].ArrayIndex == ScalarIndex {
			value, err := group[0].Value.Interface()
			if err != nil {
				return nil, fmt.Errorf("reconstructing %s: %w", key, err)
			}
			props[key] = value
			continue
		}

		list := make([]any, 0, len(group))
		for _, row := range group {
			if row.ArrayIndex == ScalarIndex {
				return nil, fmt.Errorf("reconstructing %s: scalar row mixed with array rows", key)
			}
			value, err := row.Value.Interface()
			if err != nil {
				return nil, fmt.Errorf("reconstructing %s[%d]: %w", key, row.ArrayIndex, err)
			}
			list = append(list, value)
		}
		props[key] = list
	}
	return props, nil
}
