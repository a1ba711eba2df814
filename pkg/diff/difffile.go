package diff

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/ace/pkg/types"
)

// WriteDiffFile pretty-prints df as UTF-8 JSON to path, creating parent
// directories as needed. Rows within each node's array are sorted by
// primary-key ascending, per spec.md §6.
func WriteDiffFile(path string, df *types.DiffFile) error {
	sortedCopy := *df
	sortedCopy.Diffs = make(map[string][]types.Row, len(df.Diffs))
	for node, rows := range df.Diffs {
		sorted := make([]types.Row, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return comparePK(sorted[i], sorted[j], df.PrimaryKey) < 0
		})
		sortedCopy.Diffs[node] = sorted
	}

	data, err := json.MarshalIndent(&sortedCopy, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal diff file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create diff file directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write diff file: %w", err)
	}
	return nil
}

// ReadDiffFile loads a previously written DiffFile, as consumed by the
// Repair Engine and table-rerun.
func ReadDiffFile(path string) (*types.DiffFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read diff file: %w", err)
	}
	var df types.DiffFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parse diff file: %w", err)
	}
	return &df, nil
}

func comparePK(a, b types.Row, pk []string) int {
	for _, col := range pk {
		if c := compareValues(a[col], b[col]); c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders two primary-key column values. Numeric types
// (as decoded by pgx, or as round-tripped back through JSON into
// float64 by ReadDiffFile) compare by magnitude; time.Time compares
// chronologically; anything else falls back to a string comparison,
// since a non-numeric, non-time primary key (e.g. a UUID or text
// column) sorts correctly as text.
func compareValues(a, b any) int {
	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// toFloat64 reports whether v is one of pgx's decoded numeric types
// (or JSON's float64) and, if so, its value as a float64. A primary
// key's magnitude never approaches float64's 53-bit mantissa limit in
// practice, so the precision loss for very large int64/uint64 values
// is immaterial here.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
