package repair

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cuemby/ace/pkg/types"
)

// opKind is the operation a RowOp asks one node to perform.
type opKind int

const (
	opUpsert opKind = iota
	opDelete
)

// RowOp is one row-level operation a Plan schedules against one node.
type RowOp struct {
	Kind opKind
	PK   []any
	Row  types.Row // nil for opDelete
}

// Plan is a repair plan: the set of row operations scheduled per node.
type Plan struct {
	Mode         string // "source-of-truth" or "fix-nulls"
	KeysExamined int
	KeysPlanned  int
	PerNode      map[string][]RowOp
}

// rowsByKey groups a DiffFile's per-node row lists by primary-key
// value, so every node's view of one logical row can be compared side
// by side.
func rowsByKey(pk []string, nodes []string, diffs map[string][]types.Row) map[string]map[string]types.Row {
	byKey := make(map[string]map[string]types.Row)
	for _, node := range nodes {
		for _, row := range diffs[node] {
			key := pkKey(row, pk)
			if _, ok := byKey[key]; !ok {
				byKey[key] = make(map[string]types.Row)
			}
			byKey[key][node] = row
		}
	}
	return byKey
}

func pkKey(row types.Row, pk []string) string {
	parts := make([]string, len(pk))
	for i, col := range pk {
		parts[i] = fmt.Sprintf("%v", row[col])
	}
	return strings.Join(parts, "\x1f")
}

func pkTuple(row types.Row, pk []string) []any {
	tuple := make([]any, len(pk))
	for i, col := range pk {
		tuple[i] = row[col]
	}
	return tuple
}

// sortedNodeSet returns nodes that appear in diffs, in alphabetical
// order: fix-nulls mode scans alphabetically for determinism
// (spec.md §4.6), and source-of-truth mode needs a stable iteration
// order for reproducible plans regardless of mode.
func sortedNodeSet(diffs map[string][]types.Row, extra ...string) []string {
	set := make(map[string]struct{})
	for node := range diffs {
		set[node] = struct{}{}
	}
	for _, n := range extra {
		if n != "" {
			set[n] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// buildSourceOfTruthPlan resolves every divergent key against truth's
// row. A key absent on truth is deleted everywhere else unless
// upsertOnly, in which case it is left alone (spec.md §4.6 step 1).
func buildSourceOfTruthPlan(pk []string, nodes []string, truth string, byKey map[string]map[string]types.Row, upsertOnly bool) Plan {
	plan := Plan{Mode: "source-of-truth", PerNode: make(map[string][]RowOp)}

	keys := sortedKeys(byKey)
	plan.KeysExamined = len(keys)

	for _, key := range keys {
		rows := byKey[key]
		truthRow, hasTruth := rows[truth]

		if !hasTruth {
			if upsertOnly {
				continue
			}
			planned := false
			for _, node := range nodes {
				if node == truth {
					continue
				}
				row, ok := rows[node]
				if !ok {
					continue
				}
				plan.PerNode[node] = append(plan.PerNode[node], RowOp{Kind: opDelete, PK: pkTuple(row, pk)})
				planned = true
			}
			if planned {
				plan.KeysPlanned++
			}
			continue
		}

		planned := false
		for _, node := range nodes {
			if node == truth {
				continue
			}
			row, ok := rows[node]
			if ok && reflect.DeepEqual(row, truthRow) {
				continue
			}
			plan.PerNode[node] = append(plan.PerNode[node], RowOp{Kind: opUpsert, PK: pkTuple(truthRow, pk), Row: truthRow})
			planned = true
		}
		if planned {
			plan.KeysPlanned++
		}
	}
	return plan
}

// buildFixNullsPlan resolves every divergent key column-wise: for each
// column, the first non-NULL value found scanning nodes alphabetically
// wins; a column NULL on every node stays NULL (spec.md §4.6 step 2).
// Every node whose row is missing or unequal to the fold is upserted;
// fix-nulls never deletes, since no node is trusted to say a row
// should not exist.
func buildFixNullsPlan(pk []string, nodes []string, byKey map[string]map[string]types.Row) Plan {
	plan := Plan{Mode: "fix-nulls", PerNode: make(map[string][]RowOp)}

	keys := sortedKeys(byKey)
	plan.KeysExamined = len(keys)

	for _, key := range keys {
		rows := byKey[key]
		target := foldNonNull(nodes, rows)

		planned := false
		for _, node := range nodes {
			row, ok := rows[node]
			if ok && reflect.DeepEqual(row, target) {
				continue
			}
			plan.PerNode[node] = append(plan.PerNode[node], RowOp{Kind: opUpsert, PK: pkTuple(target, pk), Row: target})
			planned = true
		}
		if planned {
			plan.KeysPlanned++
		}
	}
	return plan
}

// foldNonNull builds the reconciled row for fix-nulls mode: nodes are
// scanned in the order given (callers pass them pre-sorted
// alphabetically) and, per column, the first non-nil value found wins.
func foldNonNull(nodes []string, rows map[string]types.Row) types.Row {
	target := make(types.Row)
	seen := make(map[string]bool)

	for _, node := range nodes {
		row, ok := rows[node]
		if !ok {
			continue
		}
		for col, val := range row {
			if seen[col] {
				continue
			}
			if val != nil {
				target[col] = val
				seen[col] = true
			}
		}
	}
	// Columns NULL on every node that had the row: record the NULL
	// explicitly so the target row has the full column set.
	for _, row := range rows {
		for col := range row {
			if _, ok := target[col]; !ok {
				target[col] = nil
			}
		}
	}
	return target
}

func sortedKeys(byKey map[string]map[string]types.Row) []string {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
