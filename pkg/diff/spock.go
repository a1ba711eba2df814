package diff

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/ace/pkg/dbpool"
	"github.com/cuemby/ace/pkg/types"
)

// spockNodesQuery and spockSubscriptionsQuery read Spock's own
// replication-topology catalogs (spock.py drives spock.create_node /
// spock.create_subscription against these same tables).
const spockNodesQuery = `SELECT node_name FROM spock.node ORDER BY node_name`

const spockSubscriptionsQuery = `
SELECT sub_name, sub_enabled, sub_replication_sets
FROM spock.subscription
ORDER BY sub_name`

type spockSubscription struct {
	name            string
	enabled         bool
	replicationSets []string
}

// SpockDiff compares the Spock replication topology itself — node
// registrations and subscription definitions — across every node,
// rather than replicated application data. Divergence here means two
// nodes disagree about who is replicating what, which table-diff and
// repset-diff cannot detect on their own.
func SpockDiff(ctx context.Context, pool *dbpool.Pool, cluster *types.Cluster, params types.SpockDiffParams) (*types.SpockDiffSummary, error) {
	nodes := params.Nodes
	if len(nodes) == 0 {
		nodes = cluster.NodeNames()
	}
	if len(nodes) < 1 {
		return nil, types.NewError(types.KindValidation, "cluster has no nodes", types.ErrInvalidClusterSpec)
	}

	reference := nodes[0]
	refNodeNames, err := spockNodeNames(ctx, pool, reference)
	if err != nil {
		return nil, err
	}
	refSubs, err := spockSubscriptions(ctx, pool, reference)
	if err != nil {
		return nil, err
	}

	summary := &types.SpockDiffSummary{}

	for _, node := range nodes[1:] {
		nodeNames, err := spockNodeNames(ctx, pool, node)
		if err != nil {
			summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
				Catalog: "spock.node", Node: node, Detail: err.Error(),
			})
			continue
		}
		if diff := setDifference(refNodeNames, nodeNames); len(diff) > 0 {
			summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
				Catalog: "spock.node", Node: node,
				Detail: fmt.Sprintf("node set differs from %s: %v", reference, diff),
			})
		}

		subs, err := spockSubscriptions(ctx, pool, node)
		if err != nil {
			summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
				Catalog: "spock.subscription", Node: node, Detail: err.Error(),
			})
			continue
		}
		for name, refSub := range refSubs {
			sub, ok := subs[name]
			if !ok {
				summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
					Catalog: "spock.subscription", Node: node,
					Detail: fmt.Sprintf("subscription %q missing (present on %s)", name, reference),
				})
				continue
			}
			if sub.enabled != refSub.enabled {
				summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
					Catalog: "spock.subscription", Node: node,
					Detail: fmt.Sprintf("subscription %q enabled=%v, %s has enabled=%v", name, sub.enabled, reference, refSub.enabled),
				})
			}
			if len(setDifference(refSub.replicationSets, sub.replicationSets)) > 0 {
				summary.Mismatches = append(summary.Mismatches, types.SpockMismatch{
					Catalog: "spock.subscription", Node: node,
					Detail: fmt.Sprintf("subscription %q replication sets differ from %s", name, reference),
				})
			}
		}
	}

	return summary, nil
}

func spockNodeNames(ctx context.Context, pool *dbpool.Pool, node string) ([]string, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, spockNodesQuery)
	if err != nil {
		return nil, fmt.Errorf("list spock nodes on %s: %w", node, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func spockSubscriptions(ctx context.Context, pool *dbpool.Pool, node string) (map[string]spockSubscription, error) {
	conn, err := pool.Acquire(ctx, node)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, spockSubscriptionsQuery)
	if err != nil {
		return nil, fmt.Errorf("list spock subscriptions on %s: %w", node, err)
	}
	defer rows.Close()

	subs := make(map[string]spockSubscription)
	for rows.Next() {
		var s spockSubscription
		if err := rows.Scan(&s.name, &s.enabled, &s.replicationSets); err != nil {
			return nil, err
		}
		subs[s.name] = s
	}
	return subs, rows.Err()
}

func setDifference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var diff []string
	for _, v := range a {
		if !inB[v] {
			diff = append(diff, v)
		}
	}
	sort.Strings(diff)
	return diff
}
