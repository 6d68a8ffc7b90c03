package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// RenderResult is one node's outcome from a RenderAll pass.
type RenderResult struct {
	Node *core.Node
	SQL  string
	Err  error
}

// RenderAll renders every node concurrently, bounded by the configured
// thread count. All nodes are attempted even when some fail; the returned
// error is the first render failure, and per-node outcomes are in the result
// slice in input order.
func (e *Engine) RenderAll(ctx context.Context, nodes []*core.Node, execute bool) ([]RenderResult, error) {
	results := make([]RenderResult, len(nodes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.Threads))

	for i, node := range nodes {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = RenderResult{Node: node, Err: ctx.Err()}
				return nil
			default:
			}
			sql, err := e.RenderNode(node, execute)
			results[i] = RenderResult{Node: node, SQL: sql, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}
