package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/toolkit"
)

// toolCall pairs a requested tool invocation with the definition's
// parallelizability, resolved once up front so batching never has to
// re-query the registry per call.
type toolCall struct {
	block          model.ToolBlock
	parallelizable bool
}

// batchTools partitions calls, in order, into maximal runs of adjacent
// parallelizable calls. A non-parallelizable call forms a singleton batch
// of its own and interrupts any parallelizable run around it.
func batchTools(calls []toolCall) [][]toolCall {
	var batches [][]toolCall
	var run []toolCall
	flush := func() {
		if len(run) > 0 {
			batches = append(batches, run)
			run = nil
		}
	}
	for _, c := range calls {
		if !c.parallelizable {
			flush()
			batches = append(batches, []toolCall{c})
			continue
		}
		run = append(run, c)
	}
	flush()
	return batches
}

func (w *Workflow) toolInstances() *toolkit.Instances {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.instances == nil && w.registry != nil {
		w.instances = w.registry.NewInstances(toolkit.Context{
			Conversation: w.conv,
			Workflow:     w,
			Data:         w.contextData,
		})
	}
	return w.instances
}

// executeToolBatches runs assistantMsg's tool blocks to completion,
// parallel within each batch and sequential (barrier) across batches, and
// returns the concatenated tool_result content in the original tool
// blocks' order. Between batches it re-checks the workflow's state and
// abandons any remaining batches (returning the results gathered so far,
// which the caller must not send back) once the workflow is no longer
// busy. A non-nil error means tool construction itself failed — an
// infrastructure problem, distinct from a tool's own execute() failing,
// which is instead reified into a failed model.ToolResult.
func (w *Workflow) executeToolBatches(ctx context.Context, assistantMsg model.Message) ([]model.Content, error) {
	var calls []toolCall
	for _, c := range assistantMsg.Content {
		block, ok := c.Block.(model.ToolBlock)
		if !ok {
			continue
		}
		parallelizable := true
		if w.registry != nil {
			if def, ok := w.registry.Lookup(block.Tool); ok {
				parallelizable = def.Parallelizable
			}
		}
		calls = append(calls, toolCall{block: block, parallelizable: parallelizable})
	}
	if len(calls) == 0 {
		return nil, nil
	}

	instances := w.toolInstances()
	var out []model.Content
	for _, batch := range batchTools(calls) {
		if !w.isBusy() {
			break
		}

		results := make([]model.Content, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, call := range batch {
			i, call := i, call
			g.Go(func() error {
				result, err := invokeTool(gctx, instances, call.block)
				if err != nil {
					return err
				}
				results[i] = model.ToolResultContent(call.block.ToolRequestID, call.block.Tool, result)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

// invokeTool calls instances.Invoke if a registry is wired, or
// synthesizes "invalid tool" when the workflow has no tools at all.
func invokeTool(ctx context.Context, instances *toolkit.Instances, block model.ToolBlock) (model.ToolResult, error) {
	if instances == nil {
		return model.Failure("invalid tool"), nil
	}
	return instances.Invoke(ctx, block.Tool, block.Params)
}
