package app

import (
	"bufio"
	"context"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds concurrent requests in a batch.
const DefaultBatchConcurrency = 4

// BatchItem is the outcome of one instruction in a batch.
type BatchItem struct {
	Index       int           `json:"index" yaml:"index"`
	Instruction string        `json:"instruction" yaml:"instruction"`
	Result      *CreateResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	FailureKind string        `json:"failure_kind,omitempty" yaml:"failure_kind,omitempty"`
}

// Succeeded reports whether the item produced a registered agent.
func (b BatchItem) Succeeded() bool {
	return b.Result != nil && b.Result.Success
}

// CreateBatch runs every instruction as an independent request with at
// most concurrency in flight. A failed request never cancels the others;
// only ctx does. Items are returned in input order.
func (a *CreateApp) CreateBatch(ctx context.Context, instructions []string, concurrency int) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	items := make([]BatchItem, len(instructions))
	for i, instruction := range instructions {
		items[i] = BatchItem{Index: i, Instruction: instruction}
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, instruction := range instructions {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := a.Create(ctx, instruction, CreateOptions{})
			if err != nil {
				items[i].Error = err.Error()
				items[i].FailureKind = FailureKind(err)
				return nil
			}
			items[i].Result = res
			return nil
		})
	}
	_ = g.Wait()
	return items, ctx.Err()
}

// ReadInstructions reads one instruction per line. Blank lines and lines
// starting with # are skipped.
func ReadInstructions(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxInstructionLength*4)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
