//
// Tencent is pleased to support the open source community by making trpc-tracker-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-tracker-go is licensed under the Apache License Version 2.0.
//
//

package calc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-tracker-go/telemetry"
)

// BatchApply recomputes every calculation target of plan for each row on a
// goroutine pool and returns the per-row results in input order. Rows are
// independent (each Apply call owns its snapshot), so row-parallelism needs
// no coordination beyond the pool itself.
func (e *Engine) BatchApply(ctx context.Context, plan *Plan, rows []map[string]any) ([]Result, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "calc.batch_apply")
	defer span.End()

	if len(rows) == 0 {
		return nil, nil
	}
	size := e.poolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]Result, len(rows))
	var wg sync.WaitGroup
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		i, row := i, row
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = Apply(plan, row)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit row %d: %w", i, err)
		}
	}
	wg.Wait()
	telemetry.CalcBatchRows.Add(ctx, int64(len(rows)))
	return results, nil
}
