//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package executor

import (
	"context"

	"github.com/markkurossi/mpsi/retcode"
	"golang.org/x/sync/errgroup"
)

// RunLocal runs the PSI tasks concurrently and returns their result
// codes in task order. The first failing task cancels the others.
func RunLocal(ctx context.Context, tasks ...*PSITask) ([]retcode.Code, error) {
	codes := make([]retcode.Code, len(tasks))

	g, ctx := errgroup.WithContext(ctx)
	for idx, t := range tasks {
		g.Go(func() error {
			code, err := t.Execute(ctx)
			codes[idx] = code
			return err
		})
	}
	err := g.Wait()
	return codes, err
}
