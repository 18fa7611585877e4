package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// contextWithTimeout bounds the command's context. A zero timeout leaves it
// unbounded.
func contextWithTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
