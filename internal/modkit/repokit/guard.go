package repokit

import (
	"context"
	"fmt"
	"time"
)

type guarder interface {
	Guard(context.Context) error
}

// Guard runs st.Guard with a 5s default budget and wraps the failure for startup logs
func Guard(ctx context.Context, st guarder) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := st.Guard(ctx); err != nil {
		return fmt.Errorf("dependency guard failed: %w", err)
	}
	return nil
}
