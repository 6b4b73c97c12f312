package brain

import (
	"context"
	"errors"
	"log"
)

// FallbackAdapter tries a primary adapter and falls through to a secondary
// on failure. Context cancellation is never retried.
type FallbackAdapter struct {
	primary   Adapter
	secondary Adapter
}

func NewFallbackAdapter(primary, secondary Adapter) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, secondary: secondary}
}

func (a *FallbackAdapter) Primary() Adapter { return a.primary }

func (a *FallbackAdapter) Reply(ctx context.Context, req ReplyRequest) (ReplyResponse, error) {
	res, err := a.primary.Reply(ctx, req)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReplyResponse{}, err
	}
	if a.secondary == nil {
		return ReplyResponse{}, err
	}
	log.Printf("brain primary failed, using fallback: %v", err)
	return a.secondary.Reply(ctx, req)
}
