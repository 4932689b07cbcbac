package workpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPool_Run(t *testing.T) {
	p := New(4)
	var count atomic.Int64

	err := p.Run(context.Background(), 100, func(ctx context.Context, i int) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count.Load() != 100 {
		t.Errorf("count = %d, want 100", count.Load())
	}
}

func TestPool_Run_PropagatesError(t *testing.T) {
	p := New(2)
	wantErr := errors.New("boom")

	err := p.Run(context.Background(), 10, func(ctx context.Context, i int) error {
		if i == 5 {
			return wantErr
		}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
}

func TestNew_DefaultsToGOMAXPROCS(t *testing.T) {
	p := New(0)
	if p.Limit() < 1 {
		t.Errorf("Limit() = %d, want >= 1", p.Limit())
	}
}
