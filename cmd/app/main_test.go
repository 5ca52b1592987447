//go:build !integration

package main

import (
	"context"
	"io"
	"slices"
	"sync/atomic"
	"testing"

	"counselling-payments/internal/infra/worker"

	"github.com/rs/zerolog"
)

type recordingServer struct{ calls *[]string }

func (s recordingServer) Shutdown(ctx context.Context) error {
	*s.calls = append(*s.calls, "server")
	return nil
}

type recordingPool struct{ calls *[]string }

func (p recordingPool) Stop() { *p.calls = append(*p.calls, "pool") }

func TestShutdown_StopsPoolBeforeCancel(t *testing.T) {
	var calls []string
	logger := zerolog.New(io.Discard)

	shutdown(context.Background(), recordingServer{&calls}, recordingPool{&calls},
		func() { calls = append(calls, "cancel") }, &logger)

	if want := []string{"server", "pool", "cancel"}; !slices.Equal(calls, want) {
		t.Errorf("expected %v, but got %v", want, calls)
	}
}

func TestShutdown_RunsQueuedTasksWithLiveContext(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(1, &logger)
	gate := make(chan struct{})
	_ = pool.Submit(func(ctx context.Context) error { <-gate; return nil })
	var live atomic.Int32
	for i := 0; i < 3; i++ {
		_ = pool.Submit(func(ctx context.Context) error {
			if ctx.Err() == nil {
				live.Add(1)
			}
			return nil
		})
	}
	pool.Start(context.WithoutCancel(ctx))
	var calls []string

	close(gate)
	shutdown(context.Background(), recordingServer{&calls}, pool, cancel, &logger)

	if got := live.Load(); got != 3 {
		t.Errorf("expected 3 queued tasks to run with a live context, but got %d", got)
	}
	if ctx.Err() == nil {
		t.Error("expected the root context to be cancelled after shutdown")
	}
}
