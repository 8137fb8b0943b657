// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/recommend"
)

type mockTrainer struct {
	mu         sync.Mutex
	calls      int
	trainErr   error
	trainDelay time.Duration
}

func (m *mockTrainer) Train(ctx context.Context) (*recommend.TrainReport, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.trainDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.trainDelay):
		}
	}
	if m.trainErr != nil {
		return nil, m.trainErr
	}
	return &recommend.TrainReport{
		StartedAt: time.Now(),
		Models: []recommend.ModelResult{
			{Model: recommend.ModelContent, Result: recommend.ResultPublished},
			{Model: recommend.ModelCollaborative, Result: recommend.ResultError, Error: "no ratings"},
		},
	}, nil
}

func (m *mockTrainer) trainCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// chanSubscriber hands out a channel the test controls.
type chanSubscriber struct {
	ch  chan *events.RetrainRequested
	err error
}

func (s *chanSubscriber) SubscribeRetrain(ctx context.Context) (<-chan *events.RetrainRequested, error) {
	return s.ch, s.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func TestRecommendService_String(t *testing.T) {
	svc := NewRecommendService(&mockTrainer{}, nil, RecommendServiceConfig{}, zerolog.Nop())
	if got := svc.String(); got != "recommend-service" {
		t.Errorf("String() = %q, want %q", got, "recommend-service")
	}
	if svc.config.TrainInterval != 24*time.Hour {
		t.Errorf("default TrainInterval = %v, want 24h", svc.config.TrainInterval)
	}
}

func TestRecommendService_Startup(t *testing.T) {
	tests := []struct {
		name           string
		trainOnStartup bool
		want           int
	}{
		{"trains on startup", true, 1},
		{"waits for schedule", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockTrainer{}
			svc := NewRecommendService(engine, nil, RecommendServiceConfig{
				TrainOnStartup: tt.trainOnStartup,
				TrainInterval:  time.Hour,
			}, zerolog.Nop())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = svc.Serve(ctx)

			if got := engine.trainCalls(); got != tt.want {
				t.Errorf("Train() called %d times, want %d", got, tt.want)
			}
		})
	}
}

func TestRecommendService_ScheduledTraining(t *testing.T) {
	engine := &mockTrainer{}
	svc := NewRecommendService(engine, nil, RecommendServiceConfig{
		TrainInterval: 50 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 130*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if got := engine.trainCalls(); got < 2 {
		t.Errorf("Train() called %d times, want >= 2", got)
	}
}

func TestRecommendService_RetrainRequests(t *testing.T) {
	engine := &mockTrainer{}
	sub := &chanSubscriber{ch: make(chan *events.RetrainRequested)}
	svc := NewRecommendService(engine, sub, RecommendServiceConfig{TrainInterval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	sub.ch <- events.NewRetrainRequested(events.SourceAPI, "req-1")
	sub.ch <- events.NewRetrainRequested(events.SourceCLI, "")
	waitFor(t, func() bool { return engine.trainCalls() == 2 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestRecommendService_SubscriptionClosed(t *testing.T) {
	sub := &chanSubscriber{ch: make(chan *events.RetrainRequested)}
	svc := NewRecommendService(&mockTrainer{}, sub, RecommendServiceConfig{TrainInterval: time.Hour}, zerolog.Nop())

	close(sub.ch)
	err := svc.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve() = nil, want error so the supervisor restarts it")
	}
}

func TestRecommendService_SubscribeError(t *testing.T) {
	subErr := errors.New("bus closed")
	sub := &chanSubscriber{err: subErr}
	svc := NewRecommendService(&mockTrainer{}, sub, RecommendServiceConfig{}, zerolog.Nop())

	if err := svc.Serve(context.Background()); !errors.Is(err, subErr) {
		t.Errorf("Serve() = %v, want %v", err, subErr)
	}
}

func TestRecommendService_TrainingErrorsDoNotStopService(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"in progress", recommend.ErrTrainingInProgress},
		{"deadline", context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockTrainer{trainErr: tt.err}
			svc := NewRecommendService(engine, nil, RecommendServiceConfig{
				TrainOnStartup: true,
				TrainInterval:  time.Hour,
			}, zerolog.Nop())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Serve() = %v, want context deadline", err)
			}
			if got := engine.trainCalls(); got != 1 {
				t.Errorf("Train() called %d times, want 1", got)
			}
		})
	}
}

func TestRecommendService_GracefulShutdown(t *testing.T) {
	engine := &mockTrainer{trainDelay: 50 * time.Millisecond}
	svc := NewRecommendService(engine, nil, RecommendServiceConfig{
		TrainOnStartup: true,
		TrainInterval:  time.Hour,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not complete in time")
	}
}

func TestRecommendService_WithEventBus(t *testing.T) {
	bus := events.NewBus()
	engine := &mockTrainer{}
	svc := NewRecommendService(engine, bus, RecommendServiceConfig{TrainInterval: time.Hour}, zerolog.Nop())
	busSvc := NewEventBusService(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	busDone := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	go func() { busDone <- busSvc.Serve(ctx) }()

	// gochannel drops messages published before a subscriber exists.
	waitFor(t, func() bool {
		if engine.trainCalls() > 0 {
			return true
		}
		_, _ = bus.PublishRetrain(ctx, events.SourceAPI)
		return false
	})

	cancel()
	<-done
	if err := <-busDone; !errors.Is(err, context.Canceled) {
		t.Errorf("EventBusService.Serve() = %v, want context.Canceled", err)
	}
	if _, err := bus.PublishRetrain(context.Background(), events.SourceAPI); !errors.Is(err, events.ErrClosed) {
		t.Errorf("PublishRetrain after shutdown = %v, want ErrClosed", err)
	}
}
