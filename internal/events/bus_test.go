// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/crmrec/internal/logging"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.SubscribeRetrain(ctx)
	if err != nil {
		t.Fatalf("SubscribeRetrain() error = %v", err)
	}

	reqCtx := logging.ContextWithRequestID(context.Background(), "req-123")
	sent, err := bus.PublishRetrain(reqCtx, SourceAPI)
	if err != nil {
		t.Fatalf("PublishRetrain() error = %v", err)
	}

	select {
	case got := <-ch:
		if got.EventID != sent.EventID || got.Source != SourceAPI || got.RequestID != "req-123" {
			t.Errorf("received %+v, want %+v", got, sent)
		}
		if got.SchemaVersion != SchemaVersion {
			t.Errorf("SchemaVersion = %d", got.SchemaVersion)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no retrain event received")
	}
}

func TestBus_ClosedRejectsPublish(t *testing.T) {
	bus := NewBus()
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := bus.PublishRetrain(context.Background(), SourceAPI); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishRetrain() after close error = %v, want ErrClosed", err)
	}
}

func TestRetrainRequested_Marshal(t *testing.T) {
	tests := []struct {
		name    string
		event   RetrainRequested
		wantErr bool
	}{
		{"valid", *NewRetrainRequested(SourceCLI, ""), false},
		{"missing id", RetrainRequested{Source: SourceAPI}, true},
		{"missing source", RetrainRequested{EventID: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.event.Marshal()
			if (err != nil) != tt.wantErr {
				t.Errorf("Marshal() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnmarshalRetrainRequested(t *testing.T) {
	e, err := UnmarshalRetrainRequested([]byte(`{"event_id":"abc","source":"api"}`))
	if err != nil {
		t.Fatal(err)
	}
	if e.SchemaVersion != SchemaVersion || e.EventID != "abc" {
		t.Errorf("got %+v", e)
	}
	if _, err := UnmarshalRetrainRequested([]byte(`{`)); err == nil {
		t.Error("malformed payload accepted")
	}
}
