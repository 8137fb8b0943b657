// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package events carries in-process domain events over a Watermill
// GoChannel pub/sub. The only event today is a retraining request, sent by
// the API and consumed by the recommend service.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = 1

// TopicRetrain is the topic retraining requests are published on.
const TopicRetrain = "recommend.retrain"

// Retrain sources.
const (
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

// RetrainRequested asks the recommend service to run a training pass.
type RetrainRequested struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	Source        string    `json:"source"`
	RequestID     string    `json:"request_id,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

// NewRetrainRequested creates an event with a fresh ID.
func NewRetrainRequested(source, requestID string) *RetrainRequested {
	return &RetrainRequested{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		Source:        source,
		RequestID:     requestID,
		RequestedAt:   time.Now().UTC(),
	}
}

// Validate checks required fields.
func (e *RetrainRequested) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Source == "" {
		return fmt.Errorf("source is required")
	}
	return nil
}

// Marshal validates and encodes the event as JSON.
func (e *RetrainRequested) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalRetrainRequested decodes a JSON payload.
func UnmarshalRetrainRequested(data []byte) (*RetrainRequested, error) {
	var e RetrainRequested
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
	return &e, nil
}
