// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package api serves the recommendation, fact-table and messaging
// endpoints over chi. Every response uses models.APIResponse.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/events"
	"github.com/tomtom215/crmrec/internal/messaging"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/recommend"
)

// Store is the database access the handlers need beyond the engine.
// *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	ProductNames(ctx context.Context) ([]string, error)
	Dashboard(ctx context.Context, filter database.DashboardFilter) ([]models.DashboardRow, error)
	UpsertRating(ctx context.Context, r *models.Rating) error
	UpsertInteraction(ctx context.Context, in *models.Interaction) error
	ListUserInteractions(ctx context.Context, userID int64) ([]models.Interaction, error)
	ListSentMessages(ctx context.Context, customerID int64) ([]models.SentMessage, error)
}

// RetrainPublisher queues a training pass. *events.Bus implements it.
type RetrainPublisher interface {
	PublishRetrain(ctx context.Context, source string) (*events.RetrainRequested, error)
}

// Deps are the handler's collaborators.
type Deps struct {
	Store      Store
	Engine     *recommend.Engine
	Bus        RetrainPublisher
	Generator  *messaging.Generator
	Dispatcher *messaging.Dispatcher
}

// Handler implements every HTTP endpoint.
type Handler struct {
	store      Store
	engine     *recommend.Engine
	bus        RetrainPublisher
	generator  *messaging.Generator
	dispatcher *messaging.Dispatcher
	startTime  time.Time
}

// NewHandler validates deps and builds a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("api: store and engine are required")
	}
	if deps.Bus == nil {
		return nil, errors.New("api: retrain publisher is required")
	}
	if deps.Generator == nil || deps.Dispatcher == nil {
		return nil, errors.New("api: message generator and dispatcher are required")
	}
	return &Handler{
		store:      deps.Store,
		engine:     deps.Engine,
		bus:        deps.Bus,
		generator:  deps.Generator,
		dispatcher: deps.Dispatcher,
		startTime:  time.Now(),
	}, nil
}
