// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package messaging builds and sends customer upsell and cross-sell messages.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/crmrec/internal/database"
	"github.com/tomtom215/crmrec/internal/models"
)

var (
	// ErrNotFound is returned when the customer or product does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidMessage is returned when a send is missing its recipient or text.
	ErrInvalidMessage = errors.New("customer ID and message are required")

	// ErrRateLimited is returned when the send rate would be exceeded.
	ErrRateLimited = errors.New("message rate limit exceeded")
)

// Store is the persistence the messaging package needs. *database.DB
// implements it.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	TopRecommendationForProduct(ctx context.Context, productID int64) (*models.ProductRecommendation, error)
	ListMessageTemplates(ctx context.Context) ([]models.MessageTemplate, error)
	InsertSentMessage(ctx context.Context, m *models.SentMessage) error
}

// GenerateRequest holds the fields of a generated message.
type GenerateRequest struct {
	CustomerName       string `json:"customer_name" validate:"required,max=200"`
	BaseProduct        string `json:"base_product" validate:"required,max=200"`
	RecommendedProduct string `json:"recommended_product" validate:"required,max=200"`
	RecommendationType string `json:"recommendation_type" validate:"required,max=50"`
}

// GenerateMessage renders the standard recommendation message.
func GenerateMessage(req GenerateRequest) string {
	return fmt.Sprintf("Hi %s, since you purchased %s, you might love %s! (Type: %s)",
		req.CustomerName, req.BaseProduct, req.RecommendedProduct, req.RecommendationType)
}

// RenderTemplate substitutes {customer}, {base}, {recommended} and {type}
// in a stored template. Unknown placeholders are left as they are.
func RenderTemplate(content string, req GenerateRequest) string {
	return strings.NewReplacer(
		"{customer}", req.CustomerName,
		"{base}", req.BaseProduct,
		"{recommended}", req.RecommendedProduct,
		"{type}", req.RecommendationType,
	).Replace(content)
}

// PersonalizedMessage is a message built from a customer's last purchase.
// The recommendation fields are empty when the product has none.
type PersonalizedMessage struct {
	CustomerName       string `json:"customer_name"`
	BaseProduct        string `json:"base_product"`
	RecommendedProduct string `json:"recommended_product,omitempty"`
	RecommendationType string `json:"recommendation_type,omitempty"`
	Message            string `json:"message"`
}

// Generator builds messages from stored customer, product and
// recommendation data.
type Generator struct {
	store Store
}

// NewGenerator creates a generator over store.
func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Personalized builds the message for customerID having bought productID.
// Either ID being unknown yields ErrNotFound.
func (g *Generator) Personalized(ctx context.Context, customerID, productID int64) (*PersonalizedMessage, error) {
	customer, err := g.store.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return nil, err
	}
	product, err := g.store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, err
	}

	rec, err := g.store.TopRecommendationForProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	msg := &PersonalizedMessage{CustomerName: customer.Name, BaseProduct: product.Name}
	if rec == nil {
		msg.Message = fmt.Sprintf("Hello %s, thank you for choosing %s!", customer.Name, product.Name)
		return msg, nil
	}
	msg.RecommendedProduct = rec.RecommendedProduct
	msg.RecommendationType = rec.RecommendationType
	msg.Message = fmt.Sprintf("Hello %s, based on your last purchase of %s, we recommend our %s (%s) for full protection!",
		customer.Name, product.Name, rec.RecommendedProduct, rec.RecommendationType)
	return msg, nil
}

// Templates lists the stored message templates.
func (g *Generator) Templates(ctx context.Context) ([]models.MessageTemplate, error) {
	return g.store.ListMessageTemplates(ctx)
}
