// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package models

import (
	"strings"
	"time"
)

// Item is a catalogue entry in the interaction store.
type Item struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContentBlob joins the item's text fields with single spaces. It is the
// unit of vectorization for the content model.
func (i *Item) ContentBlob() string {
	return strings.Join([]string{i.Title, i.Description, i.Category, i.Tags}, " ")
}

// Rating is one user's score for one item. At most one exists per pair.
type Rating struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	ItemID    int64     `json:"item_id" validate:"required,gt=0"`
	Rating    float64   `json:"rating" validate:"gte=0,lte=5"`
	Timestamp time.Time `json:"timestamp"`
}

// InteractionType enumerates the interaction kinds the store accepts.
type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionClick     InteractionType = "click"
	InteractionPurchase  InteractionType = "purchase"
	InteractionCall      InteractionType = "call"
	InteractionRecommend InteractionType = "recommend"
)

// InteractionTypes lists every valid InteractionType.
var InteractionTypes = []InteractionType{
	InteractionView, InteractionClick, InteractionPurchase, InteractionCall, InteractionRecommend,
}

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	for _, v := range InteractionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Interaction is a typed user/item event, unique per (user, item, type).
type Interaction struct {
	UserID    int64                  `json:"user_id" validate:"required,gt=0"`
	ItemID    int64                  `json:"item_id" validate:"required,gt=0"`
	Type      InteractionType        `json:"interaction_type" validate:"required,oneof=view click purchase call recommend"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Recommendation types stored in the fact table.
const (
	RecommendationUpsell    = "Upsell"
	RecommendationCrossSell = "Cross-Sell"
)

// RecommendationRecord is one precomputed row of pest_recommendations.
type RecommendationRecord struct {
	ID                   int64     `json:"id"`
	CustomerID           int64     `json:"customer_id"`
	BaseProductID        int64     `json:"base_product_id"`
	RecommendedProductID int64     `json:"recommended_product_id"`
	RecommendationType   string    `json:"recommendation_type"`
	ConfidenceScore      float64   `json:"confidence_score"`
	CreatedAt            time.Time `json:"created_at"`
}

// Customer is a row of customer_details.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Product is a row of product_details.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"product_name"`
	Price float64 `json:"price"`
}

// DashboardRow is one fact-table record joined with display names.
type DashboardRow struct {
	CustomerName       string  `json:"customer_name"`
	BaseProduct        string  `json:"base_product"`
	RecommendedProduct string  `json:"recommended_product"`
	RecommendationType string  `json:"recommendation_type"`
	ConfidenceScore    float64 `json:"confidence_score"`
}

// SimilarCustomer is a customer sharing recommended products with another.
type SimilarCustomer struct {
	CustomerID  int64 `json:"customer_id"`
	CommonCount int64 `json:"common_count"`
}

// CrossSellCount is a cross-sell product and how often it was recommended.
type CrossSellCount struct {
	ProductName string `json:"product_name"`
	Count       int64  `json:"count"`
}

// ProductRecommendation is the first stored recommendation for a base product.
type ProductRecommendation struct {
	RecommendedProduct string `json:"recommended_product"`
	RecommendationType string `json:"recommendation_type"`
}

// Template types.
const (
	TemplateUpsell    = "upsell"
	TemplateCrossSell = "crosssell"
	TemplateGeneral   = "general"
)

// MessageTemplate is static message text keyed by type.
type MessageTemplate struct {
	ID           int64  `json:"id"`
	TemplateName string `json:"template_name"`
	TemplateType string `json:"template_type"`
	Content      string `json:"content"`
}

// SentMessage is the outbound message log.
type SentMessage struct {
	ID         string    `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sent_at"`
}
