// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/crmrec/internal/logging"
	"github.com/tomtom215/crmrec/internal/models"
)

// SeedDemoData loads a small pest-control catalogue, ratings, fact rows and
// message templates. It is idempotent.
func (db *DB) SeedDemoData(ctx context.Context) error {
	items := []models.Item{
		{ID: 1, Title: "Termite Shield", Description: "long lasting soil barrier against termites", Category: "termite", Tags: "termite soil barrier"},
		{ID: 2, Title: "Termite Shield Plus", Description: "soil barrier with bait stations for termites", Category: "termite", Tags: "termite bait premium"},
		{ID: 3, Title: "Cockroach Gel", Description: "indoor gel bait for cockroaches", Category: "cockroach", Tags: "cockroach gel kitchen"},
		{ID: 4, Title: "Mosquito Fogging", Description: "outdoor fogging treatment for mosquitoes", Category: "mosquito", Tags: "mosquito outdoor fogging"},
		{ID: 5, Title: "Rodent Bait Station", Description: "tamper resistant bait station for rats and mice", Category: "rodent", Tags: "rodent rat mice bait"},
	}
	for i := range items {
		if _, err := db.UpsertItem(ctx, &items[i]); err != nil {
			return fmt.Errorf("seed items: %w", err)
		}
	}

	ratings := []models.Rating{
		{UserID: 1, ItemID: 1, Rating: 5}, {UserID: 1, ItemID: 3, Rating: 3},
		{UserID: 2, ItemID: 1, Rating: 4}, {UserID: 2, ItemID: 2, Rating: 5},
		{UserID: 3, ItemID: 3, Rating: 4}, {UserID: 3, ItemID: 4, Rating: 2},
		{UserID: 4, ItemID: 5, Rating: 5}, {UserID: 4, ItemID: 2, Rating: 4},
	}
	for i := range ratings {
		if err := db.UpsertRating(ctx, &ratings[i]); err != nil {
			return fmt.Errorf("seed ratings: %w", err)
		}
	}

	customers := []models.Customer{
		{ID: 1, Name: "Asha Traders"}, {ID: 2, Name: "Blue Lagoon Hotel"}, {ID: 3, Name: "City Bakery"},
	}
	for i := range customers {
		if err := db.UpsertCustomer(ctx, &customers[i]); err != nil {
			return fmt.Errorf("seed customers: %w", err)
		}
	}

	products := []models.Product{
		{ID: 1, Name: "Termite Treatment", Price: 120}, {ID: 2, Name: "Termite Treatment Premium", Price: 220},
		{ID: 3, Name: "Cockroach Control", Price: 60}, {ID: 4, Name: "Mosquito Control", Price: 80},
		{ID: 5, Name: "Rodent Control", Price: 90},
	}
	for i := range products {
		if err := db.UpsertProduct(ctx, &products[i]); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}

	var facts int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pest_recommendations`).Scan(&facts); err != nil {
		return fmt.Errorf("count facts: %w", err)
	}
	if facts == 0 {
		rows := []models.RecommendationRecord{
			{CustomerID: 1, BaseProductID: 1, RecommendedProductID: 2, RecommendationType: models.RecommendationUpsell, ConfidenceScore: 0.92},
			{CustomerID: 1, BaseProductID: 1, RecommendedProductID: 5, RecommendationType: models.RecommendationCrossSell, ConfidenceScore: 0.71},
			{CustomerID: 2, BaseProductID: 3, RecommendedProductID: 4, RecommendationType: models.RecommendationCrossSell, ConfidenceScore: 0.64},
			{CustomerID: 2, BaseProductID: 1, RecommendedProductID: 5, RecommendationType: models.RecommendationCrossSell, ConfidenceScore: 0.58},
			{CustomerID: 3, BaseProductID: 3, RecommendedProductID: 5, RecommendationType: models.RecommendationCrossSell, ConfidenceScore: 0.55},
		}
		for i := range rows {
			if _, err := db.InsertRecommendation(ctx, &rows[i]); err != nil {
				return fmt.Errorf("seed facts: %w", err)
			}
		}
	}

	templates := []models.MessageTemplate{
		{TemplateName: "upsell_default", TemplateType: models.TemplateUpsell, Content: "Hi {customer}, upgrade from {base} to {recommended} for stronger protection."},
		{TemplateName: "crosssell_default", TemplateType: models.TemplateCrossSell, Content: "Hi {customer}, customers who bought {base} also add {recommended}."},
		{TemplateName: "general_thanks", TemplateType: models.TemplateGeneral, Content: "Hi {customer}, thank you for choosing {base}!"},
	}
	for i := range templates {
		if err := db.UpsertMessageTemplate(ctx, &templates[i]); err != nil {
			return fmt.Errorf("seed templates: %w", err)
		}
	}

	logging.Info().Int("items", len(items)).Int("ratings", len(ratings)).Msg("Demo data seeded")
	return nil
}
