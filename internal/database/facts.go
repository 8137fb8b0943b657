// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/crmrec/internal/database/query"
	"github.com/tomtom215/crmrec/internal/models"
)

// FactQueryLimit caps every recommendation query over the fact table.
const FactQueryLimit = 5

// ContentRecommendations returns recommended product names for base products
// whose name contains productName (case-insensitive), by confidence.
func (db *DB) ContentRecommendations(ctx context.Context, productName string) ([]string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT p2.product_name
		FROM pest_recommendations pr
		JOIN product_details p1 ON pr.base_product_id = p1.id
		JOIN product_details p2 ON pr.recommended_product_id = p2.id
		WHERE p1.product_name ILIKE ?
		ORDER BY pr.confidence_score DESC, p2.product_name ASC
		LIMIT ?`, "%"+productName+"%", FactQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query content recommendations: %w", err)
	}
	return scanStrings(rows)
}

// SimilarCustomers returns customers sharing recommended products with
// customerID, by number of shared rows.
func (db *DB) SimilarCustomers(ctx context.Context, customerID int64) ([]models.SimilarCustomer, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT pr2.customer_id, COUNT(*) AS common_count
		FROM pest_recommendations pr1
		JOIN pest_recommendations pr2
		  ON pr1.recommended_product_id = pr2.recommended_product_id
		WHERE pr1.customer_id = ?
		  AND pr2.customer_id != pr1.customer_id
		GROUP BY pr2.customer_id
		ORDER BY common_count DESC, pr2.customer_id ASC
		LIMIT ?`, customerID, FactQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query similar customers: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := []models.SimilarCustomer{}
	for rows.Next() {
		var sc models.SimilarCustomer
		if err := rows.Scan(&sc.CustomerID, &sc.CommonCount); err != nil {
			return nil, fmt.Errorf("scan similar customer: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar customers: %w", err)
	}
	return out, nil
}

// UpsellRecommendations returns distinct upsell product names for a base
// product, by best confidence.
func (db *DB) UpsellRecommendations(ctx context.Context, productID int64) ([]string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT rp.product_name
		FROM pest_recommendations pr
		JOIN product_details bp ON pr.base_product_id = bp.id
		JOIN product_details rp ON pr.recommended_product_id = rp.id
		WHERE pr.recommendation_type = ?
		  AND bp.id = ?
		GROUP BY rp.product_name
		ORDER BY MAX(pr.confidence_score) DESC, rp.product_name ASC
		LIMIT ?`, models.RecommendationUpsell, productID, FactQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query upsell recommendations: %w", err)
	}
	return scanStrings(rows)
}

// CrossSellRecommendations returns cross-sell product names for a customer
// with how often each was recommended.
func (db *DB) CrossSellRecommendations(ctx context.Context, customerID int64) ([]models.CrossSellCount, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT pd.product_name, COUNT(*) AS count
		FROM pest_recommendations pr
		JOIN product_details pd ON pr.recommended_product_id = pd.id
		WHERE pr.customer_id = ?
		  AND pr.recommendation_type = ?
		GROUP BY pd.product_name
		ORDER BY count DESC, pd.product_name ASC
		LIMIT ?`, customerID, models.RecommendationCrossSell, FactQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("query cross-sell recommendations: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := []models.CrossSellCount{}
	for rows.Next() {
		var c models.CrossSellCount
		if err := rows.Scan(&c.ProductName, &c.Count); err != nil {
			return nil, fmt.Errorf("scan cross-sell: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cross-sell: %w", err)
	}
	return out, nil
}

// DashboardFilter narrows the dashboard listing. Zero values mean no filter.
type DashboardFilter struct {
	CustomerID         int64
	RecommendationType string
}

// Dashboard lists fact-table records with display names, by confidence.
func (db *DB) Dashboard(ctx context.Context, filter DashboardFilter) ([]models.DashboardRow, error) {
	where, args := query.NewWhereBuilder().
		AddInt64IfSet("pr.customer_id", filter.CustomerID).
		AddStringIfSet("pr.recommendation_type", filter.RecommendationType).
		Build()

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT
			c.name,
			bp.product_name,
			rp.product_name,
			pr.recommendation_type,
			CAST(pr.confidence_score AS DOUBLE)
		FROM pest_recommendations pr
		JOIN customer_details c ON pr.customer_id = c.id
		JOIN product_details bp ON pr.base_product_id = bp.id
		JOIN product_details rp ON pr.recommended_product_id = rp.id
		WHERE `+where+`
		ORDER BY pr.confidence_score DESC, pr.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query dashboard: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := []models.DashboardRow{}
	for rows.Next() {
		var r models.DashboardRow
		if err := rows.Scan(&r.CustomerName, &r.BaseProduct, &r.RecommendedProduct, &r.RecommendationType, &r.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("scan dashboard row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dashboard: %w", err)
	}
	return out, nil
}

// ProductNames returns every product name in ascending order.
func (db *DB) ProductNames(ctx context.Context) ([]string, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT product_name FROM product_details ORDER BY product_name`)
	if err != nil {
		return nil, fmt.Errorf("query product names: %w", err)
	}
	return scanStrings(rows)
}

// GetCustomer returns a customer or ErrNotFound.
func (db *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var c models.Customer
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, phone, email FROM customer_details WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// GetProduct returns a product or ErrNotFound.
func (db *DB) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var p models.Product
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, product_name, price FROM product_details WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// TopRecommendationForProduct returns the highest-confidence recommendation
// stored for a base product, or nil when there is none.
func (db *DB) TopRecommendationForProduct(ctx context.Context, productID int64) (*models.ProductRecommendation, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var rec models.ProductRecommendation
	err := db.conn.QueryRowContext(ctx, `
		SELECT p2.product_name, pr.recommendation_type
		FROM pest_recommendations pr
		JOIN product_details p2 ON pr.recommended_product_id = p2.id
		WHERE pr.base_product_id = ?
		ORDER BY pr.confidence_score DESC, pr.id ASC
		LIMIT 1`, productID).Scan(&rec.RecommendedProduct, &rec.RecommendationType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product recommendation: %w", err)
	}
	return &rec, nil
}

// UpsertCustomer inserts or replaces a customer row.
func (db *DB) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO customer_details (id, name, phone, email) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, phone = excluded.phone, email = excluded.email`,
		c.ID, c.Name, c.Phone, c.Email)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// UpsertProduct inserts or replaces a product row.
func (db *DB) UpsertProduct(ctx context.Context, p *models.Product) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO product_details (id, product_name, price) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET product_name = excluded.product_name, price = excluded.price`,
		p.ID, p.Name, p.Price)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// InsertRecommendation appends a fact-table row and returns its ID. The
// table is normally filled by an external process; this exists for seeding.
func (db *DB) InsertRecommendation(ctx context.Context, r *models.RecommendationRecord) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO pest_recommendations
		  (customer_id, base_product_id, recommended_product_id, recommendation_type, confidence_score)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		r.CustomerID, r.BaseProductID, r.RecommendedProductID, r.RecommendationType, r.ConfidenceScore).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert recommendation: %w", err)
	}
	return id, nil
}

// scanStrings drains a single-column result set and closes it.
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer closeWithLog(rows, "rows")

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
