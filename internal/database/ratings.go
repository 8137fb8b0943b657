// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/crmrec/internal/models"
)

// ListRatings returns every rating ordered by (user_id, item_id).
func (db *DB) ListRatings(ctx context.Context) ([]models.Rating, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, item_id, rating, rated_at FROM ratings ORDER BY user_id, item_id`)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.ItemID, &r.Rating, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return ratings, nil
}

// UserRatings returns every stored rating of the user keyed by item ID,
// including zero ratings. An empty map means the user has never rated.
func (db *DB) UserRatings(ctx context.Context, userID int64) (map[int64]float64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, rating FROM ratings WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user ratings: %w", err)
	}
	defer closeWithLog(rows, "rows")

	ratings := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var r float64
		if err := rows.Scan(&id, &r); err != nil {
			return nil, fmt.Errorf("scan user rating: %w", err)
		}
		ratings[id] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ratings: %w", err)
	}
	return ratings, nil
}

// UpsertRating stores a rating; a later write for the same pair overwrites.
func (db *DB) UpsertRating(ctx context.Context, r *models.Rating) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ratings (user_id, item_id, rating, rated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
		  rating = excluded.rating,
		  rated_at = excluded.rated_at`,
		r.UserID, r.ItemID, r.Rating, ts)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// CountRatings returns the number of stored ratings.
func (db *DB) CountRatings(ctx context.Context) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM ratings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return n, nil
}
