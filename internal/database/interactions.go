// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/crmrec/internal/models"
)

// UpsertInteraction records an interaction. A second write with the same
// (user, item, type) replaces the metadata and timestamp.
func (db *DB) UpsertInteraction(ctx context.Context, in *models.Interaction) error {
	if !in.Type.Valid() {
		return fmt.Errorf("upsert interaction: invalid type %q", in.Type)
	}

	var meta sql.NullString
	if len(in.Metadata) > 0 {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return fmt.Errorf("marshal interaction metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	ts := in.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO interactions (user_id, item_id, interaction_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, item_id, interaction_type) DO UPDATE SET
		  metadata = excluded.metadata,
		  created_at = excluded.created_at`,
		in.UserID, in.ItemID, string(in.Type), meta, ts)
	if err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}
	return nil
}

// ListUserInteractions returns the user's interactions, newest first.
func (db *DB) ListUserInteractions(ctx context.Context, userID int64) ([]models.Interaction, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, item_id, interaction_type, metadata, created_at
		FROM interactions
		WHERE user_id = ?
		ORDER BY created_at DESC, item_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var out []models.Interaction
	for rows.Next() {
		var (
			in   models.Interaction
			typ  string
			meta sql.NullString
		)
		if err := rows.Scan(&in.UserID, &in.ItemID, &typ, &meta, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = models.InteractionType(typ)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &in.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal interaction metadata: %w", err)
			}
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}
