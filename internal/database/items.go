// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/crmrec/internal/models"
)

const itemColumns = `id, title, description, category, tags, created_at`

// ListItems returns every item ordered by ID.
func (db *DB) ListItems(ctx context.Context) ([]models.Item, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Category, &it.Tags, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// FirstItems returns up to limit items in ID order.
func (db *DB) FirstItems(ctx context.Context, limit int) ([]models.Item, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query first items: %w", err)
	}
	defer closeWithLog(rows, "rows")

	items := make([]models.Item, 0, limit)
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Category, &it.Tags, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// GetItemsByIDs returns the items whose IDs are listed, keyed by ID.
// Unknown IDs are absent from the map.
func (db *DB) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error) {
	out := make(map[int64]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	q := `SELECT ` + itemColumns + ` FROM items WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query items by id: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Category, &it.Tags, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// UpsertItem inserts an item, or replaces the one with the same ID.
// A zero ID allocates max(id)+1. The stored ID is returned.
func (db *DB) UpsertItem(ctx context.Context, it *models.Item) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var id int64
	var err error
	if it.ID == 0 {
		err = db.conn.QueryRowContext(ctx,
			`INSERT INTO items (id, title, description, category, tags)
			 SELECT COALESCE(MAX(id), 0) + 1, ?, ?, ?, ? FROM items
			 RETURNING id`,
			it.Title, it.Description, it.Category, it.Tags).Scan(&id)
	} else {
		err = db.conn.QueryRowContext(ctx,
			`INSERT INTO items (id, title, description, category, tags) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   title = excluded.title,
			   description = excluded.description,
			   category = excluded.category,
			   tags = excluded.tags
			 RETURNING id`,
			it.ID, it.Title, it.Description, it.Category, it.Tags).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert item: %w", err)
	}
	return id, nil
}
