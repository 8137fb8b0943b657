// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGINT PRIMARY KEY,
		title VARCHAR NOT NULL,
		description VARCHAR NOT NULL DEFAULT '',
		category VARCHAR NOT NULL DEFAULT '',
		tags VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		rating DOUBLE NOT NULL,
		rated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		user_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		interaction_type VARCHAR NOT NULL,
		metadata VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, item_id, interaction_type)
	)`,
	`CREATE TABLE IF NOT EXISTS customer_details (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		phone VARCHAR NOT NULL DEFAULT '',
		email VARCHAR NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS product_details (
		id BIGINT PRIMARY KEY,
		product_name VARCHAR NOT NULL,
		price DOUBLE NOT NULL DEFAULT 0
	)`,
	`CREATE SEQUENCE IF NOT EXISTS seq_pest_recommendations START 1`,
	`CREATE TABLE IF NOT EXISTS pest_recommendations (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_pest_recommendations'),
		customer_id BIGINT NOT NULL,
		base_product_id BIGINT NOT NULL,
		recommended_product_id BIGINT NOT NULL,
		recommendation_type VARCHAR NOT NULL,
		confidence_score DECIMAL(5,2) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pest_rec_customer ON pest_recommendations(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_pest_rec_base ON pest_recommendations(base_product_id)`,
	`CREATE SEQUENCE IF NOT EXISTS seq_message_templates START 1`,
	`CREATE TABLE IF NOT EXISTS message_templates (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_message_templates'),
		template_name VARCHAR NOT NULL UNIQUE,
		template_type VARCHAR NOT NULL,
		content VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sent_messages (
		id VARCHAR PRIMARY KEY,
		customer_id BIGINT NOT NULL,
		message VARCHAR NOT NULL,
		sent_at TIMESTAMP NOT NULL
	)`,
}

func (db *DB) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
