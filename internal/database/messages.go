// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/crmrec/internal/models"
)

// ListMessageTemplates returns all templates ordered by type, then name.
func (db *DB) ListMessageTemplates(ctx context.Context) ([]models.MessageTemplate, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, template_name, template_type, content
		FROM message_templates
		ORDER BY template_type, template_name`)
	if err != nil {
		return nil, fmt.Errorf("query message templates: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := []models.MessageTemplate{}
	for rows.Next() {
		var t models.MessageTemplate
		if err := rows.Scan(&t.ID, &t.TemplateName, &t.TemplateType, &t.Content); err != nil {
			return nil, fmt.Errorf("scan message template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message templates: %w", err)
	}
	return out, nil
}

// UpsertMessageTemplate inserts a template or replaces the one with the same name.
func (db *DB) UpsertMessageTemplate(ctx context.Context, t *models.MessageTemplate) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO message_templates (template_name, template_type, content) VALUES (?, ?, ?)
		ON CONFLICT (template_name) DO UPDATE SET
		  template_type = excluded.template_type,
		  content = excluded.content`,
		t.TemplateName, t.TemplateType, t.Content)
	if err != nil {
		return fmt.Errorf("upsert message template: %w", err)
	}
	return nil
}

// InsertSentMessage appends to the outbound message log.
func (db *DB) InsertSentMessage(ctx context.Context, m *models.SentMessage) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sent_messages (id, customer_id, message, sent_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.CustomerID, m.Message, m.SentAt)
	if err != nil {
		return fmt.Errorf("insert sent message: %w", err)
	}
	return nil
}

// ListSentMessages returns the messages sent to a customer, newest first.
func (db *DB) ListSentMessages(ctx context.Context, customerID int64) ([]models.SentMessage, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, customer_id, message, sent_at
		FROM sent_messages
		WHERE customer_id = ?
		ORDER BY sent_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query sent messages: %w", err)
	}
	defer closeWithLog(rows, "rows")

	out := []models.SentMessage{}
	for rows.Next() {
		var m models.SentMessage
		if err := rows.Scan(&m.ID, &m.CustomerID, &m.Message, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan sent message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sent messages: %w", err)
	}
	return out, nil
}
