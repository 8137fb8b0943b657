// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package query builds parameterized WHERE clauses for the database package.
package query

import "strings"

// WhereBuilder accumulates AND-joined conditions and their arguments.
//
//	wb := query.NewWhereBuilder()
//	wb.AddClause("pr.customer_id = ?", id)
//	where, args := wb.Build() // "pr.customer_id = ?", [id]
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder returns an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause appends a raw condition with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddInt64IfSet appends "column = ?" when value is positive.
func (wb *WhereBuilder) AddInt64IfSet(column string, value int64) *WhereBuilder {
	if value > 0 {
		wb.AddClause(column+" = ?", value)
	}
	return wb
}

// AddStringIfSet appends "column = ?" when value is non-empty.
func (wb *WhereBuilder) AddStringIfSet(column, value string) *WhereBuilder {
	if value != "" {
		wb.AddClause(column+" = ?", value)
	}
	return wb
}

// IsEmpty reports whether no conditions were added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}

// Build returns the AND-joined clause ("1=1" when empty) and its arguments.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}
