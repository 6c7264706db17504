package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventscape/relevance/internal/models"
)

// upcomingColumns tells buildUpcomingQuery how a candidate table names the columns it filters on.
type upcomingColumns struct {
	// lastDayExpr is the SQL expression for the last day the candidate is still valid.
	lastDayExpr string
	// categoryExpr tests membership of a single category bound to the given placeholder.
	categoryExpr func(placeholder string) string
	// extraConditions are always applied (e.g. published status).
	extraConditions []string
}

// buildUpcomingQuery appends WHERE/ORDER/LIMIT clauses for filters to selectClause.
// Candidates are returned newest first so truncation by Limit keeps the freshest rows.
func buildUpcomingQuery(selectClause string, cols upcomingColumns, filters *models.UpcomingFilters) (string, []any) {
	conditions := append([]string(nil), cols.extraConditions...)

	var args []any

	argCount := 1

	from := filters.From
	if from.IsZero() {
		from = time.Now()
	}

	conditions = append(conditions, fmt.Sprintf("%s >= $%d::date", cols.lastDayExpr, argCount))
	args = append(args, from.UTC().Format(time.DateOnly))
	argCount++

	if filters.WithEmbeddingOnly {
		conditions = append(conditions, "embedding IS NOT NULL")
	}

	if filters.Category != nil && cols.categoryExpr != nil {
		conditions = append(conditions, cols.categoryExpr(fmt.Sprintf("$%d", argCount)))
		args = append(args, *filters.Category)
		argCount++
	}

	query := selectClause + " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY created_at DESC, id"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filters.Limit)
	}

	return query, args
}
