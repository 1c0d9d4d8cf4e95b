// Package database builds sanitized SQL list queries for the repositories.
package database

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal              ConditionType = "="
	NotEqual           ConditionType = "!="
	GreaterThan        ConditionType = ">"
	LessThan           ConditionType = "<"
	LessThanOrEqual    ConditionType = "<="
	GreaterThanOrEqual ConditionType = ">="
	In                 ConditionType = "IN"
	Custom             ConditionType = "CUSTOM"
	defaultLimit                     = -1
	defaultOffset                    = -1
)

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

type Condition struct {
	Field    string
	Type     ConditionType
	Value    any
	rawQuery *string
}

func WhereCond(field string, condType ConditionType, value any) Condition {
	if condType == Custom {
		//nolint:forbidigo // panic prevents misuse; custom conditions must provide raw SQL via WhereRawCond.
		panic("Use WhereRawCond for Custom type")
	}
	return Condition{
		Field: field,
		Type:  condType,
		Value: value,
	}
}

// WhereRawCond adds a raw SQL condition. Placeholders are numbered from $1
// within rawQuery and renumbered when the query is assembled.
func WhereRawCond(rawQuery string, params ...any) Condition {
	queryStr := rawQuery
	return Condition{
		Type:     Custom,
		rawQuery: &queryStr,
		Value:    params,
	}
}

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Column    string
	Direction string
}

type ListQueryOptions struct {
	Table      string
	Columns    []string
	CountOnly  bool
	Conditions []Condition
	OrderBy    []OrderTerm
	Limit      int
	Offset     int
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{
		Table:  table,
		Limit:  defaultLimit,
		Offset: defaultOffset,
	}

	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Columns = cols
	}
}

// WithCondition adds a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = append(o.Conditions, cond)
	}
}

// WithConditions sets the entire list of conditions.
func WithConditions(conds ...Condition) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.Conditions = conds
	}
}

// WithOrderBy appends an ordering column and direction. Later calls add tie-breakers.
func WithOrderBy(column, direction string) ListQueryOption {
	return func(o *ListQueryOptions) {
		o.OrderBy = append(o.OrderBy, OrderTerm{Column: column, Direction: direction})
	}
}

// WithLimit sets the limit. Accepts 0.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the offset. Accepts 0.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// WithCountOnly sets the query to count only.
func WithCountOnly() ListQueryOption {
	return func(o *ListQueryOptions) {
		o.CountOnly = true
	}
}

// sanitizeIdentifier sanitizes identifiers like "column" or "table.column".
func sanitizeIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

func buildSelectClause(options *ListQueryOptions) string {
	if options.CountOnly {
		return "SELECT COUNT(*) "
	}
	if len(options.Columns) == 0 {
		return "SELECT * "
	}

	cols := make([]string, len(options.Columns))
	for i, col := range options.Columns {
		cols[i] = sanitizeIdentifier(strings.TrimSpace(col))
	}
	return fmt.Sprintf("SELECT %s ", strings.Join(cols, ", "))
}

func buildOrderClause(terms []OrderTerm) string {
	if len(terms) == 0 {
		return ""
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		if term.Column == "" {
			continue
		}
		part := sanitizeIdentifier(term.Column)
		dir := strings.ToUpper(term.Direction)
		if dir == "ASC" || dir == "DESC" {
			part += " " + dir
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func buildPaginationClause(options *ListQueryOptions, paramCount int, args []any) (string, []any) {
	var clause strings.Builder

	// Add LIMIT and OFFSET only when explicitly set (not the default sentinel)
	if options.Limit != defaultLimit {
		fmt.Fprintf(&clause, " LIMIT $%d", paramCount)
		args = append(args, options.Limit)
		paramCount++
	}
	if options.Offset != defaultOffset {
		fmt.Fprintf(&clause, " OFFSET $%d", paramCount)
		args = append(args, options.Offset)
	}

	return clause.String(), args
}

// BuildListQuery constructs a SQL query string and arguments from options, sanitizing identifiers.
// It handles SELECT, WHERE, ORDER BY, LIMIT, and OFFSET clauses.
//
// Example usage:
//
//	options := NewListQueryOptions("completions",
//		WithColumns("id", "completion_id", "status"),
//		WithCondition(WhereCond("status", Equal, "completed")),
//		WithOrderBy("created_at", "DESC"),
//		WithOrderBy("id", "DESC"),
//		WithLimit(10),
//		WithOffset(0),
//	)
//
//	query, args := BuildListQuery(options)
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var query strings.Builder
	query.WriteString(buildSelectClause(options))
	query.WriteString("FROM ")
	query.WriteString(sanitizeIdentifier(options.Table))

	whereClause, args, nextParam := buildWhereClause(options.Conditions, 1)
	if whereClause != "" {
		query.WriteString(" ")
		query.WriteString(whereClause)
	}

	if options.CountOnly {
		return query.String(), args
	}

	query.WriteString(buildOrderClause(options.OrderBy))
	pagination, args := buildPaginationClause(options, nextParam, args)
	query.WriteString(pagination)

	return query.String(), args
}

func handleStandardCondition(cond Condition, field string, paramCount int) (string, []any, int) {
	return fmt.Sprintf("%s %s $%d", field, cond.Type, paramCount), []any{cond.Value}, paramCount + 1
}

func handleInCondition(cond Condition, field string, paramCount int) (string, []any, int) {
	// Accept any slice type via reflection
	rv := reflect.ValueOf(cond.Value)
	if rv.Kind() != reflect.Slice || rv.Len() == 0 {
		return "", nil, paramCount
	}

	placeholders := make([]string, rv.Len())
	args := make([]any, rv.Len())
	for i := range rv.Len() {
		placeholders[i] = fmt.Sprintf("$%d", paramCount)
		args[i] = rv.Index(i).Interface()
		paramCount++
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(placeholders, ", ")), args, paramCount
}

func handleCustomCondition(cond Condition, paramCount int) (string, []any, int) {
	if cond.rawQuery == nil || *cond.rawQuery == "" {
		return "", nil, paramCount
	}
	params, _ := cond.Value.([]any)

	// Renumber placeholders, handling $10 vs $1 correctly
	var args []any
	idxMap := make(map[int]int)
	conditionStr := placeholderRe.ReplaceAllStringFunc(*cond.rawQuery, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil || n < 1 || n > len(params) {
			return m
		}
		if _, ok := idxMap[n]; !ok {
			idxMap[n] = paramCount
			args = append(args, params[n-1])
			paramCount++
		}
		return fmt.Sprintf("$%d", idxMap[n])
	})

	return conditionStr, args, paramCount
}

func processCondition(cond Condition, paramCount int) (string, []any, int) {
	if cond.Type == Custom {
		return handleCustomCondition(cond, paramCount)
	}
	if cond.Field == "" {
		return "", nil, paramCount
	}
	field := sanitizeIdentifier(cond.Field)

	switch cond.Type {
	case In:
		return handleInCondition(cond, field, paramCount)
	case Equal, NotEqual, GreaterThan, LessThan, LessThanOrEqual, GreaterThanOrEqual:
		return handleStandardCondition(cond, field, paramCount)
	case Custom:
	}
	return "", nil, paramCount
}

func buildWhereClause(inputConditions []Condition, startParamIndex int) (string, []any, int) {
	conditions := make([]string, 0, len(inputConditions))
	var args []any
	paramCount := startParamIndex

	for _, cond := range inputConditions {
		conditionStr, newArgs, next := processCondition(cond, paramCount)
		if conditionStr != "" {
			conditions = append(conditions, conditionStr)
			args = append(args, newArgs...)
			paramCount = next
		}
	}

	if len(conditions) == 0 {
		return "", args, paramCount
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, paramCount
}
