package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildListQuery_BasicSelect(t *testing.T) {
	query, args := BuildListQuery(NewListQueryOptions("completions"))

	assert.Equal(t, `SELECT * FROM "completions"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_WithColumns(t *testing.T) {
	opts := NewListQueryOptions("completions",
		WithColumns("id", "completion_id", "completions.status"),
	)
	query, args := BuildListQuery(opts)

	assert.Equal(t, `SELECT "id", "completion_id", "completions"."status" FROM "completions"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_CountOnly(t *testing.T) {
	opts := NewListQueryOptions("completions",
		WithCountOnly(),
		WithCondition(WhereCond("status", Equal, "completed")),
		WithOrderBy("created_at", "DESC"),
		WithLimit(10),
	)
	query, args := BuildListQuery(opts)

	assert.Equal(t, `SELECT COUNT(*) FROM "completions" WHERE "status" = $1`, query)
	assert.Equal(t, []any{"completed"}, args)
}

func TestBuildListQuery_FilteredPageNewestFirst(t *testing.T) {
	opts := NewListQueryOptions("completions",
		WithColumns("id", "status"),
		WithCondition(WhereCond("status", Equal, "completed")),
		WithOrderBy("created_at", "desc"),
		WithOrderBy("id", "DESC"),
		WithLimit(2),
		WithOffset(0),
	)
	query, args := BuildListQuery(opts)

	assert.Equal(t,
		`SELECT "id", "status" FROM "completions" WHERE "status" = $1 ORDER BY "created_at" DESC, "id" DESC LIMIT $2 OFFSET $3`,
		query,
	)
	assert.Equal(t, []any{"completed", 2, 0}, args)
}

func TestBuildListQuery_InvalidDirectionIgnored(t *testing.T) {
	opts := NewListQueryOptions("completions", WithOrderBy("created_at", "; DROP TABLE x"))
	query, _ := BuildListQuery(opts)

	assert.Equal(t, `SELECT * FROM "completions" ORDER BY "created_at"`, query)
}

func TestBuildListQuery_NegativePaginationIgnored(t *testing.T) {
	opts := NewListQueryOptions("completions", WithLimit(-5), WithOffset(-1))
	query, args := BuildListQuery(opts)

	assert.Equal(t, `SELECT * FROM "completions"`, query)
	assert.Empty(t, args)
}

func TestBuildListQuery_InAndCustom(t *testing.T) {
	opts := NewListQueryOptions("completions",
		WithCondition(WhereCond("status", In, []string{"pending", "processing"})),
		WithCondition(WhereRawCond("created_at < now() - ($1 * interval '1 second')", 3600)),
		WithLimit(5),
	)
	query, args := BuildListQuery(opts)

	assert.Equal(t,
		`SELECT * FROM "completions" WHERE "status" IN ($1, $2) AND created_at < now() - ($3 * interval '1 second') LIMIT $4`,
		query,
	)
	assert.Equal(t, []any{"pending", "processing", 3600, 5}, args)
}

func TestBuildListQuery_EmptyInSkipped(t *testing.T) {
	opts := NewListQueryOptions("completions", WithCondition(WhereCond("status", In, []string{})))
	query, args := BuildListQuery(opts)

	assert.Equal(t, `SELECT * FROM "completions"`, query)
	assert.Empty(t, args)
}

func TestWhereCond_CustomPanics(t *testing.T) {
	assert.Panics(t, func() { WhereCond("x", Custom, 1) })
}

func TestBuildListQuery_Nil(t *testing.T) {
	query, args := BuildListQuery(nil)
	assert.Empty(t, query)
	assert.Nil(t, args)
}
