package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/data/database"
	"github.com/target/jobrelay/internal/data/pgxutil"
	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
)

const (
	completionsTable = "completions"

	// DefaultListLimit is the page size used when a listing does not set one.
	DefaultListLimit    = 50
	// DefaultMaxListLimit is the largest page a listing may request unless configured otherwise.
	DefaultMaxListLimit = 100

	// Advisory lock keys for the stale pending sweep; one sweeper at a time.
	advisoryLockReaperMajor       int64 = 2001
	advisoryLockReaperFailPending int64 = 1
	stalePendingErrorMessage            = "Completion timed out in pending status"

	discardTimeout = 5 * time.Second
)

var completionColumnList = []string{
	"id",
	"completion_id",
	"job_id",
	"model",
	"user_message",
	"system_message",
	"status",
	"response_content",
	"response_tokens",
	"prompt_tokens",
	"total_tokens",
	"finish_reason",
	"raw_response",
	"error_message",
	"attempted_at",
	"completed_at",
	"created_at",
	"updated_at",
}

var completionColumns = strings.Join(completionColumnList, ", ")

// RepoConfig holds configuration options for the completion repository.
type RepoConfig struct {
	Logger       *slog.Logger
	Clock        Clock
	// DefaultLimit and MaxLimit bound List page sizes. Zero selects the package defaults.
	DefaultLimit int
	MaxLimit     int
}

// CompletionRepo provides database operations for completion records.
type CompletionRepo struct {
	DB           *sql.DB
	clock        Clock
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

var (
	_ core.CompletionRepository   = (*CompletionRepo)(nil)
	_ core.CompletionTransitioner = (*CompletionRepo)(nil)
	_ core.ReaperRepository       = (*CompletionRepo)(nil)
)

// NewCompletionRepo creates a new CompletionRepo with the given database connection and configuration.
func NewCompletionRepo(db *sql.DB, cfg RepoConfig) *CompletionRepo {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxListLimit
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	return &CompletionRepo{
		DB:           db,
		clock:        clock,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// CreatePending commits a pending record, runs params.Enqueue and stores the returned job id.
//
// The record is committed before the job exists so a worker that reserves the job
// immediately always finds it. An enqueue error deletes the record again; if that
// delete fails the row stays pending without a job id until the reaper fails it.
// Failing to store the job id is logged and the record is returned with the job
// id set in memory: the job is already queued and will run.
func (r *CompletionRepo) CreatePending(
	ctx context.Context,
	params core.CreatePendingParams,
) (*model.Completion, error) {
	if params.Enqueue == nil {
		return nil, ErrEnqueueRequired
	}

	c, err := r.insertPending(ctx, params.Completion)
	if err != nil {
		return nil, err
	}

	jobID, err := params.Enqueue(ctx, c)
	if err != nil {
		r.discardPending(ctx, c)
		return nil, fmt.Errorf("enqueue completion %s: %w", c.CompletionID, err)
	}

	updated, err := r.setJobID(ctx, c.ID, jobID)
	if err != nil {
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "failed to record completion job id",
				"completion_id", c.CompletionID,
				"job_id", jobID,
				"error", err,
			)
		}
		c.JobID = &jobID
		return c, nil
	}
	return updated, nil
}

func (r *CompletionRepo) insertPending(ctx context.Context, p model.CreateCompletionParams) (*model.Completion, error) {
	now := r.clock.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO completions (completion_id, model, user_message, system_message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+completionColumns,
		p.CompletionID, p.Model, p.UserMessage, p.SystemMessage, model.CompletionStatusPending, now,
	)
	c, err := scanCompletionFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", apperrors.MapDBError(err))
	}
	return c, nil
}

// discardPending removes a record whose job was never queued. It runs even when
// the request context is already done.
func (r *CompletionRepo) discardPending(ctx context.Context, c *model.Completion) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(dctx, `
		DELETE FROM completions
		WHERE id = $1 AND status = 'pending' AND job_id IS NULL`,
		c.ID,
	)
	if err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "failed to discard unqueued completion",
			"completion_id", c.CompletionID,
			"error", err,
		)
	}
}

func (r *CompletionRepo) setJobID(ctx context.Context, id, jobID string) (*model.Completion, error) {
	row := r.DB.QueryRowContext(ctx, `
		UPDATE completions
		SET job_id = $2
		WHERE id = $1
		RETURNING `+completionColumns,
		id, jobID,
	)
	c, err := scanCompletionFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("set completion job id: %w", err)
	}
	return c, nil
}

// GetByID retrieves a completion by its primary key.
func (r *CompletionRepo) GetByID(ctx context.Context, id string) (*model.Completion, error) {
	return r.getOne(ctx, "id", id)
}

// GetByCompletionID retrieves a completion by its caller-facing completion id.
func (r *CompletionRepo) GetByCompletionID(ctx context.Context, completionID string) (*model.Completion, error) {
	return r.getOne(ctx, "completion_id", completionID)
}

func (r *CompletionRepo) getOne(ctx context.Context, column, value string) (*model.Completion, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions(completionsTable,
		database.WithColumns(completionColumnList...),
		database.WithCondition(database.WhereCond(column, database.Equal, value)),
		database.WithLimit(1),
	))

	var c *model.Completion
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		c, err = pgx.CollectExactlyOneRow(rows, collectCompletion)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCompletionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get completion by %s: %w", column, apperrors.MapDBError(err))
	}
	return c, nil
}

// List returns completions ordered newest first. The limit defaults to the configured
// page size and is clamped to the maximum; a negative offset is treated as zero.
func (r *CompletionRepo) List(ctx context.Context, opts model.CompletionListOptions) ([]*model.Completion, error) {
	opts = r.NormalizeListOptions(opts)
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("Invalid status %q.", *opts.Status))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions(completionsTable,
		database.WithColumns(completionColumnList...),
		database.WithConditions(listConditions(opts)...),
		database.WithOrderBy("created_at", "DESC"),
		database.WithOrderBy("id", "DESC"),
		database.WithLimit(opts.Limit),
		database.WithOffset(opts.Offset),
	))

	var out []*model.Completion
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, collectCompletion)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", apperrors.MapDBError(err))
	}
	if out == nil {
		out = []*model.Completion{}
	}
	return out, nil
}

// Count returns how many completions match the status filter, ignoring pagination.
func (r *CompletionRepo) Count(ctx context.Context, opts model.CompletionListOptions) (int, error) {
	query, args := database.BuildListQuery(database.NewListQueryOptions(completionsTable,
		database.WithCountOnly(),
		database.WithConditions(listConditions(opts)...),
	))

	var total int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count completions: %w", apperrors.MapDBError(err))
	}
	return total, nil
}

// NormalizeListOptions applies the default page size, the maximum and the offset floor.
func (r *CompletionRepo) NormalizeListOptions(opts model.CompletionListOptions) model.CompletionListOptions {
	switch {
	case opts.Limit <= 0:
		opts.Limit = r.defaultLimit
	case opts.Limit > r.maxLimit:
		opts.Limit = r.maxLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}

func listConditions(opts model.CompletionListOptions) []database.Condition {
	if opts.Status == nil {
		return nil
	}
	return []database.Condition{database.WhereCond("status", database.Equal, string(*opts.Status))}
}

// MarkProcessing moves a pending record to processing and stamps attempted_at.
func (r *CompletionRepo) MarkProcessing(ctx context.Context, completionID string) (*model.Completion, error) {
	now := r.clock.Now().UTC()
	return r.transition(ctx, transitionParams{
		completionID: completionID,
		target:       model.CompletionStatusProcessing,
		set:          "attempted_at = COALESCE(attempted_at, $3), updated_at = $3",
		args:         []any{now},
	})
}

// MarkCompleted stores the provider response and moves the record to completed.
func (r *CompletionRepo) MarkCompleted(
	ctx context.Context,
	completionID string,
	out model.CompletionOutput,
) (*model.Completion, error) {
	now := r.clock.Now().UTC()
	var raw any
	if len(out.RawResponse) > 0 {
		raw = string(out.RawResponse)
	}
	return r.transition(ctx, transitionParams{
		completionID: completionID,
		target:       model.CompletionStatusCompleted,
		set: `response_content = $3,
			prompt_tokens = $4,
			response_tokens = $5,
			total_tokens = $6,
			finish_reason = NULLIF($7, ''),
			raw_response = $8::jsonb,
			error_message = NULL,
			completed_at = $9,
			updated_at = $9`,
		args: []any{out.Content, out.PromptTokens, out.ResponseTokens, out.TotalTokens, out.FinishReason, raw, now},
	})
}

// MarkFailed records errMsg and moves the record to failed.
func (r *CompletionRepo) MarkFailed(ctx context.Context, completionID, errMsg string) (*model.Completion, error) {
	now := r.clock.Now().UTC()
	return r.transition(ctx, transitionParams{
		completionID: completionID,
		target:       model.CompletionStatusFailed,
		set:          "error_message = $3, completed_at = $4, updated_at = $4",
		args:         []any{errMsg, now},
	})
}

type transitionParams struct {
	completionID string
	target       model.CompletionStatus
	// set is the SET clause; its placeholders start at $3 ($1 is the id, $2 the allowed sources).
	set  string
	args []any
}

// transition applies a guarded update that only matches rows in a strictly earlier status.
// When nothing matches, the stored record decides the outcome: already at the target is a
// no-op, anything else is an invalid transition.
func (r *CompletionRepo) transition(ctx context.Context, p transitionParams) (*model.Completion, error) {
	from := make([]string, 0, 3)
	for _, s := range p.target.Predecessors() {
		if s != p.target {
			from = append(from, string(s))
		}
	}

	query := `UPDATE completions SET status = '` + string(p.target) + `', ` + p.set + `
		WHERE completion_id = $1 AND status = ANY($2)
		RETURNING ` + completionColumns
	args := append([]any{p.completionID, from}, p.args...)

	var updated *model.Completion
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		updated, err = pgx.CollectExactlyOneRow(rows, collectCompletion)
		return err
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("mark completion %s: %w", p.target, apperrors.MapDBError(err))
	}

	current, getErr := r.GetByCompletionID(ctx, p.completionID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == p.target {
		return current, nil
	}
	if r.logger != nil {
		r.logger.WarnContext(ctx, "rejected completion status transition",
			"completion_id", p.completionID,
			"from", current.Status,
			"to", p.target,
		)
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, p.target)
}

// FailStalePending marks pending records older than maxAge as failed.
// Processes up to batchSize rows per call and skips the sweep when another
// instance holds the advisory lock. Returns the number of records failed.
func (r *CompletionRepo) FailStalePending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockReaperMajor, advisoryLockReaperFailPending).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			now := r.clock.Now().UTC()
			res, err := tx.ExecContext(ctx, `
				UPDATE completions
				SET status = 'failed',
					error_message = $4,
					completed_at = $1,
					updated_at = $1
				WHERE id IN (
					SELECT id FROM completions
					WHERE status = 'pending'
					  AND created_at < $2
					ORDER BY created_at
					LIMIT $3
					FOR UPDATE SKIP LOCKED
				)
			`, now, now.Add(-maxAge), batchSize, stalePendingErrorMessage)
			if err != nil {
				return fmt.Errorf("fail stale pending completions: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

type completionRowScanner interface {
	Scan(dest ...any) error
}

type completionRowData struct {
	jobID, systemMessage, responseContent, finishReason, errorMessage sql.NullString
	responseTokens, promptTokens, totalTokens                         sql.NullInt32
	rawResponse                                                       []byte
	attemptedAt, completedAt                                          sql.NullTime
}

func (d *completionRowData) scanInto(scanner completionRowScanner, c *model.Completion) error {
	return scanner.Scan(
		&c.ID,
		&c.CompletionID,
		&d.jobID,
		&c.Model,
		&c.UserMessage,
		&d.systemMessage,
		&c.Status,
		&d.responseContent,
		&d.responseTokens,
		&d.promptTokens,
		&d.totalTokens,
		&d.finishReason,
		&d.rawResponse,
		&d.errorMessage,
		&d.attemptedAt,
		&d.completedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (d *completionRowData) apply(c *model.Completion) {
	c.JobID = cloneNullableString(d.jobID)
	c.SystemMessage = cloneNullableString(d.systemMessage)
	c.ResponseContent = cloneNullableString(d.responseContent)
	c.FinishReason = cloneNullableString(d.finishReason)
	c.ErrorMessage = cloneNullableString(d.errorMessage)
	c.ResponseTokens = cloneNullableInt(d.responseTokens)
	c.PromptTokens = cloneNullableInt(d.promptTokens)
	c.TotalTokens = cloneNullableInt(d.totalTokens)
	c.RawResponse = cloneNullableJSON(d.rawResponse)
	c.AttemptedAt = cloneNullableTime(d.attemptedAt)
	c.CompletedAt = cloneNullableTime(d.completedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
}

func scanCompletionFromRow(scanner completionRowScanner) (*model.Completion, error) {
	c := &model.Completion{}
	var data completionRowData
	if err := data.scanInto(scanner, c); err != nil {
		return nil, err
	}
	data.apply(c)
	return c, nil
}

func collectCompletion(row pgx.CollectableRow) (*model.Completion, error) {
	return scanCompletionFromRow(row)
}

func cloneNullableJSON(raw []byte) []byte {
	if raw == nil {
		return nil
	}
	return append([]byte(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableInt(ni sql.NullInt32) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int32)
	return &v
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
