package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

const maxPublicIDAttempts = 5

// Guard inspects the locked current record before a write. A non-nil error
// aborts the write and is returned unchanged.
type Guard func(current *domain.Complaint) error

// Mutation edits the free-text fields of a complaint. Nil fields are left as is.
type Mutation struct {
	Title       *string
	Description *string
	Location    *string
}

// Empty reports whether the mutation changes nothing.
func (m Mutation) Empty() bool {
	return m.Title == nil && m.Description == nil && m.Location == nil
}

// UpdateInput describes one entry appended to a complaint's update log.
type UpdateInput struct {
	ActorType domain.ActorType
	ActorID   *string
	Message   string
	Status    *domain.ComplaintStatus
}

// ComplaintFilter captures official search parameters.
type ComplaintFilter struct {
	Statuses   []domain.ComplaintStatus
	Categories []domain.Category
	Priorities []domain.Priority
	SearchTerm *string
	Limit      int
	Offset     int
}

// ComplaintRepository encapsulates complaint persistence. ApplyMutation and
// AppendUpdate run guard and write as one atomic unit per complaint.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	GetByPublicID(ctx context.Context, publicID string) (*domain.Complaint, error)
	ApplyMutation(ctx context.Context, id string, guard Guard, m Mutation) (*domain.Complaint, error)
	AppendUpdate(ctx context.Context, id string, guard Guard, in UpdateInput) (*domain.Complaint, *domain.ComplaintUpdate, error)
	ListUpdates(ctx context.Context, complaintID string) ([]domain.ComplaintUpdate, error)
	List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
}

// ErrAlreadyFiled is returned by Create when a complaint with the same intake
// key exists. The passed complaint is overwritten with the stored one.
var ErrAlreadyFiled = errors.New("complaint already filed for this intake")

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates the Postgres repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, public_id, submitter_name, submitter_contact, title, description, category,
               priority, status, location, channel, classification, secret_hash, created_at, updated_at`

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if err := prepareCreate(complaint); err != nil {
		return err
	}
	const query = `
        INSERT INTO complaints (public_id, submitter_name, submitter_contact, title, description, category,
            priority, status, location, channel, classification, secret_hash, intake_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`

	for attempt := 0; attempt < maxPublicIDAttempts; attempt++ {
		complaint.PublicID = domain.NewPublicID()
		err := r.pool.QueryRow(ctx, query,
			complaint.PublicID,
			complaint.SubmitterName,
			complaint.SubmitterContact,
			complaint.Title,
			complaint.Description,
			complaint.Category,
			complaint.Priority,
			complaint.Status,
			complaint.Location,
			complaint.Channel,
			complaint.Classification,
			complaint.SecretHash,
			nullIfEmpty(complaint.IntakeKey),
		).Scan(&complaint.ID, &complaint.CreatedAt, &complaint.UpdatedAt)
		if isUniqueViolation(err, "complaints_public_id_key") {
			continue
		}
		if isUniqueViolation(err, "complaints_intake_key_idx") {
			return r.loadFiled(ctx, complaint)
		}
		if err != nil {
			return apperrors.StoreUnavailable("create complaint", err)
		}
		return nil
	}
	return apperrors.StoreUnavailable("create complaint", errors.New("could not allocate a unique public id"))
}

// loadFiled replaces complaint with the one already filed under its intake key.
func (r *complaintRepository) loadFiled(ctx context.Context, complaint *domain.Complaint) error {
	key := complaint.IntakeKey
	existing, err := r.fetchSingle(ctx, r.pool, `SELECT `+complaintColumns+` FROM complaints WHERE intake_key=$1`, key)
	if err != nil {
		return err
	}
	*complaint = *existing
	complaint.IntakeKey = key
	return ErrAlreadyFiled
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if !domain.IsInternalID(id) {
		return nil, apperrors.ErrNotFound
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	return r.fetchSingle(ctx, r.pool, query, id)
}

func (r *complaintRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Complaint, error) {
	canonical, ok := domain.CanonicalPublicID(publicID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE public_id=$1`
	return r.fetchSingle(ctx, r.pool, query, canonical)
}

func (r *complaintRepository) ApplyMutation(ctx context.Context, id string, guard Guard, m Mutation) (*domain.Complaint, error) {
	var result *domain.Complaint
	err := r.withLocked(ctx, "apply mutation", id, guard, func(tx pgx.Tx, current *domain.Complaint) error {
		if current.Status.Terminal() {
			return apperrors.ErrComplaintClosed
		}
		applyMutation(current, m)
		const query = `
            UPDATE complaints SET title=$1, description=$2, location=$3, updated_at=NOW()
            WHERE id=$4
            RETURNING updated_at`
		if err := tx.QueryRow(ctx, query, current.Title, current.Description, current.Location, current.ID).
			Scan(&current.UpdatedAt); err != nil {
			return apperrors.StoreUnavailable("apply mutation", err)
		}
		result = current
		return nil
	})
	return result, err
}

func (r *complaintRepository) AppendUpdate(ctx context.Context, id string, guard Guard, in UpdateInput) (*domain.Complaint, *domain.ComplaintUpdate, error) {
	if err := validateUpdate(in); err != nil {
		return nil, nil, err
	}
	var (
		complaint *domain.Complaint
		update    *domain.ComplaintUpdate
	)
	err := r.withLocked(ctx, "append update", id, guard, func(tx pgx.Tx, current *domain.Complaint) error {
		if in.Status != nil && current.Status.Terminal() {
			return apperrors.ErrComplaintClosed
		}
		entry := &domain.ComplaintUpdate{
			ComplaintID: current.ID,
			ActorType:   in.ActorType,
			ActorID:     in.ActorID,
			Message:     in.Message,
			Status:      in.Status,
		}
		const insert = `
            INSERT INTO complaint_updates (complaint_id, actor_type, actor_id, message, status)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id, created_at`
		if err := tx.QueryRow(ctx, insert, entry.ComplaintID, entry.ActorType, entry.ActorID, entry.Message, entry.Status).
			Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return apperrors.StoreUnavailable("append update", err)
		}
		if in.Status != nil {
			current.Status = *in.Status
		}
		const touch = `UPDATE complaints SET status=$1, updated_at=$2 WHERE id=$3 RETURNING updated_at`
		if err := tx.QueryRow(ctx, touch, current.Status, entry.CreatedAt, current.ID).Scan(&current.UpdatedAt); err != nil {
			return apperrors.StoreUnavailable("append update", err)
		}
		complaint, update = current, entry
		return nil
	})
	return complaint, update, err
}

func (r *complaintRepository) ListUpdates(ctx context.Context, complaintID string) ([]domain.ComplaintUpdate, error) {
	if !domain.IsInternalID(complaintID) {
		return nil, apperrors.ErrNotFound
	}
	const query = `
        SELECT id, complaint_id, actor_type, actor_id, message, status, created_at
        FROM complaint_updates WHERE complaint_id=$1 ORDER BY created_at ASC, seq ASC`
	rows, err := r.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, apperrors.StoreUnavailable("list updates", err)
	}
	defer rows.Close()

	var result []domain.ComplaintUpdate
	for rows.Next() {
		var u domain.ComplaintUpdate
		if err := rows.Scan(&u.ID, &u.ComplaintID, &u.ActorType, &u.ActorID, &u.Message, &u.Status, &u.CreatedAt); err != nil {
			return nil, apperrors.StoreUnavailable("list updates", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("list updates", err)
	}
	return result, nil
}

func (r *complaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	clauses := []string{"1=1"}
	args := []any{}

	in := func(column string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			args = append(args, v)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}
	in("status", stringsOf(filter.Statuses))
	in("category", stringsOf(filter.Categories))
	in("priority", stringsOf(filter.Priorities))

	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(location) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		complaintColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.StoreUnavailable("list complaints", err)
	}
	defer rows.Close()

	var result []domain.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, apperrors.StoreUnavailable("list complaints", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("list complaints", err)
	}
	return result, nil
}

// withLocked loads the complaint row under FOR UPDATE, runs guard and then fn
// in the same transaction, committing only when both succeed.
func (r *complaintRepository) withLocked(ctx context.Context, op, id string, guard Guard, fn func(pgx.Tx, *domain.Complaint) error) error {
	if !domain.IsInternalID(id) {
		return apperrors.ErrNotFound
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperrors.StoreUnavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1 FOR UPDATE`
	current, err := r.fetchSingle(ctx, tx, query, id)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return err
		}
	}
	if err := fn(tx, current); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.StoreUnavailable(op, err)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *complaintRepository) fetchSingle(ctx context.Context, q queryRower, query string, arg any) (*domain.Complaint, error) {
	c, err := scanComplaint(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.StoreUnavailable("get complaint", err)
	}
	return c, nil
}

func scanComplaint(row pgx.Row) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := row.Scan(
		&c.ID,
		&c.PublicID,
		&c.SubmitterName,
		&c.SubmitterContact,
		&c.Title,
		&c.Description,
		&c.Category,
		&c.Priority,
		&c.Status,
		&c.Location,
		&c.Channel,
		&c.Classification,
		&c.SecretHash,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// prepareCreate validates a new complaint and fills store-independent defaults.
func prepareCreate(c *domain.Complaint) error {
	if c.SecretHash == "" {
		return apperrors.NewValidationError("secret hash is required", nil)
	}
	c.Category = domain.NormalizeCategory(string(c.Category))
	if !c.Priority.Valid() {
		c.Priority = domain.PriorityMedium
	}
	if c.Status == "" {
		c.Status = domain.StatusSubmitted
	}
	if !c.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": c.Status})
	}
	if c.Channel == "" {
		c.Channel = domain.ChannelWeb
	}
	return nil
}

func validateUpdate(in UpdateInput) error {
	if in.Status != nil && !in.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": *in.Status})
	}
	if in.Status == nil && strings.TrimSpace(in.Message) == "" {
		return apperrors.NewValidationError("update needs a message or a status", nil)
	}
	switch in.ActorType {
	case domain.ActorCitizen, domain.ActorOfficial, domain.ActorSystem:
	default:
		return apperrors.NewValidationError("invalid actor type", map[string]any{"actor_type": in.ActorType})
	}
	return nil
}

func applyMutation(c *domain.Complaint, m Mutation) {
	if m.Title != nil {
		c.Title = *m.Title
	}
	if m.Description != nil {
		c.Description = *m.Description
	}
	if m.Location != nil {
		c.Location = *m.Location
	}
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func newUpdateID() string { return uuid.NewString() }

func now() time.Time { return time.Now().UTC() }
