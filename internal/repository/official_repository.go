package repository

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// OfficialRepository handles persistence for municipal officials.
type OfficialRepository interface {
	Create(ctx context.Context, official *domain.Official) error
	GetByID(ctx context.Context, id string) (*domain.Official, error)
	GetByEmail(ctx context.Context, email string) (*domain.Official, error)
}

type officialRepository struct {
	pool *pgxpool.Pool
}

// NewOfficialRepository instantiates the repository.
func NewOfficialRepository(pool *pgxpool.Pool) OfficialRepository {
	return &officialRepository{pool: pool}
}

func (r *officialRepository) Create(ctx context.Context, official *domain.Official) error {
	const query = `
        INSERT INTO officials (name, email, password_hash, role, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		official.Name,
		strings.ToLower(official.Email),
		official.PasswordHash,
		official.Role,
		official.Active,
	).Scan(&official.ID, &official.CreatedAt, &official.UpdatedAt)
	if isUniqueViolation(err, "officials_email_key") {
		return apperrors.NewConflict("official already exists", map[string]any{"email": official.Email})
	}
	if err != nil {
		return apperrors.StoreUnavailable("create official", err)
	}
	return nil
}

func (r *officialRepository) GetByID(ctx context.Context, id string) (*domain.Official, error) {
	if !domain.IsInternalID(id) {
		return nil, apperrors.ErrNotFound
	}
	const query = `
        SELECT id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM officials WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *officialRepository) GetByEmail(ctx context.Context, email string) (*domain.Official, error) {
	const query = `
        SELECT id, name, email, password_hash, role, active_flag, created_at, updated_at
        FROM officials WHERE email=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *officialRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Official, error) {
	var official domain.Official
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&official.ID,
		&official.Name,
		&official.Email,
		&official.PasswordHash,
		&official.Role,
		&official.Active,
		&official.CreatedAt,
		&official.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.StoreUnavailable("get official", err)
	}
	return &official, nil
}

// MemoryOfficialRepository keeps officials in process memory.
type MemoryOfficialRepository struct {
	mu        sync.RWMutex
	officials map[string]domain.Official
}

// NewMemoryOfficialRepository builds an empty in-memory store.
func NewMemoryOfficialRepository() *MemoryOfficialRepository {
	return &MemoryOfficialRepository{officials: make(map[string]domain.Official)}
}

func (r *MemoryOfficialRepository) Create(_ context.Context, official *domain.Official) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(official.Email))
	for _, existing := range r.officials {
		if existing.Email == email {
			return apperrors.NewConflict("official already exists", map[string]any{"email": official.Email})
		}
	}
	ts := now()
	official.ID = uuid.NewString()
	official.Email = email
	official.CreatedAt = ts
	official.UpdatedAt = ts
	r.officials[official.ID] = *official
	return nil
}

func (r *MemoryOfficialRepository) GetByID(_ context.Context, id string) (*domain.Official, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	official, ok := r.officials[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &official, nil
}

func (r *MemoryOfficialRepository) GetByEmail(_ context.Context, email string) (*domain.Official, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, official := range r.officials {
		if official.Email == email {
			o := official
			return &o, nil
		}
	}
	return nil, apperrors.ErrNotFound
}
