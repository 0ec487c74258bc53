package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/keylock"
	apperrors "github.com/civicdesk/grievance-service/pkg/util/errorutil"
)

// MemoryComplaintRepository keeps complaints in process memory. Guarded
// writes to one complaint are serialized by a per-id lock; the map lock is
// never held while a guard runs.
type MemoryComplaintRepository struct {
	mu         sync.RWMutex
	complaints map[string]*domain.Complaint
	byPublicID map[string]string
	byIntake   map[string]string
	updates    map[string][]domain.ComplaintUpdate
	locks      *keylock.Map
}

// NewMemoryComplaintRepository builds an empty in-memory store.
func NewMemoryComplaintRepository() *MemoryComplaintRepository {
	return &MemoryComplaintRepository{
		complaints: make(map[string]*domain.Complaint),
		byPublicID: make(map[string]string),
		byIntake:   make(map[string]string),
		updates:    make(map[string][]domain.ComplaintUpdate),
		locks:      keylock.New(),
	}
}

var _ ComplaintRepository = (*MemoryComplaintRepository)(nil)

func (r *MemoryComplaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable("create complaint", err)
	}
	if err := prepareCreate(complaint); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byIntake[complaint.IntakeKey]; ok && complaint.IntakeKey != "" {
		*complaint = *r.complaints[id].Clone()
		return ErrAlreadyFiled
	}
	publicID := domain.NewPublicID()
	for _, taken := r.byPublicID[publicID]; taken; _, taken = r.byPublicID[publicID] {
		publicID = domain.NewPublicID()
	}
	ts := now()
	complaint.ID = uuid.NewString()
	complaint.PublicID = publicID
	complaint.CreatedAt = ts
	complaint.UpdatedAt = ts

	r.complaints[complaint.ID] = complaint.Clone()
	r.byPublicID[publicID] = complaint.ID
	if complaint.IntakeKey != "" {
		r.byIntake[complaint.IntakeKey] = complaint.ID
	}
	return nil
}

func (r *MemoryComplaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("get complaint", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.complaints[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryComplaintRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Complaint, error) {
	canonical, ok := domain.CanonicalPublicID(publicID)
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	r.mu.RLock()
	id, ok := r.byPublicID[canonical]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryComplaintRepository) ApplyMutation(ctx context.Context, id string, guard Guard, m Mutation) (*domain.Complaint, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(current.Clone()); err != nil {
			return nil, err
		}
	}
	if current.Status.Terminal() {
		return nil, apperrors.ErrComplaintClosed
	}
	applyMutation(current, m)
	current.UpdatedAt = now()

	r.mu.Lock()
	r.complaints[id] = current.Clone()
	r.mu.Unlock()
	return current, nil
}

func (r *MemoryComplaintRepository) AppendUpdate(ctx context.Context, id string, guard Guard, in UpdateInput) (*domain.Complaint, *domain.ComplaintUpdate, error) {
	if err := validateUpdate(in); err != nil {
		return nil, nil, err
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if guard != nil {
		if err := guard(current.Clone()); err != nil {
			return nil, nil, err
		}
	}
	if in.Status != nil && current.Status.Terminal() {
		return nil, nil, apperrors.ErrComplaintClosed
	}

	entry := domain.ComplaintUpdate{
		ID:          newUpdateID(),
		ComplaintID: id,
		ActorType:   in.ActorType,
		ActorID:     in.ActorID,
		Message:     in.Message,
		CreatedAt:   now(),
	}
	if in.Status != nil {
		status := *in.Status
		entry.Status = &status
		current.Status = status
	}
	current.UpdatedAt = entry.CreatedAt

	r.mu.Lock()
	r.updates[id] = append(r.updates[id], entry)
	r.complaints[id] = current.Clone()
	r.mu.Unlock()
	return current, &entry, nil
}

func (r *MemoryComplaintRepository) ListUpdates(ctx context.Context, complaintID string) ([]domain.ComplaintUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("list updates", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.complaints[complaintID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	return append([]domain.ComplaintUpdate(nil), r.updates[complaintID]...), nil
}

func (r *MemoryComplaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("list complaints", err)
	}
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}

	r.mu.RLock()
	matched := make([]domain.Complaint, 0, len(r.complaints))
	for _, c := range r.complaints {
		if !contains(filter.Statuses, c.Status) || !contains(filter.Categories, c.Category) || !contains(filter.Priorities, c.Priority) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) &&
			!strings.Contains(strings.ToLower(c.Location), search) {
			continue
		}
		matched = append(matched, *c.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Complaint{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// contains treats an empty filter as matching everything.
func contains[T comparable](values []T, v T) bool {
	if len(values) == 0 {
		return true
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
