// Package tenant wraps data access for organization-owned entities so every
// read and mutation is constrained to one organization.
//
// Creation is deliberately not wrapped: callers stamp organization_id in the
// creation payload themselves. The scope is a read/mutate safety net, not a
// full data-client replacement.
package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAccessDenied covers both "record does not exist" and "record belongs to
// another organization". The two cases are intentionally indistinguishable so
// callers cannot leak tenant existence.
var ErrAccessDenied = errors.New("record not found or access denied")

// Scope is a data-access façade pre-bound to one organization. All queries
// built through it carry the organization constraint; callers cannot widen it.
type Scope struct {
	db    *gorm.DB
	orgID uuid.UUID
}

// NewScope binds a scope to one organization id.
func NewScope(db *gorm.DB, orgID uuid.UUID) *Scope {
	return &Scope{db: db, orgID: orgID}
}

func (s *Scope) OrganizationID() uuid.UUID {
	return s.orgID
}

type condition struct {
	query string
	args  []any
}

// Query builds a scoped query over one entity type. The organization
// constraint is part of every statement it produces; caller conditions are
// AND-merged and can only narrow the result.
type Query[T any] struct {
	scope  *Scope
	conds  []condition
	order  string
	limit  int
	offset int
}

// Model starts a scoped query for entity type T.
func Model[T any](s *Scope) *Query[T] {
	return &Query[T]{scope: s, limit: -1, offset: -1}
}

func (q *Query[T]) Where(query string, args ...any) *Query[T] {
	q.conds = append(q.conds, condition{query: query, args: args})
	return q
}

func (q *Query[T]) Order(expr string) *Query[T] {
	q.order = expr
	return q
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q.limit = n
	return q
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q.offset = n
	return q
}

func (q *Query[T]) build(ctx context.Context) *gorm.DB {
	tx := q.scope.db.WithContext(ctx).
		Model(new(T)).
		Where("organization_id = ?", q.scope.orgID)
	for _, c := range q.conds {
		tx = tx.Where(c.query, c.args...)
	}
	if q.order != "" {
		tx = tx.Order(q.order)
	}
	if q.limit >= 0 {
		tx = tx.Limit(q.limit)
	}
	if q.offset >= 0 {
		tx = tx.Offset(q.offset)
	}
	return tx
}

// Find returns all matching records in the scope's organization.
func (q *Query[T]) Find(ctx context.Context) ([]T, error) {
	var out []T
	if err := q.build(ctx).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("scoped find: %w", err)
	}
	return out, nil
}

// First returns the first matching record, or gorm.ErrRecordNotFound.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	var out T
	if err := q.build(ctx).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// Count counts matching records in the scope's organization.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := q.build(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("scoped count: %w", err)
	}
	return n, nil
}

// UpdateAll applies updates to every matching record. The organization
// constraint in the filter bounds the blast radius; no per-record existence
// check is needed. Returns the number of rows updated.
func (q *Query[T]) UpdateAll(ctx context.Context, updates map[string]any) (int64, error) {
	res := q.build(ctx).Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("scoped update: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAll deletes every matching record. Returns the number of rows deleted.
func (q *Query[T]) DeleteAll(ctx context.Context) (int64, error) {
	res := q.build(ctx).Delete(new(T))
	if res.Error != nil {
		return 0, fmt.Errorf("scoped delete: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Get looks up one record by id within the scope's organization. A record in
// another organization is indistinguishable from a missing one.
func Get[T any](ctx context.Context, s *Scope, id uuid.UUID) (*T, error) {
	var out T
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, s.orgID).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("scoped get: %w", err)
	}
	return &out, nil
}

// Update mutates one record by id as a single conditional write
// (id + organization_id in the predicate), so a cross-tenant id can never
// reach the row. Zero affected rows yields ErrAccessDenied.
func Update[T any](ctx context.Context, s *Scope, id uuid.UUID, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ? AND organization_id = ?", id, s.orgID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("scoped update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccessDenied
	}
	return nil
}

// Delete removes one record by id under the same conditional-write guarantee
// as Update.
func Delete[T any](ctx context.Context, s *Scope, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, s.orgID).
		Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("scoped delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccessDenied
	}
	return nil
}

// Verify asserts that the record belongs to the scope's organization. The
// error names the entity type for callers that want an explicit assertion
// instead of a wrapped query.
func Verify[T any](ctx context.Context, s *Scope, id uuid.UUID) error {
	var n int64
	err := s.db.WithContext(ctx).
		Model(new(T)).
		Where("id = ? AND organization_id = ?", id, s.orgID).
		Count(&n).Error
	if err != nil {
		return fmt.Errorf("verifying %s access: %w", entityName[T](), err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entityName[T](), id, ErrAccessDenied)
	}
	return nil
}

func entityName[T any]() string {
	var t T
	if named, ok := any(&t).(interface{ TableName() string }); ok {
		return named.TableName()
	}
	return fmt.Sprintf("%T", t)
}
