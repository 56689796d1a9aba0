// internal/repository/audit_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/luizvincenzi/criadores-slots/internal/model"
)

// AuditRepositoryInterface is the append-only audit trail. Append runs
// inside the caller's transaction: if it fails, the enclosing slot
// mutation rolls back too.
type AuditRepositoryInterface interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
	Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error)
}

type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append inserts the entry. created_at comes from the database clock
// at insert, so entries order by commit, not by call entry.
func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	query := `
		INSERT INTO audit_log (entity_type, entity_id, action, actor_email, old_value, new_value, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return GetTx(ctx).QueryRowxContext(ctx, query,
		entry.EntityType, entry.EntityID, entry.Action,
		entry.ActorEmail, entry.OldValue, entry.NewValue, entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// Query returns entries newest first. Restartable pagination via
// offset/limit; id breaks ties between entries committed in the same
// clock tick.
func (r *AuditRepository) Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_email, old_value, new_value, detail, created_at
		FROM audit_log WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type=$%d", argPos)
		args = append(args, filter.EntityType)
		argPos++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id=$%d", argPos)
		args = append(args, filter.EntityID)
		argPos++
	}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action=$%d", argPos)
		args = append(args, filter.Action)
		argPos++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	entries := []model.AuditEntry{}
	err := getQueryer(ctx).SelectContext(ctx, &entries, query, args...)
	return entries, err
}

var _ AuditRepositoryInterface = (*AuditRepository)(nil)
