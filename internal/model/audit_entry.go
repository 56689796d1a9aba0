// internal/model/audit_entry.go
package model

import "time"

// Audit actions.
const (
	AuditActionAdd    = "add"
	AuditActionRemove = "remove"
	AuditActionSwap   = "swap"
)

// AuditEntry is an immutable record of one slot mutation. Rows are
// written exactly once, inside the same transaction as the slot write,
// and never updated or deleted. CreatedAt is assigned by the database
// at insert so audit order matches commit order per campaign.
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Action     string    `db:"action" json:"action"`
	ActorEmail string    `db:"actor_email" json:"actor_email"`
	OldValue   string    `db:"old_value" json:"old_value"`
	NewValue   string    `db:"new_value" json:"new_value"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows an audit query. Zero-value fields are ignored.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Action     string
	Limit      int
	Offset     int
}
