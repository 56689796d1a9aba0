// internal/model/slot.go
package model

import "time"

// Slot is a numbered position within a campaign's creator roster.
// CreatorID is nil while the slot is empty. CreatorName is a
// denormalized snapshot taken at assignment time so the slot stays
// displayable even if the roster row disappears later.
type Slot struct {
	ID          int        `db:"id" json:"id"`
	CampaignID  int        `db:"campaign_id" json:"campaign_id"`
	SlotIndex   int        `db:"slot_index" json:"slot_index"`
	CreatorID   *string    `db:"creator_id" json:"creator_id,omitempty"`
	CreatorName string     `db:"creator_name" json:"creator_name"`
	AssignedAt  *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Occupied reports whether the slot currently has a creator.
func (s *Slot) Occupied() bool {
	return s.CreatorID != nil && *s.CreatorID != ""
}
