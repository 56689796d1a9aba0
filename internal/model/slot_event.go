// internal/model/slot_event.go
package model

import "time"

// SlotEvent is published after a slot mutation commits. Consumers
// (read-model projectors, dashboards) must treat it as eventually
// consistent; the slot table stays the source of truth.
type SlotEvent struct {
	CampaignID    int       `json:"campaign_id"`
	BusinessName  string    `json:"business_name"`
	Month         string    `json:"month"`
	Action        string    `json:"action"` // add, remove, swap
	SlotIndex     int       `json:"slot_index"`
	CreatorID     string    `json:"creator_id,omitempty"`
	OldCreatorID  string    `json:"old_creator_id,omitempty"`
	ActorEmail    string    `json:"actor_email,omitempty"`
	OccupiedCount int       `json:"occupied_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}
