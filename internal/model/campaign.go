// internal/model/campaign.go
package model

import "time"

// CampaignKey identifies a (business, month) contract and scopes
// locking and lookups. Month is an opaque label like "Julho 2025".
type CampaignKey struct {
	BusinessName string `json:"businessName"`
	Month        string `json:"month"`
}

// String returns the lock/cache key for this campaign.
func (k CampaignKey) String() string {
	return k.BusinessName + "|" + k.Month
}

type Campaign struct {
	ID                  int        `db:"id" json:"id"`
	BusinessName        string     `db:"business_name" json:"business_name"`
	Month               string     `db:"month" json:"month"`
	ContractedSlotCount int        `db:"contracted_slot_count" json:"contracted_slot_count"`
	Status              string     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// Key returns the campaign's (business, month) key.
func (c *Campaign) Key() CampaignKey {
	return CampaignKey{BusinessName: c.BusinessName, Month: c.Month}
}
