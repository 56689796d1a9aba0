// internal/model/slot_view.go
package model

// SlotView is the read-side projection of a single slot.
type SlotView struct {
	Index           int    `json:"index"`
	Occupied        bool   `json:"occupied"`
	CreatorID       string `json:"creatorId,omitempty"`
	CreatorName     string `json:"creatorName,omitempty"`
	InstagramHandle string `json:"instagramHandle,omitempty"`
}

// ValidationSummary reports inconsistencies found while building a
// slot view. Diagnostic only: nothing here triggers a repair.
type ValidationSummary struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// SlotViewResult is the full projection for a (business, month) pair.
type SlotViewResult struct {
	CampaignID          int               `json:"campaignId"`
	ContractedSlotCount int               `json:"contractedSlotCount"`
	Slots               []SlotView        `json:"slots"`
	Validation          ValidationSummary `json:"validation"`
}

// OccupiedCount returns the number of filled slots in the view.
func (r *SlotViewResult) OccupiedCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.Occupied {
			n++
		}
	}
	return n
}
