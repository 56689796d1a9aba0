// internal/repository/slot_repository.go
package repository

import (
	"context"

	"github.com/luizvincenzi/criadores-slots/internal/model"
)

// SlotRepositoryInterface is the slot store: the single source of
// truth for occupancy. All writes must run inside a Provider.Transact
// scope; partial writes are never visible outside it.
type SlotRepositoryInterface interface {
	ListByCampaign(ctx context.Context, campaignID int) ([]model.Slot, error)
	Create(ctx context.Context, campaignID, slotIndex int) (*model.Slot, error)
	Assign(ctx context.Context, slotID int, creatorID, creatorName string) error
	Clear(ctx context.Context, slotID int) error
}

type SlotRepository struct{}

func NewSlotRepository() *SlotRepository {
	return &SlotRepository{}
}

const slotColumns = `id, campaign_id, slot_index, creator_id, creator_name, assigned_at, updated_at`

// ListByCampaign returns all slots ordered by index, lowest first.
// Works both inside a mutation transaction and in a readonly scope.
func (r *SlotRepository) ListByCampaign(ctx context.Context, campaignID int) ([]model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM campaign_slots
		WHERE campaign_id = $1
		ORDER BY slot_index ASC
	`
	slots := []model.Slot{}
	err := getQueryer(ctx).SelectContext(ctx, &slots, query, campaignID)
	return slots, err
}

// Create inserts a new empty slot at the given index.
func (r *SlotRepository) Create(ctx context.Context, campaignID, slotIndex int) (*model.Slot, error) {
	query := `
		INSERT INTO campaign_slots (campaign_id, slot_index)
		VALUES ($1, $2)
		RETURNING ` + slotColumns + `
	`
	var s model.Slot
	err := GetTx(ctx).QueryRowxContext(ctx, query, campaignID, slotIndex).StructScan(&s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Assign sets the slot occupant and the denormalized name snapshot.
// Also used by swap: the occupant is replaced in a single UPDATE, so
// the slot is never observable as empty in between.
func (r *SlotRepository) Assign(ctx context.Context, slotID int, creatorID, creatorName string) error {
	query := `
		UPDATE campaign_slots
		SET creator_id = $1, creator_name = $2, assigned_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`
	_, err := GetTx(ctx).ExecContext(ctx, query, creatorID, creatorName, slotID)
	return err
}

// Clear empties the slot. Soft removal: the row keeps its identity and
// index, and side data recorded against the pairing (deliverable
// links) is untouched.
func (r *SlotRepository) Clear(ctx context.Context, slotID int) error {
	query := `
		UPDATE campaign_slots
		SET creator_id = NULL, creator_name = '', assigned_at = NULL, updated_at = NOW()
		WHERE id = $1
	`
	_, err := GetTx(ctx).ExecContext(ctx, query, slotID)
	return err
}

var _ SlotRepositoryInterface = (*SlotRepository)(nil)
