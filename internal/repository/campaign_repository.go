// internal/repository/campaign_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"

	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
)

// CampaignRepositoryInterface resolves (business, month) pairs to
// campaign rows and owns the contracted slot count.
type CampaignRepositoryInterface interface {
	GetByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error)
	LockByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error)
	SetContractedSlotCount(ctx context.Context, campaignID, count int) error
}

type CampaignRepository struct{}

func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{}
}

const campaignColumns = `id, business_name, month, contracted_slot_count, status, created_at, updated_at`

// GetByKey fetches the campaign without locking it. Read-side only.
func (r *CampaignRepository) GetByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE business_name = $1 AND month = $2
	`
	var c model.Campaign
	err := getQueryer(ctx).GetContext(ctx, &c, query, key.BusinessName, key.Month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(key.BusinessName, key.Month)
		}
		return nil, err
	}
	return &c, nil
}

// LockByKey fetches the campaign with a FOR UPDATE row lock. This is
// the authoritative per-campaign serialization point: every mutation
// takes this lock first, so concurrent writers on the same campaign
// queue up at the database even across processes.
func (r *CampaignRepository) LockByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE business_name = $1 AND month = $2
		FOR UPDATE
	`
	var c model.Campaign
	err := GetTx(ctx).GetContext(ctx, &c, query, key.BusinessName, key.Month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(key.BusinessName, key.Month)
		}
		return nil, err
	}
	return &c, nil
}

// SetContractedSlotCount updates the contracted count. Caller must
// hold the campaign row lock.
func (r *CampaignRepository) SetContractedSlotCount(ctx context.Context, campaignID, count int) error {
	query := `UPDATE campaigns SET contracted_slot_count = $1, updated_at = NOW() WHERE id = $2`
	_, err := GetTx(ctx).ExecContext(ctx, query, count, campaignID)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
