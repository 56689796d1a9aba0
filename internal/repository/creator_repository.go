// internal/repository/creator_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/luizvincenzi/criadores-slots/internal/model"
)

// CreatorRepositoryInterface reads the externally owned roster. A
// creator vanishing from the roster is a valid state: callers must
// fall back to the name snapshot on the slot row.
type CreatorRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Creator, error)
	ListAvailable(ctx context.Context, campaignID int) ([]model.Creator, error)
}

type CreatorRepository struct{}

func NewCreatorRepository() *CreatorRepository {
	return &CreatorRepository{}
}

const creatorColumns = `id, name, instagram_handle, city, status`

// GetByID returns nil, nil when the creator does not exist.
func (r *CreatorRepository) GetByID(ctx context.Context, id string) (*model.Creator, error) {
	query := `SELECT ` + creatorColumns + ` FROM creators WHERE id = $1`
	var c model.Creator
	err := getQueryer(ctx).GetContext(ctx, &c, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListAvailable returns active roster members not currently occupying
// a slot in the campaign, ordered by name.
func (r *CreatorRepository) ListAvailable(ctx context.Context, campaignID int) ([]model.Creator, error) {
	query := `
		SELECT ` + creatorColumns + `
		FROM creators
		WHERE status = 'active'
		  AND id NOT IN (
			SELECT creator_id FROM campaign_slots
			WHERE campaign_id = $1 AND creator_id IS NOT NULL
		  )
		ORDER BY name ASC
	`
	creators := []model.Creator{}
	err := getQueryer(ctx).SelectContext(ctx, &creators, query, campaignID)
	return creators, err
}

var _ CreatorRepositoryInterface = (*CreatorRepository)(nil)
