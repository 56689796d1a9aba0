// internal/service/slot_view.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/cache"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/repository"
)

// SlotViewBuilder is the read-side projection over the slot store.
// It never mutates: inconsistencies are reported in the validation
// summary, not repaired.
type SlotViewBuilder struct {
	Provider  repository.Provider
	Campaigns repository.CampaignRepositoryInterface
	Slots     repository.SlotRepositoryInterface
	Creators  repository.CreatorRepositoryInterface
	Cache     *cache.Cache
	Logger    *zap.Logger
}

// BuildSlotView returns the ordered slot list plus validation summary
// for a (business, month) pair. Reads run in a single readonly scope.
// Results are cached per campaign key and invalidated on mutation.
func (b *SlotViewBuilder) BuildSlotView(ctx context.Context, key model.CampaignKey) (*model.SlotViewResult, error) {
	if b.Cache != nil {
		var cached model.SlotViewResult
		if b.Cache.Get(cache.EntitySlotView, key.String(), &cached) {
			return &cached, nil
		}
	}

	ctx = b.Provider.Readonly(ctx)

	campaign, err := b.Campaigns.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	slots, err := b.Slots.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	views := make([]model.SlotView, 0, len(slots))
	seen := make(map[string]int)
	occupied := 0
	var validationErrors []string

	for _, slot := range slots {
		view := slotToView(&slot)
		if slot.Occupied() {
			occupied++
			creatorID := *slot.CreatorID
			if prev, dup := seen[creatorID]; dup {
				validationErrors = append(validationErrors, fmt.Sprintf(
					"creator %s occupies slots %d and %d", creatorID, prev, slot.SlotIndex))
			} else {
				seen[creatorID] = slot.SlotIndex
			}

			// refresh display fields from the roster; a vanished
			// creator degrades to the cached snapshot on the slot
			creator, err := b.Creators.GetByID(ctx, creatorID)
			if err != nil {
				return nil, err
			}
			if creator != nil {
				view.CreatorName = creator.Name
				view.InstagramHandle = creator.InstagramHandle
			}
		}
		views = append(views, view)
	}

	if occupied > campaign.ContractedSlotCount {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"%d slots occupied but only %d contracted", occupied, campaign.ContractedSlotCount))
	}
	if len(slots) < campaign.ContractedSlotCount {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"%d slot rows exist but %d are contracted", len(slots), campaign.ContractedSlotCount))
	}

	result := &model.SlotViewResult{
		CampaignID:          campaign.ID,
		ContractedSlotCount: campaign.ContractedSlotCount,
		Slots:               views,
		Validation: model.ValidationSummary{
			IsValid: len(validationErrors) == 0,
			Errors:  validationErrors,
		},
	}

	if b.Cache != nil {
		if err := b.Cache.Set(cache.EntitySlotView, key.String(), result); err != nil {
			b.Logger.Warn("cache slot view", zap.String("campaign", key.String()), zap.Error(err))
		}
	}
	return result, nil
}

// AvailableCreators lists active roster members not occupying a slot
// in the campaign.
func (b *SlotViewBuilder) AvailableCreators(ctx context.Context, key model.CampaignKey) ([]model.Creator, error) {
	if b.Cache != nil {
		var cached []model.Creator
		if b.Cache.Get(cache.EntityRoster, key.String(), &cached) {
			return cached, nil
		}
	}

	ctx = b.Provider.Readonly(ctx)

	campaign, err := b.Campaigns.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	creators, err := b.Creators.ListAvailable(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	if b.Cache != nil {
		if err := b.Cache.Set(cache.EntityRoster, key.String(), creators); err != nil {
			b.Logger.Warn("cache roster", zap.String("campaign", key.String()), zap.Error(err))
		}
	}
	return creators, nil
}

func slotToView(slot *model.Slot) model.SlotView {
	view := model.SlotView{
		Index:    slot.SlotIndex,
		Occupied: slot.Occupied(),
	}
	if view.Occupied {
		view.CreatorID = *slot.CreatorID
		view.CreatorName = slot.CreatorName
	}
	return view
}

// viewsFromSlots projects slot rows straight to views, using only the
// denormalized snapshots. The mutation path uses this for its
// read-your-writes slot list.
func viewsFromSlots(slots []model.Slot) []model.SlotView {
	views := make([]model.SlotView, 0, len(slots))
	for i := range slots {
		views = append(views, slotToView(&slots[i]))
	}
	return views
}
