// internal/service/allocation_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/cache"
	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/lock"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/queue"
	"github.com/luizvincenzi/criadores-slots/internal/repository"
)

const auditEntityType = "campaign_slot"

// SlotEventsTopic is where committed slot mutations are published.
const SlotEventsTopic = "slot_events"

// AllocationService is the sole mutator of slot occupancy. Each
// operation takes the per-campaign lock, then runs
// validate-read-write-audit inside one database transaction: the
// audit entry exists if and only if the slot write committed.
type AllocationService struct {
	Provider  repository.Provider
	Campaigns repository.CampaignRepositoryInterface
	Slots     repository.SlotRepositoryInterface
	Audit     repository.AuditRepositoryInterface
	Creators  repository.CreatorRepositoryInterface
	Locks     *lock.KeyLock
	Queue     queue.Queue
	Cache     *cache.Cache
	Logger    *zap.Logger
}

// AddResult is returned by a successful AddCreator.
type AddResult struct {
	Slots               []model.SlotView `json:"slots"`
	SlotIndex           int              `json:"slotIndex"`
	SlotIncreased       bool             `json:"slotIncreased"`
	ContractedSlotCount int              `json:"contractedSlotCount"`
}

// RemoveResult is returned by a successful RemoveCreator.
type RemoveResult struct {
	Slots     []model.SlotView `json:"slots"`
	SlotIndex int              `json:"slotIndex"`
}

// SwapResult is returned by a successful SwapCreator.
type SwapResult struct {
	Slots     []model.SlotView `json:"slots"`
	SlotIndex int              `json:"slotIndex"`
}

func validateKey(key model.CampaignKey) error {
	if strings.TrimSpace(key.BusinessName) == "" {
		return appErrors.NewValidation("businessName", "must not be empty")
	}
	if strings.TrimSpace(key.Month) == "" {
		return appErrors.NewValidation("month", "must not be empty")
	}
	return nil
}

// classify passes typed errors through and wraps everything else as a
// transient store failure. An audit append failure lands here too: the
// transaction already rolled back, so the net effect is "nothing
// happened" and a retry is safe.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var validation *appErrors.ErrValidation
	if appErrors.IsPrecondition(err) || appErrors.IsTransient(err) || errors.As(err, &validation) {
		return err
	}
	return appErrors.NewTransientStore(op, err)
}

// AddCreator assigns the creator to the lowest-indexed empty slot.
// When every slot is occupied and allowSlotIncrease is true, the
// contracted count grows by one and a new slot (index max+1) is
// created and filled in the same transaction.
func (s *AllocationService) AddCreator(
	ctx context.Context, key model.CampaignKey, creatorID string, allowSlotIncrease bool, actor string,
) (*AddResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, appErrors.NewValidation("creatorId", "must not be empty")
	}

	unlock := s.Locks.Lock(key.String())
	defer unlock()

	var result *AddResult
	var campaignID int
	err := s.Provider.Transact(ctx, func(ctx context.Context) error {
		campaign, err := s.Campaigns.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		campaignID = campaign.ID

		slots, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		var target *model.Slot
		maxIndex := -1
		for i := range slots {
			slot := &slots[i]
			if slot.SlotIndex > maxIndex {
				maxIndex = slot.SlotIndex
			}
			if slot.Occupied() {
				if *slot.CreatorID == creatorID {
					return appErrors.NewAlreadyAssigned(creatorID)
				}
				continue
			}
			// lowest empty index wins; list is ordered ascending
			if target == nil {
				target = slot
			}
		}

		contracted := campaign.ContractedSlotCount
		increased := false
		if target == nil {
			if !allowSlotIncrease {
				return appErrors.NewSlotsFull(contracted)
			}
			contracted++
			if err := s.Campaigns.SetContractedSlotCount(ctx, campaign.ID, contracted); err != nil {
				return err
			}
			created, err := s.Slots.Create(ctx, campaign.ID, maxIndex+1)
			if err != nil {
				return err
			}
			target = created
			increased = true
		}

		creator, err := s.Creators.GetByID(ctx, creatorID)
		if err != nil {
			return err
		}
		if creator == nil {
			return appErrors.NewValidation("creatorId", "creator not found in roster")
		}

		if err := s.Slots.Assign(ctx, target.ID, creatorID, creator.Name); err != nil {
			return err
		}

		entry := &model.AuditEntry{
			EntityType: auditEntityType,
			EntityID:   slotEntityID(campaign.ID, target.SlotIndex),
			Action:     model.AuditActionAdd,
			ActorEmail: actor,
			OldValue:   "",
			NewValue:   creator.Name,
			Detail:     fmt.Sprintf("added %s to %s / %s", creator.Name, key.BusinessName, key.Month),
		}
		if err := s.Audit.Append(ctx, entry); err != nil {
			return err
		}

		updated, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		result = &AddResult{
			Slots:               viewsFromSlots(updated),
			SlotIndex:           target.SlotIndex,
			SlotIncreased:       increased,
			ContractedSlotCount: contracted,
		}
		return nil
	})
	if err != nil {
		return nil, classify("add creator", err)
	}

	s.afterCommit(key, model.SlotEvent{
		CampaignID:   campaignID,
		Action:       model.AuditActionAdd,
		BusinessName: key.BusinessName,
		Month:        key.Month,
		SlotIndex:    result.SlotIndex,
		CreatorID:    creatorID,
		ActorEmail:   actor,
	}, result.Slots)
	return result, nil
}

// RemoveCreator empties the creator's slot. Soft removal: the slot row
// keeps its identity and any deliverable links already recorded stay
// in place for history.
func (s *AllocationService) RemoveCreator(
	ctx context.Context, key model.CampaignKey, creatorID string, actor string,
) (*RemoveResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(creatorID) == "" {
		return nil, appErrors.NewValidation("creatorId", "must not be empty")
	}

	unlock := s.Locks.Lock(key.String())
	defer unlock()

	var result *RemoveResult
	var campaignID int
	err := s.Provider.Transact(ctx, func(ctx context.Context) error {
		campaign, err := s.Campaigns.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		campaignID = campaign.ID

		slots, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		target := findOccupant(slots, creatorID)
		if target == nil {
			return appErrors.NewNotAssigned(creatorID)
		}

		if err := s.Slots.Clear(ctx, target.ID); err != nil {
			return err
		}

		entry := &model.AuditEntry{
			EntityType: auditEntityType,
			EntityID:   slotEntityID(campaign.ID, target.SlotIndex),
			Action:     model.AuditActionRemove,
			ActorEmail: actor,
			OldValue:   target.CreatorName,
			NewValue:   "",
			Detail:     fmt.Sprintf("removed %s from %s / %s", target.CreatorName, key.BusinessName, key.Month),
		}
		if err := s.Audit.Append(ctx, entry); err != nil {
			return err
		}

		updated, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		result = &RemoveResult{
			Slots:     viewsFromSlots(updated),
			SlotIndex: target.SlotIndex,
		}
		return nil
	})
	if err != nil {
		return nil, classify("remove creator", err)
	}

	s.afterCommit(key, model.SlotEvent{
		CampaignID:   campaignID,
		Action:       model.AuditActionRemove,
		BusinessName: key.BusinessName,
		Month:        key.Month,
		SlotIndex:    result.SlotIndex,
		OldCreatorID: creatorID,
		ActorEmail:   actor,
	}, result.Slots)
	return result, nil
}

// SwapCreator replaces the slot's occupant in a single transaction.
// The slot is never observable as empty mid-swap, so a concurrent add
// cannot claim it.
func (s *AllocationService) SwapCreator(
	ctx context.Context, key model.CampaignKey, oldCreatorID, newCreatorID string, actor string,
) (*SwapResult, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if strings.TrimSpace(oldCreatorID) == "" {
		return nil, appErrors.NewValidation("oldCreatorId", "must not be empty")
	}
	if strings.TrimSpace(newCreatorID) == "" {
		return nil, appErrors.NewValidation("newCreatorId", "must not be empty")
	}
	if oldCreatorID == newCreatorID {
		return nil, appErrors.NewValidation("newCreatorId", "must differ from oldCreatorId")
	}

	unlock := s.Locks.Lock(key.String())
	defer unlock()

	var result *SwapResult
	var campaignID int
	err := s.Provider.Transact(ctx, func(ctx context.Context) error {
		campaign, err := s.Campaigns.LockByKey(ctx, key)
		if err != nil {
			return err
		}
		campaignID = campaign.ID

		slots, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		target := findOccupant(slots, oldCreatorID)
		if target == nil {
			return appErrors.NewNotAssigned(oldCreatorID)
		}
		if findOccupant(slots, newCreatorID) != nil {
			return appErrors.NewAlreadyAssigned(newCreatorID)
		}

		creator, err := s.Creators.GetByID(ctx, newCreatorID)
		if err != nil {
			return err
		}
		if creator == nil {
			return appErrors.NewValidation("newCreatorId", "creator not found in roster")
		}

		oldName := target.CreatorName
		if err := s.Slots.Assign(ctx, target.ID, newCreatorID, creator.Name); err != nil {
			return err
		}

		entry := &model.AuditEntry{
			EntityType: auditEntityType,
			EntityID:   slotEntityID(campaign.ID, target.SlotIndex),
			Action:     model.AuditActionSwap,
			ActorEmail: actor,
			OldValue:   oldName,
			NewValue:   creator.Name,
			Detail: fmt.Sprintf("swapped %s for %s in %s / %s",
				oldName, creator.Name, key.BusinessName, key.Month),
		}
		if err := s.Audit.Append(ctx, entry); err != nil {
			return err
		}

		updated, err := s.Slots.ListByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}

		result = &SwapResult{
			Slots:     viewsFromSlots(updated),
			SlotIndex: target.SlotIndex,
		}
		return nil
	})
	if err != nil {
		return nil, classify("swap creator", err)
	}

	s.afterCommit(key, model.SlotEvent{
		CampaignID:   campaignID,
		Action:       model.AuditActionSwap,
		BusinessName: key.BusinessName,
		Month:        key.Month,
		SlotIndex:    result.SlotIndex,
		CreatorID:    newCreatorID,
		OldCreatorID: oldCreatorID,
		ActorEmail:   actor,
	}, result.Slots)
	return result, nil
}

func findOccupant(slots []model.Slot, creatorID string) *model.Slot {
	for i := range slots {
		if slots[i].Occupied() && *slots[i].CreatorID == creatorID {
			return &slots[i]
		}
	}
	return nil
}

func slotEntityID(campaignID, slotIndex int) string {
	return fmt.Sprintf("%d/%d", campaignID, slotIndex)
}

// afterCommit invalidates the cached projections and publishes the
// slot event. Both are best effort: the mutation is already durable.
func (s *AllocationService) afterCommit(key model.CampaignKey, event model.SlotEvent, slots []model.SlotView) {
	if s.Cache != nil {
		s.Cache.Invalidate(cache.EntitySlotView, key.String())
		s.Cache.Invalidate(cache.EntityRoster, key.String())
	}

	if s.Queue == nil {
		return
	}
	event.OccurredAt = time.Now()
	for _, v := range slots {
		if v.Occupied {
			event.OccupiedCount++
		}
	}
	if err := s.Queue.Publish(SlotEventsTopic, event); err != nil {
		s.Logger.Warn("publish slot event",
			zap.String("campaign", key.String()),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}
