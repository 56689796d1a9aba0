// internal/controller/slots_controller.go
package controller

import (
	"context"
	"sync"

	"go.uber.org/zap"

	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

// Allocator is the mutation surface the controller drives.
type Allocator interface {
	AddCreator(ctx context.Context, key model.CampaignKey, creatorID string, allowSlotIncrease bool, actor string) (*service.AddResult, error)
	RemoveCreator(ctx context.Context, key model.CampaignKey, creatorID string, actor string) (*service.RemoveResult, error)
	SwapCreator(ctx context.Context, key model.CampaignKey, oldCreatorID, newCreatorID string, actor string) (*service.SwapResult, error)
}

// ViewBuilder is the read surface the controller refreshes from.
type ViewBuilder interface {
	BuildSlotView(ctx context.Context, key model.CampaignKey) (*model.SlotViewResult, error)
}

// State is a point-in-time snapshot of the controller for rendering.
// Slots always reflect the last committed read-back, never an
// optimistic guess.
type State struct {
	Slots      []model.SlotView
	Validation model.ValidationSummary
	IsAdding   bool
	IsRemoving bool
	Loading    bool
	Err        error
	// Retryable is set when Err is a transient store failure; the UI
	// shows a retry affordance instead of an error explanation.
	Retryable bool
}

// SlotsController orchestrates allocation calls for one UI consumer
// bound to a single (business, month) key. After a successful
// mutation it performs a silent refresh: re-fetching without toggling
// the loading flag, so the list does not flicker. A new fetch cancels
// the in-flight one (last-request-wins via context cancellation).
type SlotsController struct {
	allocator Allocator
	views     ViewBuilder
	key       model.CampaignKey
	actor     string
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	fetchCancel context.CancelFunc
}

// NewSlotsController creates a controller for the given campaign key.
func NewSlotsController(
	allocator Allocator, views ViewBuilder, key model.CampaignKey, actor string, logger *zap.Logger,
) *SlotsController {
	return &SlotsController{
		allocator: allocator,
		views:     views,
		key:       key,
		actor:     actor,
		logger:    logger,
	}
}

// State returns a copy of the current controller state.
func (c *SlotsController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.state
	snapshot.Slots = append([]model.SlotView(nil), c.state.Slots...)
	return snapshot
}

// Load fetches the slot list with the loading flag raised.
func (c *SlotsController) Load(ctx context.Context) {
	c.fetch(ctx, false)
}

// fetch runs one read. silent leaves the loading flag down. The
// previous in-flight fetch is cancelled; a fetch that discovers its
// own context cancelled discards its result instead of applying it.
func (c *SlotsController) fetch(ctx context.Context, silent bool) {
	c.mu.Lock()
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.fetchCancel = cancel
	if !silent {
		c.state.Loading = true
	}
	// a superseded fetch never touches the state again, so the newest
	// fetch takes over lowering the flag even when it is silent itself
	ownsLoading := c.state.Loading
	c.mu.Unlock()

	view, err := c.views.BuildSlotView(fetchCtx, c.key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if fetchCtx.Err() != nil {
		// superseded by a newer fetch; its result owns the state now
		return
	}
	cancel()
	if c.fetchCancel != nil {
		c.fetchCancel = nil
	}

	if ownsLoading {
		c.state.Loading = false
	}
	if err != nil {
		c.setErrLocked(err)
		return
	}
	c.state.Slots = view.Slots
	c.state.Validation = view.Validation
	c.state.Err = nil
	c.state.Retryable = false
}

// Add assigns a creator and silently refreshes on success.
func (c *SlotsController) Add(ctx context.Context, creatorID string, allowSlotIncrease bool) error {
	c.mu.Lock()
	c.state.IsAdding = true
	c.mu.Unlock()

	_, err := c.allocator.AddCreator(ctx, c.key, creatorID, allowSlotIncrease, c.actor)

	c.mu.Lock()
	c.state.IsAdding = false
	if err != nil {
		c.setErrLocked(err)
		c.mu.Unlock()
		return err
	}
	c.state.Err = nil
	c.state.Retryable = false
	c.mu.Unlock()

	c.fetch(ctx, true)
	return nil
}

// Remove clears a creator's slot and silently refreshes on success.
func (c *SlotsController) Remove(ctx context.Context, creatorID string) error {
	c.mu.Lock()
	c.state.IsRemoving = true
	c.mu.Unlock()

	_, err := c.allocator.RemoveCreator(ctx, c.key, creatorID, c.actor)

	c.mu.Lock()
	c.state.IsRemoving = false
	if err != nil {
		c.setErrLocked(err)
		c.mu.Unlock()
		return err
	}
	c.state.Err = nil
	c.state.Retryable = false
	c.mu.Unlock()

	c.fetch(ctx, true)
	return nil
}

// Swap replaces a creator and silently refreshes on success. Both
// busy flags go up: a swap is a remove and an add in one unit.
func (c *SlotsController) Swap(ctx context.Context, oldCreatorID, newCreatorID string) error {
	c.mu.Lock()
	c.state.IsAdding = true
	c.state.IsRemoving = true
	c.mu.Unlock()

	_, err := c.allocator.SwapCreator(ctx, c.key, oldCreatorID, newCreatorID, c.actor)

	c.mu.Lock()
	c.state.IsAdding = false
	c.state.IsRemoving = false
	if err != nil {
		c.setErrLocked(err)
		c.mu.Unlock()
		return err
	}
	c.state.Err = nil
	c.state.Retryable = false
	c.mu.Unlock()

	c.fetch(ctx, true)
	return nil
}

// setErrLocked records the failure. Transient errors are marked
// retryable but never retried automatically, to avoid duplicating the
// operator's intent. Callers must hold c.mu.
func (c *SlotsController) setErrLocked(err error) {
	c.state.Err = err
	c.state.Retryable = appErrors.IsTransient(err)
	if !appErrors.IsPrecondition(err) && !c.state.Retryable {
		c.logger.Error("slot operation failed",
			zap.String("campaign", c.key.String()),
			zap.Error(err))
	}
}
