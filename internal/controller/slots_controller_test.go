package controller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/controller"
	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

var testKey = model.CampaignKey{BusinessName: "Sonkey", Month: "Julho 2025"}

// fakeBackend implements both controller.Allocator and
// controller.ViewBuilder over a plain slot list.
type fakeBackend struct {
	mu    sync.Mutex
	slots []model.SlotView

	addErr    error
	removeErr error

	// when set, BuildSlotView blocks until the channel closes or the
	// context is cancelled
	blockFetch chan struct{}

	fetches int
}

func newFakeBackend(slots ...model.SlotView) *fakeBackend {
	return &fakeBackend{slots: slots}
}

func (f *fakeBackend) BuildSlotView(ctx context.Context, key model.CampaignKey) (*model.SlotViewResult, error) {
	f.mu.Lock()
	block := f.blockFetch
	f.fetches++
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.SlotViewResult{
		Slots:      append([]model.SlotView(nil), f.slots...),
		Validation: model.ValidationSummary{IsValid: true},
	}, nil
}

func (f *fakeBackend) AddCreator(ctx context.Context, key model.CampaignKey, creatorID string, allow bool, actor string) (*service.AddResult, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.mu.Lock()
	f.slots = append(f.slots, model.SlotView{Index: len(f.slots), Occupied: true, CreatorID: creatorID})
	slots := append([]model.SlotView(nil), f.slots...)
	f.mu.Unlock()
	return &service.AddResult{Slots: slots, SlotIndex: len(slots) - 1}, nil
}

func (f *fakeBackend) RemoveCreator(ctx context.Context, key model.CampaignKey, creatorID string, actor string) (*service.RemoveResult, error) {
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	f.mu.Lock()
	for i := range f.slots {
		if f.slots[i].CreatorID == creatorID {
			f.slots[i] = model.SlotView{Index: f.slots[i].Index}
		}
	}
	slots := append([]model.SlotView(nil), f.slots...)
	f.mu.Unlock()
	return &service.RemoveResult{Slots: slots}, nil
}

func (f *fakeBackend) SwapCreator(ctx context.Context, key model.CampaignKey, oldID, newID string, actor string) (*service.SwapResult, error) {
	f.mu.Lock()
	for i := range f.slots {
		if f.slots[i].CreatorID == oldID {
			f.slots[i].CreatorID = newID
		}
	}
	slots := append([]model.SlotView(nil), f.slots...)
	f.mu.Unlock()
	return &service.SwapResult{Slots: slots}, nil
}

func newController(backend *fakeBackend) *controller.SlotsController {
	return controller.NewSlotsController(backend, backend, testKey, "ops@criadores.app", zap.NewNop())
}

func TestLoadPopulatesSlots(t *testing.T) {
	backend := newFakeBackend(
		model.SlotView{Index: 0, Occupied: true, CreatorID: "c1"},
		model.SlotView{Index: 1},
	)
	ctrl := newController(backend)

	ctrl.Load(context.Background())

	state := ctrl.State()
	require.Len(t, state.Slots, 2)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
}

func TestAddSilentRefreshKeepsLoadingDown(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0})
	ctrl := newController(backend)

	err := ctrl.Add(context.Background(), "c1", false)
	require.NoError(t, err)

	state := ctrl.State()
	assert.False(t, state.Loading)
	assert.False(t, state.IsAdding)
	require.Len(t, state.Slots, 2)
	assert.True(t, state.Slots[1].Occupied)
}

func TestPreconditionFailureSurfacedNotRetryable(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0, Occupied: true, CreatorID: "c1"})
	backend.addErr = appErrors.NewAlreadyAssigned("c1")
	ctrl := newController(backend)
	ctrl.Load(context.Background())

	err := ctrl.Add(context.Background(), "c1", false)
	require.Error(t, err)

	state := ctrl.State()
	assert.False(t, state.IsAdding)
	assert.False(t, state.Retryable)
	assert.ErrorContains(t, state.Err, "already in this campaign")
	// the committed view is untouched
	require.Len(t, state.Slots, 1)
	assert.True(t, state.Slots[0].Occupied)
}

func TestTransientFailureMarkedRetryable(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0})
	backend.removeErr = appErrors.NewTransientStore("remove creator", assert.AnError)
	ctrl := newController(backend)

	err := ctrl.Remove(context.Background(), "c1")
	require.Error(t, err)

	state := ctrl.State()
	assert.True(t, state.Retryable)
	assert.False(t, state.IsRemoving)
}

func TestSwapTogglesBothBusyFlags(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0, Occupied: true, CreatorID: "old"})
	ctrl := newController(backend)

	err := ctrl.Swap(context.Background(), "old", "new")
	require.NoError(t, err)

	state := ctrl.State()
	assert.False(t, state.IsAdding)
	assert.False(t, state.IsRemoving)
	assert.Equal(t, "new", state.Slots[0].CreatorID)
}

func TestSilentRefreshLowersSupersededLoadingFlag(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0})
	ctrl := newController(backend)

	block := make(chan struct{})
	backend.mu.Lock()
	backend.blockFetch = block
	backend.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Load(context.Background()) // raises Loading, then parks
	}()

	// give the load time to park on the block channel
	time.Sleep(20 * time.Millisecond)

	backend.mu.Lock()
	backend.blockFetch = nil
	backend.mu.Unlock()

	// the silent refresh after Add supersedes the parked load and
	// inherits its loading flag
	err := ctrl.Add(context.Background(), "c1", false)
	require.NoError(t, err)

	close(block)
	wg.Wait()

	state := ctrl.State()
	assert.False(t, state.Loading, "no fetch in flight, flag must be down")
	require.Len(t, state.Slots, 2)
	assert.True(t, state.Slots[1].Occupied)
}

func TestNewFetchCancelsInFlightOne(t *testing.T) {
	backend := newFakeBackend(model.SlotView{Index: 0})
	ctrl := newController(backend)

	block := make(chan struct{})
	backend.mu.Lock()
	backend.blockFetch = block
	backend.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Load(context.Background()) // will be superseded
	}()

	// give the first fetch time to park on the block channel
	time.Sleep(20 * time.Millisecond)

	backend.mu.Lock()
	backend.blockFetch = nil
	backend.slots = []model.SlotView{{Index: 0, Occupied: true, CreatorID: "fresh"}}
	backend.mu.Unlock()

	ctrl.Load(context.Background()) // cancels the first fetch

	close(block)
	wg.Wait()

	// last request wins: the superseded fetch must not have
	// overwritten the fresh result
	state := ctrl.State()
	require.Len(t, state.Slots, 1)
	assert.Equal(t, "fresh", state.Slots[0].CreatorID)
	assert.False(t, state.Loading)
}
