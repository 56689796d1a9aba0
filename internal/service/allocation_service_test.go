package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/lock"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/repository/repositorytest"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

var sonkeyJulho = model.CampaignKey{BusinessName: "Sonkey", Month: "Julho 2025"}

func newAllocator(store *repositorytest.MemStore) *service.AllocationService {
	return &service.AllocationService{
		Provider:  store,
		Campaigns: store,
		Slots:     store,
		Audit:     store,
		Creators:  store,
		Locks:     lock.NewKeyLock(),
		Logger:    zap.NewNop(),
	}
}

func TestAddCreatorFillsLowestEmptySlot(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("c1", "Creator One")
	store.AddRosterCreator("c2", "Creator Two")
	store.Occupy(1, 0, "c1", "Creator One")
	store.Occupy(1, 2, "old", "Old Creator")

	svc := newAllocator(store)

	result, err := svc.AddCreator(context.Background(), sonkeyJulho, "c2", false, "ops@criadores.app")
	require.NoError(t, err)

	// slot 1 is the lowest empty index
	assert.Equal(t, 1, result.SlotIndex)
	assert.False(t, result.SlotIncreased)
	assert.Equal(t, 6, result.ContractedSlotCount)
	assert.True(t, result.Slots[1].Occupied)
	assert.Equal(t, "Creator Two", result.Slots[1].CreatorName)
}

func TestAddCreatorRejectsDuplicate(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("c1", "Creator One")
	store.Occupy(1, 0, "c1", "Creator One")

	svc := newAllocator(store)

	_, err := svc.AddCreator(context.Background(), sonkeyJulho, "c1", false, "ops@criadores.app")
	var alreadyAssigned *appErrors.ErrAlreadyAssigned
	require.ErrorAs(t, err, &alreadyAssigned)
	assert.Equal(t, "c1", alreadyAssigned.CreatorID)

	// no audit entry for a rejected call
	entries, _ := store.Query(context.Background(), model.AuditFilter{})
	assert.Empty(t, entries)
}

func TestAddCreatorSlotsFull(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.AddRosterCreator(id, "Creator "+id)
		store.Occupy(1, i, id, "Creator "+id)
	}
	store.AddRosterCreator("extra", "Extra Creator")

	svc := newAllocator(store)

	_, err := svc.AddCreator(context.Background(), sonkeyJulho, "extra", false, "ops@criadores.app")
	var slotsFull *appErrors.ErrSlotsFull
	require.ErrorAs(t, err, &slotsFull)
	assert.Equal(t, 6, slotsFull.ContractedSlotCount)
}

func TestAddCreatorWithSlotIncrease(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.AddRosterCreator(id, "Creator "+id)
		store.Occupy(1, i, id, "Creator "+id)
	}
	store.AddRosterCreator("extra", "Extra Creator")

	svc := newAllocator(store)

	result, err := svc.AddCreator(context.Background(), sonkeyJulho, "extra", true, "ops@criadores.app")
	require.NoError(t, err)

	assert.True(t, result.SlotIncreased)
	assert.Equal(t, 7, result.ContractedSlotCount)
	assert.Equal(t, 6, result.SlotIndex) // max(existing indices) + 1
	assert.Len(t, result.Slots, 7)

	campaign, err := store.GetByKey(context.Background(), sonkeyJulho)
	require.NoError(t, err)
	assert.Equal(t, 7, campaign.ContractedSlotCount)
}

func TestAddCreatorUnknownCampaign(t *testing.T) {
	store := repositorytest.NewMemStore()
	svc := newAllocator(store)

	key := model.CampaignKey{BusinessName: "Nobody", Month: "Janeiro 2025"}
	_, err := svc.AddCreator(context.Background(), key, "c1", false, "ops@criadores.app")
	var notFound *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAddCreatorUnknownCreator(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	svc := newAllocator(store)

	_, err := svc.AddCreator(context.Background(), sonkeyJulho, "ghost", false, "ops@criadores.app")
	var validation *appErrors.ErrValidation
	require.ErrorAs(t, err, &validation)
}

func TestRemoveCreatorScenario(t *testing.T) {
	// Sonkey / Julho 2025 with slots 0-5 occupied, Creator X in slot 3
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	for i := 0; i < 6; i++ {
		id := string(rune('a' + i))
		store.AddRosterCreator(id, "Creator "+id)
		store.Occupy(1, i, id, "Creator "+id)
	}
	store.AddRosterCreator("creator-x", "Creator X")
	store.Occupy(1, 3, "creator-x", "Creator X")

	svc := newAllocator(store)

	result, err := svc.RemoveCreator(context.Background(), sonkeyJulho, "creator-x", "ops@criadores.app")
	require.NoError(t, err)

	assert.Equal(t, 3, result.SlotIndex)
	assert.False(t, result.Slots[3].Occupied)

	occupied := 0
	for _, v := range result.Slots {
		if v.Occupied {
			occupied++
		}
	}
	assert.Equal(t, 5, occupied)

	entries, err := store.Query(context.Background(), model.AuditFilter{Action: model.AuditActionRemove})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Creator X", entries[0].OldValue)
	assert.Equal(t, "", entries[0].NewValue)
}

func TestRemoveCreatorNotAssigned(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	svc := newAllocator(store)

	_, err := svc.RemoveCreator(context.Background(), sonkeyJulho, "ghost", "ops@criadores.app")
	var notAssigned *appErrors.ErrNotAssigned
	require.ErrorAs(t, err, &notAssigned)
}

func TestAddThenRemoveRoundTrip(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("c1", "Creator One")
	svc := newAllocator(store)

	before, err := store.ListByCampaign(context.Background(), 1)
	require.NoError(t, err)

	_, err = svc.AddCreator(context.Background(), sonkeyJulho, "c1", false, "ops@criadores.app")
	require.NoError(t, err)
	result, err := svc.RemoveCreator(context.Background(), sonkeyJulho, "c1", "ops@criadores.app")
	require.NoError(t, err)

	for i, v := range result.Slots {
		assert.Equal(t, before[i].SlotIndex, v.Index)
		assert.False(t, v.Occupied)
	}

	entries, err := store.Query(context.Background(), model.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSwapCreator(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("old", "Old Creator")
	store.AddRosterCreator("new", "New Creator")
	store.Occupy(1, 2, "old", "Old Creator")

	svc := newAllocator(store)

	result, err := svc.SwapCreator(context.Background(), sonkeyJulho, "old", "new", "ops@criadores.app")
	require.NoError(t, err)

	assert.Equal(t, 2, result.SlotIndex)
	assert.True(t, result.Slots[2].Occupied)
	assert.Equal(t, "New Creator", result.Slots[2].CreatorName)

	entries, err := store.Query(context.Background(), model.AuditFilter{Action: model.AuditActionSwap})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Old Creator", entries[0].OldValue)
	assert.Equal(t, "New Creator", entries[0].NewValue)
}

func TestSwapCreatorPreconditions(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("old", "Old Creator")
	store.AddRosterCreator("new", "New Creator")
	store.Occupy(1, 0, "old", "Old Creator")
	store.Occupy(1, 1, "new", "New Creator")

	svc := newAllocator(store)

	// new already occupies a different slot
	_, err := svc.SwapCreator(context.Background(), sonkeyJulho, "old", "new", "ops@criadores.app")
	var alreadyAssigned *appErrors.ErrAlreadyAssigned
	require.ErrorAs(t, err, &alreadyAssigned)

	// old not in campaign
	_, err = svc.SwapCreator(context.Background(), sonkeyJulho, "ghost", "new", "ops@criadores.app")
	var notAssigned *appErrors.ErrNotAssigned
	require.ErrorAs(t, err, &notAssigned)
}

func TestAuditFailureRollsBackSlotWrite(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 6)
	store.AddRosterCreator("c1", "Creator One")
	store.FailAppend = true

	svc := newAllocator(store)

	_, err := svc.AddCreator(context.Background(), sonkeyJulho, "c1", false, "ops@criadores.app")
	require.Error(t, err)
	assert.True(t, appErrors.IsTransient(err))

	// the slot write must have rolled back with the audit failure
	slots, err := store.ListByCampaign(context.Background(), 1)
	require.NoError(t, err)
	for _, s := range slots {
		assert.False(t, s.Occupied())
	}
}

func TestConcurrentAddsLastSlot(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 1)
	store.AddRosterCreator("c1", "Creator One")
	store.AddRosterCreator("c2", "Creator Two")

	svc := newAllocator(store)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.AddCreator(context.Background(), sonkeyJulho, id, false, "ops@criadores.app")
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var slotsFull *appErrors.ErrSlotsFull
		assert.ErrorAs(t, err, &slotsFull)
	}
	assert.Equal(t, 1, succeeded)

	slots, err := store.ListByCampaign(context.Background(), 1)
	require.NoError(t, err)
	occupied := 0
	for _, s := range slots {
		if s.Occupied() {
			occupied++
		}
	}
	assert.Equal(t, 1, occupied)
}

func TestConcurrentSwapAndAddNeverSeeEmptySlot(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 3)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		store.AddRosterCreator(id, "Creator "+id)
		store.Occupy(1, i, id, "Creator "+id)
	}
	store.AddRosterCreator("new", "New Creator")

	svc := newAllocator(store)

	var wg sync.WaitGroup
	var swapErr, addErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, swapErr = svc.SwapCreator(context.Background(), sonkeyJulho, "b", "new", "ops@criadores.app")
	}()
	go func() {
		defer wg.Done()
		_, addErr = svc.AddCreator(context.Background(), sonkeyJulho, "new", false, "ops@criadores.app")
	}()
	wg.Wait()

	require.NoError(t, swapErr)

	// the concurrent add either saw the campaign full (pre-swap) or the
	// creator already placed (post-swap); it never claimed the slot
	// being swapped
	require.Error(t, addErr)
	var slotsFull *appErrors.ErrSlotsFull
	var alreadyAssigned *appErrors.ErrAlreadyAssigned
	assert.True(t,
		errors.As(addErr, &slotsFull) || errors.As(addErr, &alreadyAssigned),
		"unexpected error: %v", addErr)

	// uniqueness invariant holds
	slots, err := store.ListByCampaign(context.Background(), 1)
	require.NoError(t, err)
	seen := make(map[string]int)
	for _, s := range slots {
		assert.True(t, s.Occupied())
		if s.Occupied() {
			seen[*s.CreatorID]++
		}
	}
	assert.Equal(t, 1, seen["new"])
	for id, count := range seen {
		assert.Equal(t, 1, count, "creator %s assigned more than once", id)
	}
}

func TestValidationErrors(t *testing.T) {
	store := repositorytest.NewMemStore()
	svc := newAllocator(store)

	var validation *appErrors.ErrValidation

	_, err := svc.AddCreator(context.Background(), model.CampaignKey{}, "c1", false, "a@b.c")
	require.ErrorAs(t, err, &validation)

	_, err = svc.RemoveCreator(context.Background(), sonkeyJulho, "", "a@b.c")
	require.ErrorAs(t, err, &validation)

	_, err = svc.SwapCreator(context.Background(), sonkeyJulho, "same", "same", "a@b.c")
	require.ErrorAs(t, err, &validation)
}
