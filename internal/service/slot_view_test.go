package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luizvincenzi/criadores-slots/internal/cache"
	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/repository/repositorytest"
	"github.com/luizvincenzi/criadores-slots/internal/service"
)

func newViewBuilder(store *repositorytest.MemStore) *service.SlotViewBuilder {
	return &service.SlotViewBuilder{
		Provider:  store,
		Campaigns: store,
		Slots:     store,
		Creators:  store,
		Logger:    zap.NewNop(),
	}
}

func TestBuildSlotViewOrdersAndProjects(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 4)
	store.AddRosterCreator("c1", "Creator One")
	store.Occupy(1, 2, "c1", "Creator One")

	builder := newViewBuilder(store)

	result, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CampaignID)
	assert.Equal(t, 4, result.ContractedSlotCount)
	require.Len(t, result.Slots, 4)
	for i, v := range result.Slots {
		assert.Equal(t, i, v.Index)
	}
	assert.True(t, result.Slots[2].Occupied)
	assert.Equal(t, "Creator One", result.Slots[2].CreatorName)
	assert.True(t, result.Validation.IsValid)
	assert.Equal(t, 1, result.OccupiedCount())
}

func TestBuildSlotViewDetectsDuplicateCreator(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 4)
	store.AddRosterCreator("c1", "Creator One")
	// corrupt state injected directly: same creator in two slots
	store.Occupy(1, 0, "c1", "Creator One")
	store.Occupy(1, 3, "c1", "Creator One")

	builder := newViewBuilder(store)

	result, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)

	assert.False(t, result.Validation.IsValid)
	require.Len(t, result.Validation.Errors, 1)
	assert.Contains(t, result.Validation.Errors[0], "c1")

	// diagnostic only: the duplicate is still there
	slots, _ := store.ListByCampaign(context.Background(), 1)
	assert.True(t, slots[0].Occupied())
	assert.True(t, slots[3].Occupied())
}

func TestBuildSlotViewDetectsOvercommit(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 2)
	for i := 0; i < 2; i++ {
		id := string(rune('a' + i))
		store.AddRosterCreator(id, "Creator "+id)
		store.Occupy(1, i, id, "Creator "+id)
	}
	// contracted count lowered underneath the occupied slots
	require.NoError(t, store.SetContractedSlotCount(context.Background(), 1, 1))

	builder := newViewBuilder(store)

	result, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)

	assert.False(t, result.Validation.IsValid)
	assert.NotEmpty(t, result.Validation.Errors)
}

func TestBuildSlotViewFallsBackToSnapshotName(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 2)
	// occupant exists on the slot but is gone from the roster
	store.Occupy(1, 0, "ghost", "Cached Name")

	builder := newViewBuilder(store)

	result, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)

	assert.True(t, result.Slots[0].Occupied)
	assert.Equal(t, "Cached Name", result.Slots[0].CreatorName)
}

func TestBuildSlotViewUnknownCampaign(t *testing.T) {
	store := repositorytest.NewMemStore()
	builder := newViewBuilder(store)

	_, err := builder.BuildSlotView(context.Background(), model.CampaignKey{BusinessName: "Nobody", Month: "Maio 2025"})
	var notFound *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestBuildSlotViewUsesCacheUntilInvalidated(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 2)
	store.AddRosterCreator("c1", "Creator One")

	c := cache.New(1, time.Minute)
	builder := newViewBuilder(store)
	builder.Cache = c

	first, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)
	assert.Equal(t, 0, first.OccupiedCount())

	// mutate behind the cache: the stale view is still served
	store.Occupy(1, 0, "c1", "Creator One")
	stale, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)
	assert.Equal(t, 0, stale.OccupiedCount())

	c.Invalidate(cache.EntitySlotView, sonkeyJulho.String())
	fresh, err := builder.BuildSlotView(context.Background(), sonkeyJulho)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.OccupiedCount())
}

func TestAvailableCreatorsExcludesOccupants(t *testing.T) {
	store := repositorytest.NewMemStore()
	store.AddCampaign(1, sonkeyJulho, 2)
	store.AddRosterCreator("c1", "Creator One")
	store.AddRosterCreator("c2", "Creator Two")
	store.Occupy(1, 0, "c1", "Creator One")

	builder := newViewBuilder(store)

	available, err := builder.AvailableCreators(context.Background(), sonkeyJulho)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "c2", available[0].ID)
}
