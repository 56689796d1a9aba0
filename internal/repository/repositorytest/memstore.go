// Package repositorytest provides an in-memory stand-in for the
// Postgres-backed repositories and the transaction provider, used by
// service, handler and controller tests.
package repositorytest

import (
	"context"
	"errors"
	"sync"
	"time"

	appErrors "github.com/luizvincenzi/criadores-slots/internal/errors"
	"github.com/luizvincenzi/criadores-slots/internal/model"
	"github.com/luizvincenzi/criadores-slots/internal/repository"
)

// MemStore implements Provider and all four repository interfaces over
// plain maps. Transact holds the store mutex for the whole unit of
// work and rolls the state back when fn fails, mirroring the
// all-or-nothing contract of the real provider.
type MemStore struct {
	mu sync.Mutex

	campaigns map[string]*model.Campaign
	slots     map[int][]model.Slot
	creators  map[string]model.Creator
	audit     []model.AuditEntry

	nextSlotID  int
	nextAuditID int64

	// FailAppend makes the next audit append fail, to exercise the
	// rollback path.
	FailAppend bool
	// ExecErr is returned from every write when set.
	ExecErr error
}

func NewMemStore() *MemStore {
	return &MemStore{
		campaigns:  make(map[string]*model.Campaign),
		slots:      make(map[int][]model.Slot),
		creators:   make(map[string]model.Creator),
		nextSlotID: 1,
	}
}

// AddCampaign seeds a campaign with contracted empty slot rows.
func (m *MemStore) AddCampaign(id int, key model.CampaignKey, contracted int) {
	m.campaigns[key.String()] = &model.Campaign{
		ID:                  id,
		BusinessName:        key.BusinessName,
		Month:               key.Month,
		ContractedSlotCount: contracted,
		Status:              "active",
		CreatedAt:           time.Now(),
	}
	for i := 0; i < contracted; i++ {
		m.slots[id] = append(m.slots[id], model.Slot{
			ID:         m.nextSlotID + i,
			CampaignID: id,
			SlotIndex:  i,
		})
	}
	m.nextSlotID += contracted
}

// AddRosterCreator seeds an active creator.
func (m *MemStore) AddRosterCreator(id, name string) {
	m.creators[id] = model.Creator{ID: id, Name: name, Status: "active"}
}

// Occupy assigns a slot without going through the service, for setup.
func (m *MemStore) Occupy(campaignID, index int, creatorID, name string) {
	slots := m.slots[campaignID]
	for i := range slots {
		if slots[i].SlotIndex == index {
			id := creatorID
			now := time.Now()
			slots[i].CreatorID = &id
			slots[i].CreatorName = name
			slots[i].AssignedAt = &now
			return
		}
	}
}

// AuditEntries returns a copy of everything appended so far.
func (m *MemStore) AuditEntries() []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.audit...)
}

func (m *MemStore) snapshot() *MemStore {
	clone := &MemStore{
		campaigns:   make(map[string]*model.Campaign, len(m.campaigns)),
		slots:       make(map[int][]model.Slot, len(m.slots)),
		creators:    m.creators,
		audit:       append([]model.AuditEntry(nil), m.audit...),
		nextSlotID:  m.nextSlotID,
		nextAuditID: m.nextAuditID,
	}
	for k, v := range m.campaigns {
		c := *v
		clone.campaigns[k] = &c
	}
	for k, v := range m.slots {
		clone.slots[k] = append([]model.Slot(nil), v...)
	}
	return clone
}

func (m *MemStore) restore(s *MemStore) {
	m.campaigns = s.campaigns
	m.slots = s.slots
	m.audit = s.audit
	m.nextSlotID = s.nextSlotID
	m.nextAuditID = s.nextAuditID
}

// Transact implements repository.Provider.
func (m *MemStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(saved)
		return err
	}
	return nil
}

// Readonly implements repository.Provider.
func (m *MemStore) Readonly(ctx context.Context) context.Context {
	return ctx
}

// GetByKey implements repository.CampaignRepositoryInterface.
func (m *MemStore) GetByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCampaignLocked(key)
}

// LockByKey implements repository.CampaignRepositoryInterface. The
// row lock is already emulated by Transact holding the store mutex.
func (m *MemStore) LockByKey(ctx context.Context, key model.CampaignKey) (*model.Campaign, error) {
	return m.getCampaignLocked(key)
}

func (m *MemStore) getCampaignLocked(key model.CampaignKey) (*model.Campaign, error) {
	c, ok := m.campaigns[key.String()]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(key.BusinessName, key.Month)
	}
	clone := *c
	return &clone, nil
}

// SetContractedSlotCount implements repository.CampaignRepositoryInterface.
func (m *MemStore) SetContractedSlotCount(ctx context.Context, campaignID, count int) error {
	if m.ExecErr != nil {
		return m.ExecErr
	}
	for _, c := range m.campaigns {
		if c.ID == campaignID {
			c.ContractedSlotCount = count
			return nil
		}
	}
	return errors.New("campaign not found")
}

// ListByCampaign implements repository.SlotRepositoryInterface.
func (m *MemStore) ListByCampaign(ctx context.Context, campaignID int) ([]model.Slot, error) {
	return append([]model.Slot(nil), m.slots[campaignID]...), nil
}

// Create implements repository.SlotRepositoryInterface.
func (m *MemStore) Create(ctx context.Context, campaignID, slotIndex int) (*model.Slot, error) {
	if m.ExecErr != nil {
		return nil, m.ExecErr
	}
	slot := model.Slot{
		ID:         m.nextSlotID,
		CampaignID: campaignID,
		SlotIndex:  slotIndex,
	}
	m.nextSlotID++
	m.slots[campaignID] = append(m.slots[campaignID], slot)
	return &slot, nil
}

// Assign implements repository.SlotRepositoryInterface.
func (m *MemStore) Assign(ctx context.Context, slotID int, creatorID, creatorName string) error {
	if m.ExecErr != nil {
		return m.ExecErr
	}
	for campaignID := range m.slots {
		slots := m.slots[campaignID]
		for i := range slots {
			if slots[i].ID == slotID {
				id := creatorID
				now := time.Now()
				slots[i].CreatorID = &id
				slots[i].CreatorName = creatorName
				slots[i].AssignedAt = &now
				return nil
			}
		}
	}
	return errors.New("slot not found")
}

// Clear implements repository.SlotRepositoryInterface.
func (m *MemStore) Clear(ctx context.Context, slotID int) error {
	if m.ExecErr != nil {
		return m.ExecErr
	}
	for campaignID := range m.slots {
		slots := m.slots[campaignID]
		for i := range slots {
			if slots[i].ID == slotID {
				slots[i].CreatorID = nil
				slots[i].CreatorName = ""
				slots[i].AssignedAt = nil
				return nil
			}
		}
	}
	return errors.New("slot not found")
}

// Append implements repository.AuditRepositoryInterface.
func (m *MemStore) Append(ctx context.Context, entry *model.AuditEntry) error {
	if m.FailAppend {
		return errors.New("audit insert failed")
	}
	m.nextAuditID++
	entry.ID = m.nextAuditID
	entry.CreatedAt = time.Now()
	m.audit = append(m.audit, *entry)
	return nil
}

// Query implements repository.AuditRepositoryInterface.
func (m *MemStore) Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	if filter.Offset > 0 {
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetByID implements repository.CreatorRepositoryInterface. Returns
// nil, nil for creators missing from the roster.
func (m *MemStore) GetByID(ctx context.Context, id string) (*model.Creator, error) {
	c, ok := m.creators[id]
	if !ok {
		return nil, nil
	}
	clone := c
	return &clone, nil
}

// ListAvailable implements repository.CreatorRepositoryInterface.
func (m *MemStore) ListAvailable(ctx context.Context, campaignID int) ([]model.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	occupied := make(map[string]bool)
	for _, s := range m.slots[campaignID] {
		if s.CreatorID != nil {
			occupied[*s.CreatorID] = true
		}
	}
	var out []model.Creator
	for _, c := range m.creators {
		if c.Status == "active" && !occupied[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ repository.Provider = (*MemStore)(nil)
var _ repository.CampaignRepositoryInterface = (*MemStore)(nil)
var _ repository.SlotRepositoryInterface = (*MemStore)(nil)
var _ repository.AuditRepositoryInterface = (*MemStore)(nil)
var _ repository.CreatorRepositoryInterface = (*MemStore)(nil)
