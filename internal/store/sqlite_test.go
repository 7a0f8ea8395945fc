package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zqily/pcplanner/internal/model"
)

func newTestStore(t *testing.T, maxHistory int) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(t.TempDir(), maxHistory)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func addTestItem(t *testing.T, s *SQLiteStore, name string) *model.Item {
	t.Helper()
	active, err := s.GetActiveProfile()
	require.NoError(t, err)
	item := &model.Item{
		ProfileID: active.ID,
		Category:  model.CategoryComponents,
		Name:      name,
		Link:      "https://www.tokopedia.com/shop/" + name,
		Quantity:  1,
	}
	require.NoError(t, s.AddItem(item))
	return item
}

func TestSeedsDefaultProfile(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	profiles, err := s.GetProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "Default Profile", profiles[0].Name)

	active, err := s.GetActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, profiles[0].ID, active.ID)
}

func TestProfileLifecycle(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)

	p, err := s.AddProfile("Gaming Build")
	require.NoError(t, err)

	// A new profile becomes the active one
	active, err := s.GetActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)

	_, err = s.AddProfile("Gaming Build")
	assert.ErrorIs(t, err, ErrProfileExists)

	require.NoError(t, s.RenameProfile(p.ID, "Workstation"))
	err = s.RenameProfile(p.ID, "Default Profile")
	assert.ErrorIs(t, err, ErrProfileExists)

	// Deleting the active profile repoints the active marker
	require.NoError(t, s.DeleteProfile(p.ID))
	active, err = s.GetActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, "Default Profile", active.Name)

	assert.ErrorIs(t, s.DeleteProfile(active.ID), ErrLastProfile)
	assert.ErrorIs(t, s.DeleteProfile(99999), ErrProfileNotFound)
	assert.ErrorIs(t, s.SetActiveProfile(99999), ErrProfileNotFound)
}

func TestDeleteProfileCascadesItems(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	p, err := s.AddProfile("Temp")
	require.NoError(t, err)

	item := &model.Item{ProfileID: p.ID, Category: model.CategoryPeripherals, Name: "Mouse"}
	require.NoError(t, s.AddItem(item))
	require.NoError(t, s.RecordPrice(item.ID, 150000, day("2026-08-01")))

	require.NoError(t, s.DeleteProfile(p.ID))

	_, err = s.GetItem(item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAddItemAssignsIDAndOrder(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	a := addTestItem(t, s, "gpu")
	b := addTestItem(t, s, "cpu")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 0, a.OrderIndex)
	assert.Equal(t, 1, b.OrderIndex)

	items, err := s.GetItemsByProfile(a.ProfileID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "gpu", items[0].Name)
	assert.Equal(t, "cpu", items[1].Name)
}

func TestAddItemWithPriceSeedsLedger(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	active, err := s.GetActiveProfile()
	require.NoError(t, err)

	item := &model.Item{
		ProfileID:    active.ID,
		Category:     model.CategoryComponents,
		Name:         "SSD",
		CurrentPrice: 800000,
	}
	require.NoError(t, s.AddItem(item))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 800000, history[0].Price)
	assert.Equal(t, model.DateISO(time.Now()), history[0].Date)
}

func TestUpdateItemDetailsLeavesLedgerAlone(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "ram")
	require.NoError(t, s.RecordPrice(item.ID, 450000, day("2026-08-01")))

	require.NoError(t, s.UpdateItemDetails(item.ID, "RAM 32GB", "https://www.tokopedia.com/shop/ram32", "2x16GB DDR5", 2))

	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "RAM 32GB", got.Name)
	assert.Equal(t, "2x16GB DDR5", got.Specs)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, 450000, got.CurrentPrice)

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.ErrorIs(t, s.UpdateItemDetails("missing", "x", "", "", 1), ErrItemNotFound)
}

func TestRecordPriceAppendsAcrossDays(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "psu")

	require.NoError(t, s.RecordPrice(item.ID, 100, day("2026-08-01")))
	require.NoError(t, s.RecordPrice(item.ID, 110, day("2026-08-02")))
	require.NoError(t, s.RecordPrice(item.ID, 120, day("2026-08-03")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{100, 110, 120}, []int{history[0].Price, history[1].Price, history[2].Price})

	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, got.CurrentPrice)
	assert.Equal(t, 110, got.PreviousPrice)
}

func TestRecordPriceSameDayOverwrites(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "case")

	require.NoError(t, s.RecordPrice(item.ID, 90, day("2026-08-10")))
	require.NoError(t, s.RecordPrice(item.ID, 95, day("2026-08-10")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 95, history[0].Price)

	// Same-day updates are idempotent for previous_price
	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 95, got.CurrentPrice)
	assert.Equal(t, 0, got.PreviousPrice)

	require.NoError(t, s.RecordPrice(item.ID, 98, day("2026-08-11")))
	require.NoError(t, s.RecordPrice(item.ID, 99, day("2026-08-11")))
	got, err = s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, got.CurrentPrice)
	assert.Equal(t, 95, got.PreviousPrice)
}

func TestRecordPricePrunesToRetentionCap(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 3)
	item := addTestItem(t, s, "cooler")

	require.NoError(t, s.RecordPrice(item.ID, 100, day("2026-08-01")))
	require.NoError(t, s.RecordPrice(item.ID, 110, day("2026-08-02")))
	require.NoError(t, s.RecordPrice(item.ID, 120, day("2026-08-03")))
	require.NoError(t, s.RecordPrice(item.ID, 130, day("2026-08-04")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{110, 120, 130}, []int{history[0].Price, history[1].Price, history[2].Price})

	// previous_price comes from the retained entries, not the pruned ones
	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 130, got.CurrentPrice)
	assert.Equal(t, 120, got.PreviousPrice)
}

func TestRecordPriceZeroIsValid(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "freebie")

	require.NoError(t, s.RecordPrice(item.ID, 0, day("2026-08-01")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].Price)

	assert.Error(t, s.RecordPrice(item.ID, -1, day("2026-08-02")))
}

func TestRecordPriceUnknownItem(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	// Fails either on the ledger foreign key or the items update
	err := s.RecordPrice("no-such-item", 100, day("2026-08-01"))
	assert.Error(t, err)

	// The rolled-back ledger entry must not survive
	history, err := s.GetPriceHistory("no-such-item")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestResetHistoryReseedsFromCurrentPrice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "monitor")

	require.NoError(t, s.RecordPrice(item.ID, 100, day("2026-08-01")))
	require.NoError(t, s.RecordPrice(item.ID, 120, day("2026-08-02")))

	require.NoError(t, s.ResetHistory(item.ID, day("2026-08-05")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 120, history[0].Price)
	assert.Equal(t, "2026-08-05", history[0].Date)

	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, got.CurrentPrice)
	assert.Equal(t, 0, got.PreviousPrice)
}

func TestResetHistoryUnpricedItemClearsLedger(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "keyboard")

	require.NoError(t, s.ResetHistory(item.ID, day("2026-08-05")))

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, s.ResetHistory("missing", day("2026-08-05")), ErrItemNotFound)
}

func TestSetImageURL(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "webcam")

	require.NoError(t, s.SetImageURL(item.ID, "https://img.example/webcam.jpg"))

	got, err := s.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/webcam.jpg", got.ImageURL)

	assert.ErrorIs(t, s.SetImageURL("missing", "x"), ErrItemNotFound)
}

func TestDeleteItem(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 30)
	item := addTestItem(t, s, "fan")
	require.NoError(t, s.RecordPrice(item.ID, 50000, day("2026-08-01")))

	require.NoError(t, s.DeleteItem(item.ID))
	_, err := s.GetItem(item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	history, err := s.GetPriceHistory(item.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, s.DeleteItem(item.ID), ErrItemNotFound)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewSQLite(dir, 30)
	require.NoError(t, err)

	active, err := s.GetActiveProfile()
	require.NoError(t, err)
	item := &model.Item{ProfileID: active.ID, Category: model.CategoryComponents, Name: "mobo"}
	require.NoError(t, s.AddItem(item))
	require.NoError(t, s.RecordPrice(item.ID, 2000000, day("2026-08-01")))
	require.NoError(t, s.Close())

	s2, err := NewSQLite(dir, 30)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "mobo", got.Name)
	assert.Equal(t, 2000000, got.CurrentPrice)

	// Reopening must not reseed a second default profile
	profiles, err := s2.GetProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}
