package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/zqily/pcplanner/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const defaultProfileName = "Default Profile"

// SQLiteStore manages profiles, items and the price ledger using SQLite
type SQLiteStore struct {
	db         *sql.DB
	mu         sync.RWMutex
	maxHistory int
}

// NewSQLite creates a new SQLiteStore instance. maxHistory is the price
// ledger retention count per item.
func NewSQLite(dataDir string, maxHistory int) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataDir, "pcplanner.db")

	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Open database with WAL mode and foreign keys enabled
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if maxHistory < 1 {
		maxHistory = 30
	}

	s := &SQLiteStore{
		db:         db,
		maxHistory: maxHistory,
	}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates tables and indexes and seeds the default profile
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		profile_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		specs TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 1,
		current_price INTEGER NOT NULL DEFAULT 0,
		previous_price INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL,
		date TEXT NOT NULL,
		price INTEGER NOT NULL,
		FOREIGN KEY (item_id) REFERENCES items(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_profile ON items(profile_id, category, order_index);
	CREATE INDEX IF NOT EXISTS idx_price_history_item_date ON price_history(item_id, date DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Seed a default profile so the app always has somewhere to put items
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		res, err := s.db.Exec(`INSERT INTO profiles (name, created_at) VALUES (?, ?)`,
			defaultProfileName, time.Now().Unix())
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := s.setConfig("active_profile", strconv.FormatInt(id, 10)); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Profile operations ---

// GetProfiles returns all profiles sorted by name
func (s *SQLiteStore) GetProfiles() ([]*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, created_at FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0)
	for rows.Next() {
		p := &model.Profile{}
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// AddProfile creates a new profile and makes it active
func (s *SQLiteStore) AddProfile(name string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE name = ?`, name).Scan(&exists); err != nil {
		return nil, err
	}
	if exists > 0 {
		return nil, ErrProfileExists
	}

	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO profiles (name, created_at) VALUES (?, ?)`, name, now.Unix())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := s.setConfig("active_profile", strconv.FormatInt(id, 10)); err != nil {
		return nil, err
	}

	return &model.Profile{ID: id, Name: name, CreatedAt: now}, nil
}

// RenameProfile renames an existing profile
func (s *SQLiteStore) RenameProfile(id int64, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles WHERE name = ? AND id != ?`, newName, id).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return ErrProfileExists
	}

	res, err := s.db.Exec(`UPDATE profiles SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrProfileNotFound)
}

// DeleteProfile removes a profile and its items. The last remaining profile
// cannot be deleted. When the active profile is deleted, another profile
// becomes active.
func (s *SQLiteStore) DeleteProfile(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastProfile
	}

	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := affectedOr(res, ErrProfileNotFound); err != nil {
		return err
	}

	// Repoint the active profile if it was just removed
	if active, err := s.getConfig("active_profile"); err == nil && active == strconv.FormatInt(id, 10) {
		var firstID int64
		if err := s.db.QueryRow(`SELECT id FROM profiles ORDER BY id LIMIT 1`).Scan(&firstID); err == nil {
			_ = s.setConfig("active_profile", strconv.FormatInt(firstID, 10))
		}
	}

	return nil
}

// GetActiveProfile returns the active profile, falling back to the first
// profile when the stored reference is stale
func (s *SQLiteStore) GetActiveProfile() (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, err := s.getConfig("active_profile")
	if err == nil {
		if id, perr := strconv.ParseInt(value, 10, 64); perr == nil {
			if p, gerr := s.getProfileLocked(id); gerr == nil {
				return p, nil
			}
		}
	}

	var firstID int64
	if err := s.db.QueryRow(`SELECT id FROM profiles ORDER BY id LIMIT 1`).Scan(&firstID); err != nil {
		return nil, ErrProfileNotFound
	}
	return s.getProfileLocked(firstID)
}

// SetActiveProfile switches the active profile
func (s *SQLiteStore) SetActiveProfile(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getProfileLocked(id); err != nil {
		return err
	}
	return s.setConfig("active_profile", strconv.FormatInt(id, 10))
}

func (s *SQLiteStore) getProfileLocked(id int64) (*model.Profile, error) {
	p := &model.Profile{}
	var createdAt int64
	err := s.db.QueryRow(`SELECT id, name, created_at FROM profiles WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return p, nil
}

// --- Item operations ---

const itemColumns = `id, profile_id, category, name, link, specs, image_url, quantity, current_price, previous_price, order_index`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(&item.ID, &item.ProfileID, &item.Category, &item.Name, &item.Link,
		&item.Specs, &item.ImageURL, &item.Quantity, &item.CurrentPrice,
		&item.PreviousPrice, &item.OrderIndex)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// GetAllItems returns every item across all profiles
func (s *SQLiteStore) GetAllItems() ([]*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryItems(`SELECT ` + itemColumns + ` FROM items ORDER BY profile_id, category, order_index`)
}

// GetItemsByProfile returns a profile's items in display order
func (s *SQLiteStore) GetItemsByProfile(profileID int64) ([]*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryItems(`SELECT `+itemColumns+` FROM items WHERE profile_id = ? ORDER BY category, order_index`, profileID)
}

func (s *SQLiteStore) queryItems(query string, args ...any) ([]*model.Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem returns a single item by id
func (s *SQLiteStore) GetItem(id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := scanItem(s.db.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// AddItem inserts a new item at the end of its category. A missing ID is
// generated. An item created with a price already set gets a seed ledger
// entry for today, matching manual entry semantics.
func (s *SQLiteStore) AddItem(item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = model.NewItemID()
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var nextIndex int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(order_index) + 1, 0) FROM items WHERE profile_id = ? AND category = ?`,
		item.ProfileID, item.Category,
	).Scan(&nextIndex); err != nil {
		return err
	}
	item.OrderIndex = nextIndex

	if _, err := tx.Exec(
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ProfileID, item.Category, item.Name, item.Link, item.Specs,
		item.ImageURL, item.Quantity, item.CurrentPrice, item.PreviousPrice, item.OrderIndex,
	); err != nil {
		return err
	}

	if item.CurrentPrice > 0 {
		if _, err := tx.Exec(
			`INSERT INTO price_history (item_id, date, price) VALUES (?, ?, ?)`,
			item.ID, model.DateISO(time.Now()), item.CurrentPrice,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateItemDetails updates the editable fields of an item, leaving price,
// image and ledger state untouched
func (s *SQLiteStore) UpdateItemDetails(id, name, link, specs string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		quantity = 1
	}
	res, err := s.db.Exec(
		`UPDATE items SET name = ?, link = ?, specs = ?, quantity = ? WHERE id = ?`,
		name, link, specs, quantity, id,
	)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrItemNotFound)
}

// DeleteItem removes an item and its price history
func (s *SQLiteStore) DeleteItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrItemNotFound)
}

// SetImageURL stores the discovered image URL against an item
func (s *SQLiteStore) SetImageURL(itemID, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE items SET image_url = ? WHERE id = ?`, imageURL, itemID)
	if err != nil {
		return err
	}
	return affectedOr(res, ErrItemNotFound)
}

// --- Price ledger operations ---

// RecordPrice folds a scraped price into an item's ledger. A second update
// on the same calendar day overwrites that day's entry rather than
// appending. History beyond the retention cap is pruned oldest-first. The
// item's previous_price is set to the second most recent retained entry
// (0 when there is none) so repeated same-day updates are idempotent, and
// current_price is set to the new price. The whole mutation is one
// transaction, so a concurrent reader never observes partial history.
func (s *SQLiteStore) RecordPrice(itemID string, price int, today time.Time) error {
	if price < 0 {
		return fmt.Errorf("price must be non-negative, got %d", price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	date := model.DateISO(today)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var lastID int64
	var lastDate string
	err = tx.QueryRow(
		`SELECT id, date FROM price_history WHERE item_id = ? ORDER BY date DESC, id DESC LIMIT 1`,
		itemID,
	).Scan(&lastID, &lastDate)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`INSERT INTO price_history (item_id, date, price) VALUES (?, ?, ?)`,
			itemID, date, price); err != nil {
			return err
		}
	case err != nil:
		return err
	case lastDate == date:
		if _, err := tx.Exec(`UPDATE price_history SET price = ? WHERE id = ?`, price, lastID); err != nil {
			return err
		}
	default:
		if _, err := tx.Exec(`INSERT INTO price_history (item_id, date, price) VALUES (?, ?, ?)`,
			itemID, date, price); err != nil {
			return err
		}
	}

	// Enforce retention: keep the most recent maxHistory entries
	if _, err := tx.Exec(
		`DELETE FROM price_history WHERE item_id = ? AND id NOT IN (
			SELECT id FROM price_history WHERE item_id = ? ORDER BY date DESC, id DESC LIMIT ?
		)`,
		itemID, itemID, s.maxHistory,
	); err != nil {
		return err
	}

	previous := 0
	err = tx.QueryRow(
		`SELECT price FROM price_history WHERE item_id = ? ORDER BY date DESC, id DESC LIMIT 1 OFFSET 1`,
		itemID,
	).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	res, err := tx.Exec(
		`UPDATE items SET current_price = ?, previous_price = ? WHERE id = ?`,
		price, previous, itemID,
	)
	if err != nil {
		return err
	}
	if err := affectedOr(res, ErrItemNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

// ResetHistory clears an item's ledger. An item holding a positive price is
// reseeded with a single entry for today at that price; otherwise the
// history is left empty. previous_price is reset to 0 either way.
func (s *SQLiteStore) ResetHistory(itemID string, today time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRow(`SELECT current_price FROM items WHERE id = ?`, itemID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM price_history WHERE item_id = ?`, itemID); err != nil {
		return err
	}

	if current > 0 {
		if _, err := tx.Exec(`INSERT INTO price_history (item_id, date, price) VALUES (?, ?, ?)`,
			itemID, model.DateISO(today), current); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE items SET previous_price = 0 WHERE id = ?`, itemID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetPriceHistory returns an item's ledger oldest first
func (s *SQLiteStore) GetPriceHistory(itemID string) ([]model.PriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT item_id, date, price FROM price_history WHERE item_id = ? ORDER BY date ASC, id ASC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]model.PriceHistory, 0)
	for rows.Next() {
		var h model.PriceHistory
		if err := rows.Scan(&h.ItemID, &h.Date, &h.Price); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// --- helpers ---

func (s *SQLiteStore) getConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	return value, err
}

func (s *SQLiteStore) setConfig(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

func affectedOr(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
