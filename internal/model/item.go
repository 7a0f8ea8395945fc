package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item categories
const (
	CategoryComponents  = "components"
	CategoryPeripherals = "peripherals"
)

// Profile represents a named build profile that groups items
type Profile struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Item represents a tracked marketplace product within a profile
type Item struct {
	ID        string `json:"id" db:"id"` // UUID hex
	ProfileID int64  `json:"profile_id" db:"profile_id"`
	Category  string `json:"category" db:"category"` // components, peripherals
	Name      string `json:"name" db:"name"`
	Link      string `json:"link" db:"link"`
	Specs     string `json:"specs" db:"specs"`
	ImageURL  string `json:"image_url" db:"image_url"`
	Quantity  int    `json:"quantity" db:"quantity"`

	// Prices are stored as plain integers with no minor currency unit
	// (IDR amounts from the marketplace)
	CurrentPrice  int `json:"price" db:"current_price"`
	PreviousPrice int `json:"previous_price" db:"previous_price"`

	OrderIndex int `json:"order_index" db:"order_index"`
}

// PriceHistory represents one day's observed price for an item
type PriceHistory struct {
	ItemID string `json:"item_id,omitempty"`
	Date   string `json:"date"` // ISO format YYYY-MM-DD
	Price  int    `json:"price"`
}

// NewItemID generates a new item identifier.
// UUID hex without dashes, matching the legacy data format.
func NewItemID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DateISO formats a time as the calendar-day key used by the price ledger
func DateISO(t time.Time) string {
	return t.Format("2006-01-02")
}
