package store

import (
	"errors"
	"time"

	"github.com/zqily/pcplanner/internal/model"
)

var (
	// ErrItemNotFound is returned when an item id does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrProfileNotFound is returned when a profile id does not exist
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileExists is returned when a profile name is already taken
	ErrProfileExists = errors.New("profile already exists")

	// ErrLastProfile is returned when deleting the only remaining profile
	ErrLastProfile = errors.New("cannot delete the last profile")
)

// StoreInterface defines the complete interface for item storage
type StoreInterface interface {
	// Profile operations
	GetProfiles() ([]*model.Profile, error)
	AddProfile(name string) (*model.Profile, error)
	RenameProfile(id int64, newName string) error
	DeleteProfile(id int64) error
	GetActiveProfile() (*model.Profile, error)
	SetActiveProfile(id int64) error

	// Item operations
	GetAllItems() ([]*model.Item, error)
	GetItemsByProfile(profileID int64) ([]*model.Item, error)
	GetItem(id string) (*model.Item, error)
	AddItem(item *model.Item) error
	UpdateItemDetails(id, name, link, specs string, quantity int) error
	DeleteItem(id string) error
	SetImageURL(itemID, imageURL string) error

	// Price ledger operations
	RecordPrice(itemID string, price int, today time.Time) error
	ResetHistory(itemID string, today time.Time) error
	GetPriceHistory(itemID string) ([]model.PriceHistory, error)

	Close() error
}
