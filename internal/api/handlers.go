package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/zqily/pcplanner/internal/model"
	"github.com/zqily/pcplanner/internal/refresh"
	"github.com/zqily/pcplanner/internal/store"
	"github.com/zqily/pcplanner/internal/update"

	"github.com/gin-gonic/gin"
)

// StoreInterface defines the store interface needed by handlers
type StoreInterface interface {
	GetProfiles() ([]*model.Profile, error)
	AddProfile(name string) (*model.Profile, error)
	RenameProfile(id int64, newName string) error
	DeleteProfile(id int64) error
	GetActiveProfile() (*model.Profile, error)
	SetActiveProfile(id int64) error

	GetItemsByProfile(profileID int64) ([]*model.Item, error)
	GetItem(id string) (*model.Item, error)
	AddItem(item *model.Item) error
	UpdateItemDetails(id, name, link, specs string, quantity int) error
	DeleteItem(id string) error
	GetPriceHistory(itemID string) ([]model.PriceHistory, error)
}

// RefreshService defines the refresh pipeline interface for handlers
type RefreshService interface {
	Refresh(ctx context.Context, profileID int64) error
	Cancel()
	Status() refresh.Status
	ResetHistory(itemID string) error
}

// ImagePather resolves an image URL to its cache file path
type ImagePather interface {
	Path(imageURL string) string
}

// Handlers contains all API handlers
type Handlers struct {
	store   StoreInterface
	refresh RefreshService
	images  ImagePather
	updates *update.Checker
}

// NewHandlers creates a new handlers instance
func NewHandlers(st StoreInterface, rs RefreshService, images ImagePather, updates *update.Checker) *Handlers {
	return &Handlers{
		store:   st,
		refresh: rs,
		images:  images,
		updates: updates,
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// --- Profiles ---

// GetProfiles returns all profiles along with the active profile id
func (h *Handlers) GetProfiles(c *gin.Context) {
	profiles, err := h.store.GetProfiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var activeID int64
	if active, err := h.store.GetActiveProfile(); err == nil {
		activeID = active.ID
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles":  profiles,
		"active_id": activeID,
	})
}

// CreateProfile creates a new profile and makes it active
func (h *Handlers) CreateProfile(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.store.AddProfile(req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrProfileExists) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// RenameProfile renames a profile
func (h *Handlers) RenameProfile(c *gin.Context) {
	id, ok := parseProfileID(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.RenameProfile(id, req.Name); err != nil {
		c.JSON(profileErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "renamed"})
}

// DeleteProfile deletes a profile
func (h *Handlers) DeleteProfile(c *gin.Context) {
	id, ok := parseProfileID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteProfile(id); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrLastProfile):
			status = http.StatusConflict
		case errors.Is(err, store.ErrProfileNotFound):
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ActivateProfile switches the active profile
func (h *Handlers) ActivateProfile(c *gin.Context) {
	id, ok := parseProfileID(c)
	if !ok {
		return
	}

	if err := h.store.SetActiveProfile(id); err != nil {
		c.JSON(profileErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "activated"})
}

// GetProfileItems returns a profile's items in display order
func (h *Handlers) GetProfileItems(c *gin.Context) {
	id, ok := parseProfileID(c)
	if !ok {
		return
	}

	items, err := h.store.GetItemsByProfile(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if category := c.Query("category"); category != "" {
		filtered := make([]*model.Item, 0, len(items))
		for _, item := range items {
			if item.Category == category {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	c.JSON(http.StatusOK, items)
}

// --- Items ---

// CreateItem adds a new item to a profile
func (h *Handlers) CreateItem(c *gin.Context) {
	var req struct {
		ProfileID int64  `json:"profile_id" binding:"required"`
		Category  string `json:"category" binding:"required"`
		Name      string `json:"name" binding:"required"`
		Link      string `json:"link"`
		Specs     string `json:"specs"`
		Quantity  int    `json:"quantity"`
		Price     int    `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Category != model.CategoryComponents && req.Category != model.CategoryPeripherals {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category must be components or peripherals"})
		return
	}
	if req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be non-negative"})
		return
	}

	item := &model.Item{
		ProfileID:    req.ProfileID,
		Category:     req.Category,
		Name:         req.Name,
		Link:         req.Link,
		Specs:        req.Specs,
		Quantity:     req.Quantity,
		CurrentPrice: req.Price,
	}
	if err := h.store.AddItem(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// UpdateItem updates an item's editable fields
func (h *Handlers) UpdateItem(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Link     string `json:"link"`
		Specs    string `json:"specs"`
		Quantity int    `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	if err := h.store.UpdateItemDetails(id, req.Name, req.Link, req.Specs, req.Quantity); err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}

	item, err := h.store.GetItem(id)
	if err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItem removes an item
func (h *Handlers) DeleteItem(c *gin.Context) {
	if err := h.store.DeleteItem(c.Param("id")); err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// GetItemHistory returns an item's price ledger oldest first
func (h *Handlers) GetItemHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetItem(id); err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}

	history, err := h.store.GetPriceHistory(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}

// ResetItemHistory clears an item's price ledger
func (h *Handlers) ResetItemHistory(c *gin.Context) {
	if err := h.refresh.ResetHistory(c.Param("id")); err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// GetItemImage serves an item's cached image file
func (h *Handlers) GetItemImage(c *gin.Context) {
	item, err := h.store.GetItem(c.Param("id"))
	if err != nil {
		c.JSON(itemErrStatus(err), gin.H{"error": err.Error()})
		return
	}
	if item.ImageURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "item has no image"})
		return
	}

	path := h.images.Path(item.ImageURL)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not cached"})
		return
	}
	c.File(path)
}

// --- Refresh ---

// TriggerRefresh starts a refresh batch. Responds 409 when one is already
// running.
func (h *Handlers) TriggerRefresh(c *gin.Context) {
	var req struct {
		ProfileID int64 `json:"profile_id"`
	}
	// Body is optional; an empty body refreshes everything
	_ = c.ShouldBindJSON(&req)

	// The batch outlives this request: the request context is cancelled as
	// soon as the 202 is written, which would abort every in-flight scrape.
	// Batch lifetime is bounded by shutdown (service.Cancel), not by callers.
	if err := h.refresh.Refresh(context.Background(), req.ProfileID); err != nil {
		if errors.Is(err, refresh.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// CancelRefresh requests cancellation of the running batch
func (h *Handlers) CancelRefresh(c *gin.Context) {
	h.refresh.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// GetRefreshStatus returns a snapshot of the current or last batch
func (h *Handlers) GetRefreshStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.refresh.Status())
}

// --- Updates ---

// CheckUpdate reports whether a newer release is available
func (h *Handlers) CheckUpdate(c *gin.Context) {
	info, newer, err := h.updates.Check()
	if err != nil {
		// Soft failure: the app works fine without update information
		c.JSON(http.StatusOK, gin.H{"update_available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"update_available": newer,
		"current_version":  update.AppVersion,
		"latest":           info,
	})
}

// --- helpers ---

func parseProfileID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile id"})
		return 0, false
	}
	return id, true
}

func profileErrStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrProfileExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func itemErrStatus(err error) int {
	if errors.Is(err, store.ErrItemNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
