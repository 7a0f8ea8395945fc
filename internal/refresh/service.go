package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/zqily/pcplanner/internal/model"
	"github.com/zqily/pcplanner/internal/scraper"
)

// Store defines the item store operations the refresh service needs
type Store interface {
	GetAllItems() ([]*model.Item, error)
	GetItemsByProfile(profileID int64) ([]*model.Item, error)
	RecordPrice(itemID string, price int, today time.Time) error
	SetImageURL(itemID, imageURL string) error
	ResetHistory(itemID string, today time.Time) error
}

// ItemError is one per-item failure from a batch
type ItemError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Status is a snapshot of the current (or most recent) refresh batch
type Status struct {
	State         string      `json:"state"` // idle, running, draining
	Total         int         `json:"total"`
	Completed     int         `json:"completed"`
	Succeeded     int         `json:"succeeded"`
	Failed        int         `json:"failed"`
	Errors        []ItemError `json:"errors,omitempty"`
	LastFinished  time.Time   `json:"last_finished,omitempty"`
	LastCancelled bool        `json:"last_cancelled"`
}

// Service builds refresh batches from stored items, runs them through the
// orchestrator and folds the results back into the store. It keeps a status
// snapshot for the API and optionally triggers periodic refreshes.
type Service struct {
	orchestrator *Orchestrator
	store        Store

	mu     sync.Mutex
	status Status

	stopCh    chan struct{}
	stopOnce  sync.Once
	isTicking bool
}

// NewService creates a refresh service
func NewService(orchestrator *Orchestrator, store Store) *Service {
	return &Service{
		orchestrator: orchestrator,
		store:        store,
		status:       Status{State: "idle"},
		stopCh:       make(chan struct{}),
	}
}

// Refresh starts a refresh batch for every item with a marketplace link.
// profileID 0 selects items across all profiles. It returns
// ErrAlreadyRunning when a batch is already in flight. A selection with no
// marketplace links runs as an empty batch, completing immediately with
// Finished(false) and zero progress.
func (s *Service) Refresh(ctx context.Context, profileID int64) error {
	var (
		items []*model.Item
		err   error
	)
	if profileID == 0 {
		items, err = s.store.GetAllItems()
	} else {
		items, err = s.store.GetItemsByProfile(profileID)
	}
	if err != nil {
		return err
	}

	tasks := make([]Task, 0, len(items))
	for _, item := range items {
		if !scraper.IsMarketplaceURL(item.Link) {
			continue
		}
		tasks = append(tasks, Task{
			ItemID:   item.ID,
			Category: item.Category,
			URL:      item.Link,
			Name:     item.Name,
		})
	}

	if !s.orchestrator.Start(ctx, tasks, s) {
		return ErrAlreadyRunning
	}
	return nil
}

// Cancel requests cancellation of the running batch
func (s *Service) Cancel() {
	s.orchestrator.Cancel()
}

// Status returns a snapshot of the current or most recent batch
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.status
	switch s.orchestrator.State() {
	case StateRunning:
		snapshot.State = "running"
	case StateDraining:
		snapshot.State = "draining"
	default:
		snapshot.State = "idle"
	}
	snapshot.Errors = append([]ItemError(nil), s.status.Errors...)
	return snapshot
}

// ResetHistory clears an item's price ledger, reseeding it from the current
// price when one is set
func (s *Service) ResetHistory(itemID string) error {
	return s.store.ResetHistory(itemID, time.Now())
}

// Started implements Listener
func (s *Service) Started(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{State: "running", Total: total}
}

// ItemDone implements Listener: the scraped price is folded into the item's
// price ledger and the discovered image URL persisted. The image bytes are
// already on disk in the cache; nothing further is stored here.
func (s *Service) ItemDone(itemID, category string, price *int, imageURL string, image []byte) {
	if price != nil {
		if err := s.store.RecordPrice(itemID, *price, time.Now()); err != nil {
			log.Printf("[Refresh] Failed to record price for item %s: %v", itemID, err)
		}
	}
	if imageURL != "" {
		if err := s.store.SetImageURL(itemID, imageURL); err != nil {
			log.Printf("[Refresh] Failed to store image URL for item %s: %v", itemID, err)
		}
	}

	s.mu.Lock()
	s.status.Succeeded++
	s.mu.Unlock()
}

// ItemFailed implements Listener
func (s *Service) ItemFailed(name, reason string) {
	log.Printf("[Refresh] Item %q failed: %s", name, reason)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Failed++
	s.status.Errors = append(s.status.Errors, ItemError{Name: name, Reason: reason})
}

// Progress implements Listener
func (s *Service) Progress(completed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Completed = completed
}

// Finished implements Listener
func (s *Service) Finished(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastFinished = time.Now()
	s.status.LastCancelled = cancelled
}

// StartAutoRefresh runs a refresh across all profiles at the given interval
// until StopAutoRefresh is called. A cycle that overlaps a still-running
// batch is skipped.
func (s *Service) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 || s.isTicking {
		return
	}
	s.isTicking = true
	log.Printf("[Refresh] Auto-refresh enabled with interval %v", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Refresh(context.Background(), 0); err != nil {
					log.Printf("[Refresh] Scheduled refresh skipped: %v", err)
				}
			case <-s.stopCh:
				log.Println("[Refresh] Auto-refresh stopped")
				return
			}
		}
	}()
}

// StopAutoRefresh stops the periodic refresh ticker (idempotent)
func (s *Service) StopAutoRefresh() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
