package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/zqily/pcplanner/internal/scraper"
)

// Orchestrator states
const (
	StateIdle int32 = iota
	StateRunning
	StateDraining // cancel requested, in-flight tasks finishing
)

// ImageFetcher provides cached image bytes for an image URL
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// Orchestrator runs one batch of scrape tasks at a time across a bounded
// worker pool. Only a single batch may run at once; Start reports whether
// the batch was accepted.
type Orchestrator struct {
	scraper   scraper.Scraper
	images    ImageFetcher
	workers   int
	state     atomic.Int32
	cancelled atomic.Bool
}

// outcome is the per-task triple flowing back from the pool
type outcome struct {
	task     Task
	price    *int
	imageURL string
	image    []byte
	err      error
}

// NewOrchestrator creates an orchestrator with the given pool size
func NewOrchestrator(s scraper.Scraper, images ImageFetcher, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		scraper: s,
		images:  images,
		workers: workers,
	}
}

// State returns the current orchestrator state
func (o *Orchestrator) State() int32 {
	return o.state.Load()
}

// IsRunning reports whether a batch is currently in flight
func (o *Orchestrator) IsRunning() bool {
	return o.state.Load() != StateIdle
}

// Start begins processing a batch. It returns false, without side effects,
// if another batch is already running. An empty batch completes immediately
// with Finished(false). All listener events are delivered asynchronously.
func (o *Orchestrator) Start(ctx context.Context, tasks []Task, listener Listener) bool {
	if !o.state.CompareAndSwap(StateIdle, StateRunning) {
		log.Println("[Refresh] Batch already running, start request ignored")
		return false
	}
	o.cancelled.Store(false)

	if len(tasks) == 0 {
		// Started(0) still fires so listeners reset any prior batch state
		go func() {
			listener.Started(0)
			listener.Finished(false)
			o.state.Store(StateIdle)
		}()
		return true
	}

	go o.run(ctx, tasks, listener)
	return true
}

// Cancel requests cooperative cancellation of the running batch. Tasks that
// have not been handed to a worker will not start; in-flight tasks run to
// completion and still emit their terminal events.
func (o *Orchestrator) Cancel() {
	if o.state.CompareAndSwap(StateRunning, StateDraining) {
		o.cancelled.Store(true)
		log.Println("[Refresh] Cancellation requested, draining in-flight tasks")
	}
}

// run drives one batch to completion
func (o *Orchestrator) run(ctx context.Context, tasks []Task, listener Listener) {
	defer o.state.Store(StateIdle)

	listener.Started(len(tasks))
	log.Printf("[Refresh] Starting batch of %d tasks with %d workers", len(tasks), o.workers)

	jobs := make(chan Task)
	results := make(chan outcome)

	var wg sync.WaitGroup
	wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go func() {
			defer wg.Done()
			for task := range jobs {
				// A task handed over concurrently with cancellation is
				// dropped before it starts; it emits no events.
				if o.cancelled.Load() {
					continue
				}
				results <- o.runTask(ctx, task)
			}
		}()
	}

	// Feed tasks until exhausted or cancelled. The jobs channel is
	// unbuffered, so a send only completes when a worker is free; checking
	// the flag before each send guarantees no queued task starts after
	// cancellation is observed.
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			if o.cancelled.Load() {
				return
			}
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Consume results in completion order. The per-item identity travels in
	// the event payload, so ordering across items carries no meaning.
	completed := 0
	for res := range results {
		if res.err != nil {
			listener.ItemFailed(res.task.Name, res.err.Error())
		} else {
			listener.ItemDone(res.task.ItemID, res.task.Category, res.price, res.imageURL, res.image)
		}
		completed++
		listener.Progress(completed)
	}

	cancelled := o.cancelled.Load()
	log.Printf("[Refresh] Batch finished: %d/%d tasks completed, cancelled=%v", completed, len(tasks), cancelled)
	listener.Finished(cancelled)
}

// runTask executes one scrape+cache task. A panic inside the task is
// converted into a failed outcome so it can never take down the batch or
// other in-flight tasks.
func (o *Orchestrator) runTask(ctx context.Context, task Task) (res outcome) {
	res = outcome{task: task}

	defer func() {
		if r := recover(); r != nil {
			res = outcome{task: task, err: fmt.Errorf("task panic: %v", r)}
		}
	}()

	scraped, err := o.scraper.Scrape(ctx, task.URL)
	if err != nil {
		res.err = err
		return res
	}

	res.price = scraped.Price
	res.imageURL = scraped.ImageURL

	if scraped.ImageURL != "" {
		image, err := o.images.Fetch(ctx, scraped.ImageURL)
		if err != nil {
			// A record without an image is still useful
			log.Printf("[Refresh] Image fetch failed for %s: %v", task.Name, err)
		} else {
			res.image = image
		}
	}

	return res
}

// ErrAlreadyRunning is reported by callers that need an error value for a
// rejected start request.
var ErrAlreadyRunning = errors.New("a refresh batch is already running")
