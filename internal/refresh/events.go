// Package refresh runs batches of product scrape tasks over a bounded
// worker pool and applies the results to the item store.
package refresh

// Task is one unit of scrape work
type Task struct {
	ItemID   string
	Category string
	URL      string
	Name     string
}

// Listener receives batch lifecycle events. Events are delivered from the
// orchestrator's own goroutine, not the caller's; implementations must be
// safe to call concurrently with the caller's other work. ItemDone and
// ItemFailed arrive in completion order, which is non-deterministic across
// runs. Progress is strictly increasing, one call per task terminal
// outcome, and is always delivered after that task's ItemDone/ItemFailed.
type Listener interface {
	// Started signals the beginning of a batch of total tasks
	Started(total int)

	// ItemDone delivers a per-item result. price is nil when no price was
	// discovered; imageURL is empty and image nil when no image was found.
	// At least one of price/imageURL is always present.
	ItemDone(itemID, category string, price *int, imageURL string, image []byte)

	// ItemFailed reports a task that produced neither price nor image
	ItemFailed(name, reason string)

	// Progress reports the number of tasks that have reached a terminal
	// outcome so far
	Progress(completed int)

	// Finished signals the end of the batch. cancelled is true when the
	// batch was cut short by a cancel request.
	Finished(cancelled bool)
}
