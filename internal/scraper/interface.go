package scraper

import "context"

// Result holds the outcome of scraping one product page.
// Price is nil when no price could be discovered; a real zero price on the
// page still yields a non-nil 0. ImageURL is empty when no image was found.
type Result struct {
	Price    *int
	ImageURL string
}

// Scraper defines the product page scraping interface
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
}
