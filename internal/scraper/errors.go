package scraper

import "errors"

var (
	// ErrInvalidSource is returned for URLs outside the marketplace domain.
	// No network request is made.
	ErrInvalidSource = errors.New("not a tokopedia link")

	// ErrNotFound is returned for 404/410 responses. Never retried.
	ErrNotFound = errors.New("product page not found")

	// ErrNoProductData is returned when neither extraction tier produced
	// a price or an image URL.
	ErrNoProductData = errors.New("no price or image found on page")
)
