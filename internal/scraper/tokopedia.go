package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const marketplaceDomain = "tokopedia.com"

// Fallback selectors for when the JSON-LD metadata is missing or broken.
// The test IDs are the most stable hooks the page exposes; the css class
// container is a last resort and breaks whenever the site reskins.
const (
	priceSelector          = `div[data-testid="lblPDPDetailProductPrice"]`
	mainImageSelector      = `img[data-testid="PDPMainImage"]`
	fallbackImageSelector  = `div.css-1nchjne img`
	productDescriptorQuery = `script[type="application/ld+json"]`
)

var digitsRe = regexp.MustCompile(`\d+`)

// TokopediaScraper scrapes Tokopedia product pages for price and image
type TokopediaScraper struct {
	client *Client
}

// NewTokopediaScraper creates a new Tokopedia product page scraper
func NewTokopediaScraper(client *Client) *TokopediaScraper {
	return &TokopediaScraper{client: client}
}

// Scrape fetches a product page and extracts its price and main image URL.
// It prefers the embedded JSON-LD product descriptor and falls back to HTML
// elements when that is missing or unparseable. Partial results are valid:
// a Result may carry a price without an image or vice versa. When neither
// tier yields anything, ErrNoProductData is returned.
func (s *TokopediaScraper) Scrape(ctx context.Context, pageURL string) (*Result, error) {
	if !IsMarketplaceURL(pageURL) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, pageURL)
	}

	body, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	result := extractResult(doc)
	if result.Price == nil && result.ImageURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoProductData, pageURL)
	}

	return result, nil
}

// extractResult runs both extraction tiers over a parsed page
func extractResult(doc *goquery.Document) *Result {
	result := &Result{}

	// Tier 1: JSON-LD product descriptor
	doc.Find(productDescriptorQuery).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		product, ok := findProductDescriptor(sel.Text())
		if !ok {
			return true
		}
		if price, ok := extractOfferPrice(product); ok {
			result.Price = &price
		}
		if img, ok := extractFirstImage(product); ok {
			result.ImageURL = img
		}
		return false
	})

	// Tier 2: HTML fallback for whatever tier 1 missed
	if result.Price == nil {
		text := doc.Find(priceSelector).First().Text()
		if price, ok := cleanPrice(text); ok {
			result.Price = &price
		}
	}
	if result.ImageURL == "" {
		if src, ok := doc.Find(mainImageSelector).First().Attr("src"); ok && src != "" {
			result.ImageURL = src
		} else if src, ok := doc.Find(fallbackImageSelector).First().Attr("src"); ok && src != "" {
			result.ImageURL = src
		}
	}

	return result
}

// IsMarketplaceURL reports whether the URL's host belongs to the marketplace
func IsMarketplaceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == marketplaceDomain || strings.HasSuffix(host, "."+marketplaceDomain)
}

// findProductDescriptor decodes a JSON-LD block and returns the entry whose
// @type marks it as a Product. Some pages concatenate several JSON objects
// back-to-back without a separating comma; the blocks are joined into a
// well-formed list before decoding. Best effort: a block that still fails
// to decode is skipped, the caller falls through to the HTML tier.
func findProductDescriptor(raw string) (map[string]any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	joined := "[" + strings.ReplaceAll(raw, "}{", "},{") + "]"

	var entries []map[string]any
	if err := json.Unmarshal([]byte(joined), &entries); err != nil {
		log.Printf("[Scraper] Could not parse JSON-LD block: %v", err)
		return nil, false
	}

	for _, entry := range entries {
		if t, _ := entry["@type"].(string); t == "Product" {
			return entry, true
		}
	}
	return nil, false
}

// extractOfferPrice reads the offer price from a product descriptor.
// The offers field is sometimes a single object and sometimes a list.
func extractOfferPrice(product map[string]any) (int, bool) {
	switch offers := product["offers"].(type) {
	case []any:
		if len(offers) == 0 {
			return 0, false
		}
		first, ok := offers[0].(map[string]any)
		if !ok {
			return 0, false
		}
		return cleanPrice(first["price"])
	case map[string]any:
		return cleanPrice(offers["price"])
	}
	return 0, false
}

// extractFirstImage reads the first image reference from a product
// descriptor, accepting either a single string or a list of strings.
func extractFirstImage(product map[string]any) (string, bool) {
	switch images := product["image"].(type) {
	case string:
		if images != "" {
			return images, true
		}
	case []any:
		if len(images) > 0 {
			if img, ok := images[0].(string); ok && img != "" {
				return img, true
			}
		}
	}
	return "", false
}

// cleanPrice strips everything but digits from a scalar value and parses the
// remaining digits as an integer. Currency prefixes and thousands separators
// are discarded alike ("Rp1.234.567" -> 1234567). A value with no digits
// reports not-found rather than zero, so a missing price is never confused
// with a genuinely free item.
func cleanPrice(v any) (int, bool) {
	var text string
	switch val := v.(type) {
	case nil:
		return 0, false
	case string:
		text = val
	case float64:
		// JSON numbers decode as float64
		text = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		text = val.String()
	case int:
		text = strconv.Itoa(val)
	default:
		text = fmt.Sprintf("%v", val)
	}

	digits := strings.Join(digitsRe.FindAllString(text, -1), "")
	if digits == "" {
		return 0, false
	}

	price, err := strconv.Atoi(digits)
	if err != nil {
		// Absurdly long digit runs overflow; treat as unparseable
		return 0, false
	}
	return price, true
}
