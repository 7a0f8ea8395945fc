package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCleanPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    any
		want  int
		found bool
	}{
		{"currency prefix and dots", "Rp1.234.567", 1234567, true},
		{"plain digits", "250000", 250000, true},
		{"number value", float64(1999000), 1999000, true},
		{"fractional number keeps all digits", float64(1234567.89), 123456789, true},
		{"zero is a real price", "0", 0, true},
		{"no digits", "no price here", 0, false},
		{"empty string", "", 0, false},
		{"nil", nil, 0, false},
		{"commas and spaces", "Rp 2,500,000", 2500000, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := cleanPrice(tt.in)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsMarketplaceURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsMarketplaceURL("https://www.tokopedia.com/somestore/some-product"))
	assert.True(t, IsMarketplaceURL("https://tokopedia.com/x"))
	assert.False(t, IsMarketplaceURL("https://example.com/tokopedia.com"))
	assert.False(t, IsMarketplaceURL("https://nottokopedia.com/item"))
	assert.False(t, IsMarketplaceURL("https://evil.com/?u=tokopedia.com"))
	assert.False(t, IsMarketplaceURL(""))
}

func TestExtractResultJSONLD(t *testing.T) {
	t.Parallel()

	html := `<html><head><script type="application/ld+json">
	{"@type":"Product","offers":[{"price":"1500000"}],"image":["https://img.example/main.jpg","https://img.example/alt.jpg"]}
	</script></head><body></body></html>`

	result := extractResult(parseDoc(t, html))
	require.NotNil(t, result.Price)
	assert.Equal(t, 1500000, *result.Price)
	assert.Equal(t, "https://img.example/main.jpg", result.ImageURL)
}

func TestExtractResultConcatenatedJSONLD(t *testing.T) {
	t.Parallel()

	// Some pages emit several JSON objects back-to-back with no separator
	html := `<html><head><script type="application/ld+json">` +
		`{"@type":"BreadcrumbList","itemListElement":[]}` +
		`{"@type":"Product","offers":{"price":2750000},"image":"https://img.example/p.jpg"}` +
		`</script></head><body></body></html>`

	result := extractResult(parseDoc(t, html))
	require.NotNil(t, result.Price)
	assert.Equal(t, 2750000, *result.Price)
	assert.Equal(t, "https://img.example/p.jpg", result.ImageURL)
}

func TestExtractResultFallbackElements(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div data-testid="lblPDPDetailProductPrice">Rp3.499.000</div>
	<img data-testid="PDPMainImage" src="https://img.example/fallback.jpg"/>
	</body></html>`

	result := extractResult(parseDoc(t, html))
	require.NotNil(t, result.Price)
	assert.Equal(t, 3499000, *result.Price)
	assert.Equal(t, "https://img.example/fallback.jpg", result.ImageURL)
}

func TestExtractResultSecondaryImageContainer(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div data-testid="lblPDPDetailProductPrice">Rp100.000</div>
	<div class="css-1nchjne"><img src="https://img.example/secondary.jpg"/></div>
	</body></html>`

	result := extractResult(parseDoc(t, html))
	assert.Equal(t, "https://img.example/secondary.jpg", result.ImageURL)
}

func TestExtractResultBrokenJSONLDFallsThrough(t *testing.T) {
	t.Parallel()

	html := `<html><head><script type="application/ld+json">{not json at all</script></head>
	<body><div data-testid="lblPDPDetailProductPrice">Rp42.000</div></body></html>`

	result := extractResult(parseDoc(t, html))
	require.NotNil(t, result.Price)
	assert.Equal(t, 42000, *result.Price)
}

func TestExtractResultPartial(t *testing.T) {
	t.Parallel()

	// Image only; a partial result is valid and propagated as-is
	html := `<html><body><img data-testid="PDPMainImage" src="https://img.example/only.jpg"/></body></html>`

	result := extractResult(parseDoc(t, html))
	assert.Nil(t, result.Price)
	assert.Equal(t, "https://img.example/only.jpg", result.ImageURL)
}

func TestExtractResultNothing(t *testing.T) {
	t.Parallel()

	result := extractResult(parseDoc(t, `<html><body><p>gone</p></body></html>`))
	assert.Nil(t, result.Price)
	assert.Empty(t, result.ImageURL)
}

func TestFindProductDescriptorPicksProductEntry(t *testing.T) {
	t.Parallel()

	raw := `{"@type":"Organization","name":"shop"}{"@type":"Product","name":"gpu"}`
	product, ok := findProductDescriptor(raw)
	require.True(t, ok)
	assert.Equal(t, "gpu", product["name"])

	_, ok = findProductDescriptor(`{"@type":"Organization"}`)
	assert.False(t, ok)

	_, ok = findProductDescriptor("")
	assert.False(t, ok)
}
