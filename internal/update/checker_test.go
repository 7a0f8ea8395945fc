package update

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionNewer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"1.2.1", "1.2.0", true},
		{"1.3.0", "1.2.9", true},
		{"2.0.0", "1.9.9", true},
		{"1.2.0", "1.2.0", false},
		{"1.2.0", "1.2.1", false},
		{"1.2", "1.2.0", false},
		{"1.2.0.1", "1.2.0", true},
		{"1.10.0", "1.9.0", true},
		{"abc", "1.2.0", false},
		{"1.2.0", "abc", false},
		{"", "1.2.0", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, versionNewer(tt.a, tt.b), "versionNewer(%q, %q)", tt.a, tt.b)
	}
}

func newTestChecker(url, version string) *Checker {
	return &Checker{
		client:  &http.Client{Timeout: 2 * time.Second},
		apiURL:  url,
		version: version,
	}
}

func TestCheckReportsNewerRelease(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.3.0","name":"v1.3.0","html_url":"https://github.com/zqily/pcplanner/releases/tag/v1.3.0","body":"fixes"}`))
	}))
	defer srv.Close()

	info, newer, err := newTestChecker(srv.URL, "v1.2.0").Check()
	require.NoError(t, err)
	assert.True(t, newer)
	assert.Equal(t, "v1.3.0", info.TagName)
	assert.Equal(t, "fixes", info.Body)
}

func TestCheckCurrentVersionIsNotNewer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tag_name":"v1.2.0"}`))
	}))
	defer srv.Close()

	_, newer, err := newTestChecker(srv.URL, "v1.2.0").Check()
	require.NoError(t, err)
	assert.False(t, newer)
}

func TestCheckNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, _, err := newTestChecker(srv.URL, "v1.2.0").Check()
	require.Error(t, err)
}

func TestCheckMalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, _, err := newTestChecker(srv.URL, "v1.2.0").Check()
	require.Error(t, err)
}
