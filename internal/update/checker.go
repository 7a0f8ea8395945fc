// Package update checks GitHub releases for a newer application version.
package update

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const releaseAPIURL = "https://api.github.com/repos/zqily/pcplanner/releases/latest"

// AppVersion is the current application version
const AppVersion = "v1.2.0"

// ReleaseInfo describes the latest published release
type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
}

// Checker polls the release feed
type Checker struct {
	client  *http.Client
	apiURL  string
	version string
}

// NewChecker creates a release checker
func NewChecker() *Checker {
	return &Checker{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  releaseAPIURL,
		version: AppVersion,
	}
}

// Check fetches the latest release and reports whether it is newer than the
// running version. Failures are soft: the caller should treat an error as
// "no update information", never as fatal.
func (c *Checker) Check() (*ReleaseInfo, bool, error) {
	resp, err := c.client.Get(c.apiURL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, false, fmt.Errorf("failed to decode release info: %w", err)
	}

	latest := strings.TrimPrefix(info.TagName, "v")
	current := strings.TrimPrefix(c.version, "v")

	return &info, versionNewer(latest, current), nil
}

// versionNewer reports whether dotted version a is newer than b.
// Malformed versions compare as not-newer.
func versionNewer(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		var an, bn int
		var err error
		if i < len(as) {
			if an, err = strconv.Atoi(as[i]); err != nil {
				return false
			}
		}
		if i < len(bs) {
			if bn, err = strconv.Atoi(bs[i]); err != nil {
				return false
			}
		}
		if an != bn {
			return an > bn
		}
	}
	return false
}
