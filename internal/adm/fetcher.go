package adm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// Fetcher is C3: it builds the upstream partner query from an AudienceKey
// and issues the one bounded GET, or substitutes a canned response when
// Settings.TestMode says to.
type Fetcher struct {
	settings  Settings
	client    *http.Client
	startedAt time.Time
}

// NewFetcher constructs a Fetcher. startedAt marks process start and is
// compared against the timeout window to distinguish a cold-start
// LoadError from a steady-state ServerError.
func NewFetcher(settings Settings, startedAt time.Time) *Fetcher {
	return &Fetcher{
		settings:  settings,
		client:    &http.Client{Timeout: settings.Timeout},
		startedAt: startedAt,
	}
}

// Fetch resolves one upstream call for key, returning the raw tile list or
// one of the §7 FetchError kinds.
func (f *Fetcher) Fetch(ctx context.Context, key tiles.AudienceKey, fakeResponseHeader string) ([]tiles.RawTile, error) {
	switch f.settings.TestMode {
	case TestModeTimeout:
		return nil, loadError()
	case TestModeFakeResponse:
		return f.fakeResponse(fakeResponseHeader)
	default:
		return f.fetchLive(ctx, key)
	}
}

func (f *Fetcher) buildURL(key tiles.AudienceKey) string {
	q := url.Values{}
	q.Set("partner", f.settings.PartnerID)
	q.Set("sub1", f.settings.Sub1)
	q.Set("sub2", "newtab")

	country := key.CountryCode
	if country == "" {
		country = f.settings.FallbackCountry
	}
	q.Set("country-code", country)

	if key.HasRegion {
		q.Set("region-code", key.RegionCode)
	} else {
		q.Set("region-code", "")
	}

	if f.settings.ExcludesDMA(key.DMACode, key.HasDMA) {
		q.Set("dma-code", "")
	} else {
		q.Set("dma-code", strconv.Itoa(key.DMACode))
	}

	q.Set("form-factor", string(key.FormFactor))
	q.Set("os-family", string(key.OSFamily))
	q.Set("v", "1.0")
	q.Set("out", "json")
	q.Set("results", strconv.Itoa(f.settings.QueryTiles))

	return f.settings.Endpoint + "?" + q.Encode()
}

func (f *Fetcher) fetchLive(ctx context.Context, key tiles.AudienceKey) ([]tiles.RawTile, error) {
	adURL := f.buildURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, adURL, nil)
	if err != nil {
		return nil, serverError(err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// During the cold-start window we're probably still filling the
		// single-flight queue and swamping the partner; treat a timeout
		// there as a softer LoadError rather than a hard ServerError.
		if isTimeout(err) && time.Since(f.startedAt) <= f.settings.Timeout {
			return nil, loadError()
		}
		return nil, serverError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, serverError("unexpected status " + strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, badAdmResponse(err.Error())
	}

	var parsed tiles.AdmTileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, badAdmResponse(err.Error())
	}
	return parsed.Tiles, nil
}

var testFileNameFilter = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// fakeResponse substitutes a JSON fixture named by header (or "DEFAULT" if
// empty), sanitizing the name to alphanumerics and underscores before it
// ever reaches the filesystem.
func (f *Fetcher) fakeResponse(header string) ([]tiles.RawTile, error) {
	name := header
	if name == "" {
		name = DefaultEntryName
	}
	name = testFileNameFilter.ReplaceAllString(name, "")
	if name == "" {
		return nil, badAdmResponse("invalid test response file specified")
	}

	path := filepath.Join(f.settings.TestFilePath, strings.ToLower(name)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, badAdmResponse("invalid or missing test file " + path)
	}

	var parsed tiles.AdmTileResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, badAdmResponse(err.Error())
	}
	return parsed.Tiles, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
