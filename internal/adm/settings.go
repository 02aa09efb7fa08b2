package adm

import "time"

// TestMode selects how the fetcher resolves an upstream call, mirroring
// the three modes the original service exposed for integration testing
// without hitting a live partner endpoint.
type TestMode string

const (
	// TestModeNone performs a real HTTP GET against Endpoint.
	TestModeNone TestMode = "none"
	// TestModeFakeResponse substitutes a JSON fixture named by the
	// inbound `fake-response` header.
	TestModeFakeResponse TestMode = "fake_response"
	// TestModeTimeout unconditionally returns a LoadError, for exercising
	// cold-start load-shedding behavior without waiting out a real timeout.
	TestModeTimeout TestMode = "timeout"
)

// Settings holds the upstream partner credentials and fetch-shaping
// configuration that C3 needs to build a query and bound a request. It is
// the Go analogue of the partner section of the original settings.rs.
type Settings struct {
	Endpoint   string
	PartnerID  string
	Sub1       string
	Timeout    time.Duration
	QueryTiles int // "results" query parameter
	MaxTiles   int // post-filter truncation bound

	FallbackCountry string
	ExcludedDMAs    map[int]struct{}

	TestMode     TestMode
	TestFilePath string
}

// ExcludesDMA reports whether a DMA code must be forced to absent before
// it reaches the upstream query, either because it's on the exclusion
// list or because it is the sentinel "no DMA" value of zero.
func (s Settings) ExcludesDMA(dma int, hasDMA bool) bool {
	if !hasDMA || dma == 0 {
		return true
	}
	_, excluded := s.ExcludedDMAs[dma]
	return excluded
}
