package adm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// DefaultEntryName is the distinguished filter entry consulted whenever a
// named entry leaves one of its host lists (or its position) empty.
const DefaultEntryName = "DEFAULT"

// FilterEntry is the per-advertiser allowlist and policy override, §3's
// Filter Entry. Lists are exact hostnames; no suffix or wildcard matching.
type FilterEntry struct {
	AdvertiserHosts []string `json:"advertiser_hosts"`
	ClickHosts      []string `json:"click_hosts"`
	ImpressionHosts []string `json:"impression_hosts"`
	Position        *uint8   `json:"position,omitempty"`
	IncludeRegions  []string `json:"include_regions"`
}

// Ruleset is the immutable (per-generation) map from lowercased advertiser
// name to FilterEntry, installed once at startup and read-mostly for the
// life of the process. It lives behind an atomic.Pointer rather than a
// plain map so a future hot-reload can swap generations without readers
// ever observing a half-built map or needing to change their call sites.
type Ruleset struct {
	current atomic.Pointer[rulesetGeneration]
}

type rulesetGeneration struct {
	entries           map[string]FilterEntry
	allIncludeRegions map[string]struct{}
}

// NewRuleset constructs an empty, installed Ruleset. Load must be called
// before Lookup returns anything useful.
func NewRuleset() *Ruleset {
	r := &Ruleset{}
	r.current.Store(&rulesetGeneration{
		entries:           map[string]FilterEntry{},
		allIncludeRegions: map[string]struct{}{},
	})
	return r
}

// Load parses a JSON document of the form {"advertiser_name": FilterEntry,
// ..., "DEFAULT": FilterEntry}, normalizes keys to lowercase, and installs
// the result as the new generation. Safe to call concurrently with Lookup;
// readers always see either the old or the new generation, never a partial
// one.
func (r *Ruleset) Load(data []byte) error {
	var raw map[string]FilterEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse filter ruleset: %w", err)
	}

	entries := make(map[string]FilterEntry, len(raw))
	regions := map[string]struct{}{}
	for name, entry := range raw {
		key := strings.ToLower(name)
		entries[key] = entry
		for _, region := range entry.IncludeRegions {
			regions[region] = struct{}{}
		}
	}

	r.current.Store(&rulesetGeneration{
		entries:           entries,
		allIncludeRegions: regions,
	})
	return nil
}

// Lookup returns the normalized entry for advertiserName, or false if the
// advertiser is unknown. The lookup is case-insensitive on the candidate
// name; the stored key is always already-lowercased.
func (r *Ruleset) Lookup(advertiserName string) (FilterEntry, bool) {
	gen := r.current.Load()
	entry, ok := gen.entries[strings.ToLower(advertiserName)]
	return entry, ok
}

// Default returns the DEFAULT entry, or the zero-value entry if one was
// never configured.
func (r *Ruleset) Default() FilterEntry {
	entry, _ := r.Lookup(DefaultEntryName)
	return entry
}

// IncludesCountry reports whether countryCode appears in the union of
// every entry's include_regions. Requests for a country outside this union
// are guaranteed to come back empty and should short-circuit before ever
// touching the audience cache (§4.6 Early region gate).
func (r *Ruleset) IncludesCountry(countryCode string) bool {
	gen := r.current.Load()
	_, ok := gen.allIncludeRegions[countryCode]
	return ok
}

// effectiveFields bundles the per-call field inheritance (§4.2 step 2):
// computed once per validation call rather than re-derived per URL check,
// per the Filter fallback design note in §9.
type effectiveFields struct {
	advertiserHosts []string
	clickHosts      []string
	impressionHosts []string
	position        *uint8
}

func resolveEffectiveFields(entry, def FilterEntry) effectiveFields {
	return effectiveFields{
		advertiserHosts: orFallback(entry.AdvertiserHosts, def.AdvertiserHosts),
		clickHosts:      orFallback(entry.ClickHosts, def.ClickHosts),
		impressionHosts: orFallback(entry.ImpressionHosts, def.ImpressionHosts),
		position:        orPosition(entry.Position, def.Position),
	}
}

func orFallback(primary, fallback []string) []string {
	if len(primary) == 0 {
		return fallback
	}
	return primary
}

func orPosition(primary, fallback *uint8) *uint8 {
	if primary != nil {
		return primary
	}
	return fallback
}

func containsHost(hosts []string, host string) bool {
	for _, h := range hosts {
		if h == host {
			return true
		}
	}
	return false
}
