package adm

import (
	"net/url"
	"sort"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// requiredClickParams and allClickParams are process-wide constants,
// computed once rather than rebuilt per tile (§9 Global tables).
var requiredClickParams = []string{"ci", "ctag", "key", "version"}

var allClickParams = func() map[string]struct{} {
	m := map[string]struct{}{"click-status": {}}
	for _, k := range requiredClickParams {
		m[k] = struct{}{}
	}
	return m
}()

// Reporter is the narrow telemetry-sink capability C2 depends on. It is
// injected rather than reached for globally, per the Dynamic dispatch
// avoidance note in §9.
type Reporter interface {
	ReportRejection(r *Rejection)
}

// Validator is C2: it applies a Ruleset to one raw tile at a time.
type Validator struct {
	ruleset  *Ruleset
	reporter Reporter
}

// NewValidator constructs a Validator bound to ruleset and reporter.
func NewValidator(ruleset *Ruleset, reporter Reporter) *Validator {
	return &Validator{ruleset: ruleset, reporter: reporter}
}

// Validate applies the §4.2 algorithm in order; the first failing check
// short-circuits the rest. A false result (with a zero-value tile) means
// the tile was rejected (and already reported); the caller should simply
// drop it.
func (v *Validator) Validate(raw tiles.RawTile) (tiles.SanitizedTile, bool) {
	entry, ok := v.ruleset.Lookup(raw.Name)
	if !ok {
		v.reject(&Rejection{
			Kind:   RejectUnexpectedAdvertiser,
			Tile:   raw.Name,
			Reason: "no ruleset entry for advertiser",
		})
		return tiles.SanitizedTile{}, false
	}

	fields := resolveEffectiveFields(entry, v.ruleset.Default())

	if err := v.checkAdvertiser(raw, fields); err != nil {
		v.reject(err)
		return tiles.SanitizedTile{}, false
	}
	if err := v.checkClick(raw, fields); err != nil {
		v.reject(err)
		return tiles.SanitizedTile{}, false
	}
	if err := v.checkImpression(raw, fields); err != nil {
		v.reject(err)
		return tiles.SanitizedTile{}, false
	}

	return tiles.SanitizedTile{
		ID:                raw.ID,
		Name:              raw.Name,
		URL:               raw.AdvertiserURL,
		ClickURL:          raw.ClickURL,
		ImageURL:          raw.ImageURL,
		ImageSize:         nil,
		ImpressionURL:     raw.ImpressionURL,
		EffectivePosition: fields.position,
	}, true
}

// checkAdvertiser validates the advertiser_url: syntactically valid
// absolute URL, host present, host in the effective advertiser_hosts.
func (v *Validator) checkAdvertiser(raw tiles.RawTile, fields effectiveFields) *Rejection {
	const species = SpeciesAdvertiser
	parsed, err := url.Parse(raw.AdvertiserURL)
	if err != nil || !parsed.IsAbs() {
		return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.AdvertiserURL, Reason: "unparseable or non-absolute URL"}
	}
	host := parsed.Host
	if host == "" {
		return &Rejection{Kind: RejectMissingHost, Species: species, Tile: raw.Name, URL: raw.AdvertiserURL, Reason: "missing host"}
	}
	if !containsHost(fields.advertiserHosts, host) {
		return &Rejection{Kind: RejectUnexpectedHost, Species: species, Tile: raw.Name, URL: raw.AdvertiserURL, Reason: "host not in allowlist"}
	}
	return nil
}

// checkClick validates the click_url: allowlisted host, required query
// parameter keys all present, no keys outside required ∪ {click-status}.
func (v *Validator) checkClick(raw tiles.RawTile, fields effectiveFields) *Rejection {
	const species = SpeciesClick
	parsed, err := url.Parse(raw.ClickURL)
	if err != nil || !parsed.IsAbs() {
		return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.ClickURL, Reason: "unparseable or non-absolute URL"}
	}
	host := parsed.Host
	if host == "" {
		return &Rejection{Kind: RejectMissingHost, Species: species, Tile: raw.Name, URL: raw.ClickURL, Reason: "missing host"}
	}
	if !containsHost(fields.clickHosts, host) {
		return &Rejection{Kind: RejectUnexpectedHost, Species: species, Tile: raw.Name, URL: raw.ClickURL, Reason: "host not in allowlist"}
	}

	queryKeys := map[string]struct{}{}
	for key := range parsed.Query() {
		queryKeys[key] = struct{}{}
	}

	for _, required := range requiredClickParams {
		if _, present := queryKeys[required]; !present {
			return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.ClickURL, Reason: "missing required query param", Param: required}
		}
	}
	for key := range queryKeys {
		if _, allowed := allClickParams[key]; !allowed {
			return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.ClickURL, Reason: "invalid query param", Param: key}
		}
	}
	return nil
}

// checkImpression validates the impression_url: allowlisted host, and the
// sorted query-key list must be exactly ["id"] — duplicate "id" params
// reject, since url.Values preserves every occurrence.
func (v *Validator) checkImpression(raw tiles.RawTile, fields effectiveFields) *Rejection {
	const species = SpeciesImpression
	parsed, err := url.Parse(raw.ImpressionURL)
	if err != nil || !parsed.IsAbs() {
		return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.ImpressionURL, Reason: "unparseable or non-absolute URL"}
	}
	host := parsed.Host
	if host == "" {
		return &Rejection{Kind: RejectMissingHost, Species: species, Tile: raw.Name, URL: raw.ImpressionURL, Reason: "missing host"}
	}

	var keys []string
	values := parsed.Query()
	for key, vs := range values {
		for range vs {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if len(keys) != 1 || keys[0] != "id" {
		return &Rejection{Kind: RejectInvalidHost, Species: species, Tile: raw.Name, URL: raw.ImpressionURL, Reason: "invalid query param", Param: "id"}
	}

	if !containsHost(fields.impressionHosts, host) {
		return &Rejection{Kind: RejectUnexpectedHost, Species: species, Tile: raw.Name, URL: raw.ImpressionURL, Reason: "host not in allowlist"}
	}
	return nil
}

func (v *Validator) reject(r *Rejection) {
	if v.reporter != nil {
		v.reporter.ReportRejection(r)
	}
}
