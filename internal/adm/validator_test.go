package adm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

type recordingReporter struct {
	rejections []*Rejection
}

func (r *recordingReporter) ReportRejection(rej *Rejection) {
	r.rejections = append(r.rejections, rej)
}

func newTestRuleset(t *testing.T) *Ruleset {
	t.Helper()
	rs := NewRuleset()
	err := rs.Load([]byte(`{
		"DEFAULT": {
			"advertiser_hosts": ["example.com"],
			"click_hosts": ["click.example.com"],
			"impression_hosts": ["imp.example.com"],
			"include_regions": ["US"]
		},
		"Acme": {
			"advertiser_hosts": ["acme.test"],
			"click_hosts": [],
			"impression_hosts": [],
			"position": 1,
			"include_regions": ["US", "CA"]
		}
	}`))
	require.NoError(t, err)
	return rs
}

func validTile(name string) tiles.RawTile {
	return tiles.RawTile{
		ID:            1,
		Name:          name,
		AdvertiserURL: "https://acme.test/landing",
		ClickURL:      "https://click.example.com/go?ci=1&ctag=2&key=3&version=4",
		ImageURL:      "https://img.example.com/a.png",
		ImpressionURL: "https://imp.example.com/beacon?id=42",
	}
}

func TestValidator_AcceptsValidTile(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	sanitized, ok := v.Validate(validTile("Acme"))
	require.True(t, ok)
	assert.Empty(t, reporter.rejections)
	assert.Equal(t, uint64(1), sanitized.ID)
	require.NotNil(t, sanitized.EffectivePosition)
	assert.Equal(t, uint8(1), *sanitized.EffectivePosition)
}

func TestValidator_UnknownAdvertiserRejected(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	_, ok := v.Validate(validTile("NotConfigured"))
	require.False(t, ok)
	require.Len(t, reporter.rejections, 1)
	assert.Equal(t, RejectUnexpectedAdvertiser, reporter.rejections[0].Kind)
}

func TestValidator_InheritsDefaultClickAndImpressionHosts(t *testing.T) {
	rs := newTestRuleset(t)
	v := NewValidator(rs, &recordingReporter{})

	tile := validTile("Acme")
	_, ok := v.Validate(tile)
	assert.True(t, ok, "Acme's empty click/impression host lists should fall through to DEFAULT")
}

func TestValidator_RejectsAdvertiserHostNotAllowlisted(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	tile := validTile("Acme")
	tile.AdvertiserURL = "https://evil.test/landing"
	_, ok := v.Validate(tile)
	require.False(t, ok)
	require.Len(t, reporter.rejections, 1)
	assert.Equal(t, RejectUnexpectedHost, reporter.rejections[0].Kind)
	assert.Equal(t, SpeciesAdvertiser, reporter.rejections[0].Species)
}

func TestValidator_RejectsClickURLMissingRequiredParam(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	tile := validTile("Acme")
	tile.ClickURL = "https://click.example.com/go?ci=1&ctag=2&key=3"
	_, ok := v.Validate(tile)
	require.False(t, ok)
	require.Len(t, reporter.rejections, 1)
	assert.Equal(t, "version", reporter.rejections[0].Param)
}

func TestValidator_RejectsClickURLWithExtraParam(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	tile := validTile("Acme")
	tile.ClickURL = "https://click.example.com/go?ci=1&ctag=2&key=3&version=4&extra=1"
	_, ok := v.Validate(tile)
	require.False(t, ok)
	assert.Equal(t, "extra", reporter.rejections[0].Param)
}

func TestValidator_AllowsOptionalClickStatusParam(t *testing.T) {
	rs := newTestRuleset(t)
	v := NewValidator(rs, &recordingReporter{})

	tile := validTile("Acme")
	tile.ClickURL = "https://click.example.com/go?ci=1&ctag=2&key=3&version=4&click-status=1"
	_, ok := v.Validate(tile)
	assert.True(t, ok)
}

func TestValidator_RejectsImpressionURLWithWrongQueryKeys(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	tile := validTile("Acme")
	tile.ImpressionURL = "https://imp.example.com/beacon?id=42&extra=1"
	_, ok := v.Validate(tile)
	require.False(t, ok)
	assert.Equal(t, SpeciesImpression, reporter.rejections[0].Species)
}

func TestValidator_RejectsImpressionURLWithDuplicateID(t *testing.T) {
	rs := newTestRuleset(t)
	reporter := &recordingReporter{}
	v := NewValidator(rs, reporter)

	tile := validTile("Acme")
	tile.ImpressionURL = "https://imp.example.com/beacon?id=42&id=43"
	_, ok := v.Validate(tile)
	require.False(t, ok)
	assert.Equal(t, RejectInvalidHost, reporter.rejections[0].Kind)
}
