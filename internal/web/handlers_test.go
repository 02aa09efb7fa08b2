package web

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/mozilla-services/tiles-edge/internal/adm"
	"github.com/mozilla-services/tiles-edge/internal/cache"
	metricsserver "github.com/mozilla-services/tiles-edge/internal/telemetry/metrics"
	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

func newTestRequestCtx(country, placement string, headers map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/v1/tiles?country=" + country + "&placement=" + placement)
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	return ctx
}

func newTestHandler(t *testing.T, rulesetJSON string) *TileHandler {
	t.Helper()
	ruleset := adm.NewRuleset()
	require.NoError(t, ruleset.Load([]byte(rulesetJSON)))

	return &TileHandler{
		Ruleset:       ruleset,
		Validator:     adm.NewValidator(ruleset, nil),
		Locator:       NewHeaderLocator(),
		Cache:         cache.New(4),
		Metrics:       metricsserver.NewCollector(),
		TTL:           time.Minute,
		JitterPercent: 0,
		MaxTiles:      10,
	}
}

const singleRegionRuleset = `{
	"DEFAULT": {
		"advertiser_hosts": ["example.com"],
		"click_hosts": ["click.example.com"],
		"impression_hosts": ["imp.example.com"],
		"include_regions": ["US"]
	}
}`

func TestServeTiles_OutsideIncludedRegionServes204(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)
	h.Fetcher = nil // never consulted: the early gate must short-circuit first

	ctx := newTestRequestCtx("FR", "newtab", nil)
	h.ServeTiles(ctx)

	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

func TestServeTiles_OutsideIncludedRegionServes200WhenConfigured(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)
	h.Fetcher = nil
	h.ExcludedCountries200 = true

	ctx := newTestRequestCtx("FR", "newtab", nil)
	h.ServeTiles(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"tiles":[]}`, string(ctx.Response.Body()))
}

func TestServeTiles_InvalidPlacementIsBadRequest(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)

	ctx := newTestRequestCtx("US", "sidebar", nil)
	h.ServeTiles(ctx)

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

type fakeFetcherHandler struct {
	tiles []tiles.RawTile
	err   error
}

func (f *fakeFetcherHandler) Fetch(_ context.Context, _ tiles.AudienceKey, _ string) ([]tiles.RawTile, error) {
	return f.tiles, f.err
}

func TestServeTiles_PopulatesAndServesFromCacheOnSecondRequest(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)
	raw := []tiles.RawTile{{
		ID:            1,
		Name:          "DEFAULT",
		AdvertiserURL: "https://example.com/landing",
		ClickURL:      "https://click.example.com/click?ci=1&ctag=2&key=3&version=4",
		ImageURL:      "https://img.example.com/a.png",
		ImpressionURL: "https://imp.example.com/imp?id=1",
	}}
	h.Fetcher = &fakeFetcherHandler{tiles: raw}

	ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
	h.ServeTiles(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var first tiles.TileResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &first))
	require.Len(t, first.Tiles, 1)
	assert.Equal(t, uint64(1), first.Tiles[0].ID)

	h.Fetcher = &fakeFetcherHandler{err: assert.AnError} // must not be called again
	ctx2 := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
	h.ServeTiles(ctx2)

	assert.Equal(t, fasthttp.StatusOK, ctx2.Response.StatusCode())
	var second tiles.TileResponse
	require.NoError(t, json.Unmarshal(ctx2.Response.Body(), &second))
	assert.Equal(t, first.Tiles, second.Tiles)
}

func TestServeTiles_FetchErrorIsBadGateway(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)
	h.Fetcher = &fakeFetcherHandler{err: &adm.FetchError{Kind: adm.KindServerError}}

	ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
	h.ServeTiles(ctx)

	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
}

func TestServeTiles_BadAdmResponseServesEmpty(t *testing.T) {
	h := newTestHandler(t, singleRegionRuleset)
	h.Fetcher = &fakeFetcherHandler{err: &adm.FetchError{Kind: adm.KindBadAdmResponse}}

	ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
	h.ServeTiles(ctx)

	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}

// ExcludedCountries200 only softens the early region gate; every "no
// tiles" outcome reached past that gate stays a bare 204.
func TestServeTiles_PastGateOutcomesStayNoContentWhenExcludedCountries200(t *testing.T) {
	t.Run("BadAdmResponse", func(t *testing.T) {
		h := newTestHandler(t, singleRegionRuleset)
		h.ExcludedCountries200 = true
		h.Fetcher = &fakeFetcherHandler{err: &adm.FetchError{Kind: adm.KindBadAdmResponse}}

		ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
		h.ServeTiles(ctx)

		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	})

	t.Run("EmptyContent", func(t *testing.T) {
		h := newTestHandler(t, singleRegionRuleset)
		h.ExcludedCountries200 = true
		h.Fetcher = &fakeFetcherHandler{tiles: nil}

		ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
		h.ServeTiles(ctx)

		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	})

	t.Run("MissPopulating", func(t *testing.T) {
		h := newTestHandler(t, singleRegionRuleset)
		h.ExcludedCountries200 = true
		h.Fetcher = nil // never consulted: the slot is already populating

		formFactor, osFamily := ClassifyDevice("")
		key := tiles.AudienceKey{
			CountryCode: "US",
			FormFactor:  formFactor,
			OSFamily:    osFamily,
			LegacyOnly:  IsLegacy(""),
		}
		handle := h.Cache.PrepareWrite(key.String(), false)
		defer handle.Close()

		ctx := newTestRequestCtx("US", "newtab", map[string]string{"X-Geo-Country": "US"})
		h.ServeTiles(ctx)

		assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	})
}
