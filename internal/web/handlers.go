package web

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/mozilla-services/tiles-edge/internal/adm"
	"github.com/mozilla-services/tiles-edge/internal/cache"
	"github.com/mozilla-services/tiles-edge/internal/common/httputil"
	metricsserver "github.com/mozilla-services/tiles-edge/internal/telemetry/metrics"
	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// FetchErrorReporter is the narrow capability handlers needs for a
// request-level C3 failure, satisfied by *report.Reporter.
type FetchErrorReporter interface {
	ReportFetchError(err error)
}

// TileHandler serves /v1/tiles: it resolves the audience key, runs the
// ten-step request protocol against the audience cache, and translates the
// outcome into the client response.
type TileHandler struct {
	Ruleset       *adm.Ruleset
	Fetcher       tiles.RawFetcher
	Validator     tiles.TileValidator
	Store         tiles.ImageStore
	ImageReporter tiles.ImageFailureReporter
	EmptyReporter tiles.EmptyResponseReporter
	FetchReporter FetchErrorReporter
	Locator       HeaderLocator
	Cache         *cache.AudienceCache
	Metrics       *metricsserver.Collector
	Logger        *zap.Logger

	TTL                  time.Duration
	JitterPercent        int
	MaxTiles             int
	ExcludedCountries200 bool
}

// ServeTiles implements fasthttp.RequestHandler for the /v1/tiles route.
func (h *TileHandler) ServeTiles(ctx *fasthttp.RequestCtx) {
	h.Metrics.TilesGet.Inc()

	params, err := ParseTileRequestParams(
		string(ctx.QueryArgs().Peek("country")),
		string(ctx.QueryArgs().Peek("placement")),
	)
	if err != nil {
		httputil.JSONError(ctx, err.Error(), fasthttp.StatusBadRequest)
		return
	}

	loc := h.Locator.Locate(ctx)
	country := params.Country
	if loc.Country != "" {
		country = loc.Country
	}

	// Early region gate (§4.6): a country outside every entry's
	// include_regions is guaranteed to come back empty, so skip the
	// audience cache and upstream entirely. This is the only call site
	// where ExcludedCountries200 applies.
	if !h.Ruleset.IncludesCountry(country) {
		h.writeExcludedCountry(ctx)
		return
	}

	userAgent := string(ctx.UserAgent())
	formFactor, osFamily := ClassifyDevice(userAgent)
	key := tiles.AudienceKey{
		CountryCode: country,
		RegionCode:  loc.Region,
		HasRegion:   loc.HasRegion,
		DMACode:     loc.DMA,
		HasDMA:      loc.HasDMA,
		FormFactor:  formFactor,
		OSFamily:    osFamily,
		LegacyOnly:  IsLegacy(userAgent),
	}

	fakeResponseHeader := string(ctx.Request.Header.Peek("fake-response"))

	populate := func(populateCtx context.Context) (tiles.Content, error) {
		h.Metrics.AdmRequest.Inc()
		return tiles.Assemble(
			populateCtx,
			h.Fetcher,
			h.Validator,
			h.Store,
			h.ImageReporter,
			h.EmptyReporter,
			key,
			fakeResponseHeader,
			h.MaxTiles,
		)
	}

	result := h.Cache.Resolve(ctx, key.String(), populate, h.TTL, h.JitterPercent)

	switch result.Outcome {
	case cache.OutcomeHit:
		h.Metrics.CacheHit.Inc()
		h.writeContent(ctx, result.Content)
	case cache.OutcomeHitRefreshing:
		h.Metrics.CacheHitRefresh.Inc()
		h.writeContent(ctx, result.Content)
	case cache.OutcomeMissPopulating:
		h.Metrics.CacheMissPop.Inc()
		h.writeNoContent(ctx)
	case cache.OutcomePopulated:
		h.Metrics.CacheMiss.Inc()
		h.writeContent(ctx, result.Content)
	case cache.OutcomeBadAdmResponse:
		h.Metrics.CacheMiss.Inc()
		h.Metrics.AdmFetchErrors.WithLabelValues(string(adm.KindBadAdmResponse)).Inc()
		if h.FetchReporter != nil {
			h.FetchReporter.ReportFetchError(result.Err)
		}
		h.writeNoContent(ctx)
	case cache.OutcomeFetchError:
		h.reportFetchError(result.Err)
		httputil.JSONError(ctx, "upstream tile service unavailable", fasthttp.StatusBadGateway)
	}
}

func (h *TileHandler) reportFetchError(err error) {
	kind := string(adm.KindServerError)
	if e, ok := err.(*adm.FetchError); ok {
		kind = string(e.Kind)
	}
	h.Metrics.AdmFetchErrors.WithLabelValues(kind).Inc()
	if h.FetchReporter != nil {
		h.FetchReporter.ReportFetchError(err)
	}
}

// writeContent serves a Content value, translating the empty marker into a
// bodyless 204 and a populated one into a 200 JSON body.
func (h *TileHandler) writeContent(ctx *fasthttp.RequestCtx, content tiles.Content) {
	if content.Kind == tiles.ContentEmpty {
		h.writeNoContent(ctx)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(content.Bytes)
}

// writeNoContent serves an unconditional bodyless 204. Every "no tiles"
// outcome reached after the early region gate uses this; ExcludedCountries200
// only softens the gate itself.
func (h *TileHandler) writeNoContent(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// writeExcludedCountry serves the early region-gate response, either as a
// bare 204 or as a 200 with an empty tile list, per ExcludedCountries200.
func (h *TileHandler) writeExcludedCountry(ctx *fasthttp.RequestCtx) {
	if h.ExcludedCountries200 {
		ctx.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString(`{"tiles":[]}`)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
