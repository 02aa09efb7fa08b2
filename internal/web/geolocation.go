package web

import (
	"strconv"

	"github.com/valyala/fasthttp"
)

// Location is the audience key's geography fields, as produced by
// whatever upstream geolocation collaborator sits in front of this
// service (a GeoIP lookup, a CDN-provided header, or similar). That
// collaborator is out of scope for the core; this package only defines
// the narrow shape it must hand back.
type Location struct {
	Country   string
	Region    string
	HasRegion bool
	DMA       int
	HasDMA    bool
}

// HeaderLocator reads geolocation fields from request headers, matching a
// CDN or reverse proxy that resolves client IP to geography upstream of
// this service and forwards the result as headers.
type HeaderLocator struct {
	CountryHeader string
	RegionHeader  string
	DMAHeader     string
}

// NewHeaderLocator returns a HeaderLocator using the conventional header
// names.
func NewHeaderLocator() HeaderLocator {
	return HeaderLocator{
		CountryHeader: "X-Geo-Country",
		RegionHeader:  "X-Geo-Region",
		DMAHeader:     "X-Geo-DMA",
	}
}

// Locate extracts a Location from ctx's headers. A missing country header
// is not an error here; the caller (handler) treats an empty country the
// same as any other region excluded from the ruleset's include_regions.
func (h HeaderLocator) Locate(ctx *fasthttp.RequestCtx) Location {
	loc := Location{
		Country: string(ctx.Request.Header.Peek(h.CountryHeader)),
	}
	if region := string(ctx.Request.Header.Peek(h.RegionHeader)); region != "" {
		loc.Region = region
		loc.HasRegion = true
	}
	if dmaRaw := string(ctx.Request.Header.Peek(h.DMAHeader)); dmaRaw != "" {
		if dma, err := strconv.Atoi(dmaRaw); err == nil {
			loc.DMA = dma
			loc.HasDMA = true
		}
	}
	return loc
}
