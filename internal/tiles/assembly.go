package tiles

import "context"

// RawFetcher is the narrow capability C5 uses to reach C3 (the upstream
// fetcher lives in a separate package to avoid an import cycle back into
// this one).
type RawFetcher interface {
	Fetch(ctx context.Context, key AudienceKey, fakeResponseHeader string) ([]RawTile, error)
}

// TileValidator is the narrow capability C5 uses to reach C2.
type TileValidator interface {
	Validate(raw RawTile) (SanitizedTile, bool)
}

// EmptyResponseReporter receives the two request-level telemetry counters
// C5 is responsible for: an empty upstream response, and every tile being
// filtered out.
type EmptyResponseReporter interface {
	ReportEmptyUpstreamResponse()
	ReportAllTilesFiltered()
}

// Assemble runs C5: fetch, validate, truncate, decorate, serialize. The
// upstream's input order is preserved throughout; nothing is ever
// re-sorted by position. A non-nil error is always a fetch-level failure
// from C3 (a *adm.FetchError in practice); the cache layer decides what to
// do with it.
func Assemble(
	ctx context.Context,
	fetcher RawFetcher,
	validator TileValidator,
	store ImageStore,
	imageReporter ImageFailureReporter,
	emptyReporter EmptyResponseReporter,
	key AudienceKey,
	fakeResponseHeader string,
	maxTiles int,
) (Content, error) {
	raw, err := fetcher.Fetch(ctx, key, fakeResponseHeader)
	if err != nil {
		return Content{}, err
	}

	if len(raw) == 0 && emptyReporter != nil {
		emptyReporter.ReportEmptyUpstreamResponse()
	}

	sanitized := make([]SanitizedTile, 0, len(raw))
	for _, rawTile := range raw {
		tile, ok := validator.Validate(rawTile)
		if !ok {
			continue
		}
		sanitized = append(sanitized, tile)
		if maxTiles > 0 && len(sanitized) >= maxTiles {
			break
		}
	}

	sanitized = Decorate(ctx, store, imageReporter, sanitized)

	if len(sanitized) == 0 && emptyReporter != nil {
		emptyReporter.ReportAllTilesFiltered()
	}

	return Serialize(sanitized)
}
