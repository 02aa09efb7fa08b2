package tiles

import "context"

// StoreResult is what the image store returns for one successfully stored
// image: a rewritten URL (typically CDN-backed) and the stored image's
// pixel width, which also stands in for height under the store's
// square-image contract.
type StoreResult struct {
	URL   string
	Width uint32
}

// ImageStore is the narrow capability C4 depends on, injected at startup
// rather than reached for globally (§9 Dynamic dispatch avoidance). It is
// opaque: this package neither knows nor cares how images are fetched,
// validated, or published.
type ImageStore interface {
	Store(ctx context.Context, imageURL string) (StoreResult, error)
}

// ImageFailureReporter receives one notification per tile dropped because
// its image failed to store.
type ImageFailureReporter interface {
	ReportImageFailure(tile SanitizedTile, err error)
}

// Decorate is C4: for each tile, in order, submits image_url to store and
// on success rewrites ImageURL/ImageSize; on failure the tile is reported
// and dropped from the result. Decoration runs sequentially per its input
// slice — callers that want fan-out across tiles are expected to have
// already bounded that slice to max_tiles, per the truncate-before-decorate
// ordering in C5.
func Decorate(ctx context.Context, store ImageStore, reporter ImageFailureReporter, tiles []SanitizedTile) []SanitizedTile {
	if store == nil {
		return tiles
	}
	decorated := make([]SanitizedTile, 0, len(tiles))
	for _, tile := range tiles {
		result, err := store.Store(ctx, tile.ImageURL)
		if err != nil {
			if reporter != nil {
				reporter.ReportImageFailure(tile, err)
			}
			continue
		}
		tile.ImageURL = result.URL
		width := result.Width
		tile.ImageSize = &width
		decorated = append(decorated, tile)
	}
	return decorated
}
