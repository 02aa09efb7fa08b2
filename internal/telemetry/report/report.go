// Package report is the telemetry sink: a Sentry-backed structured error
// reporter, injected into the adm and tiles packages as the narrow
// Reporter/ImageFailureReporter/EmptyResponseReporter capabilities rather
// than reached for globally.
package report

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/mozilla-services/tiles-edge/internal/adm"
	"github.com/mozilla-services/tiles-edge/internal/config"
	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// Reporter delivers structured error events to Sentry and, redundantly,
// to the local logger so a Sentry outage never means total silence.
// Every delivery happens off the request path.
type Reporter struct {
	logger *zap.Logger
}

// New initializes the Sentry client from cfg and returns a Reporter bound
// to logger. If cfg.DSN is empty, Sentry delivery is a no-op and only
// local logging happens.
func New(cfg config.ReportConfig, logger *zap.Logger) (*Reporter, error) {
	if cfg.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.DSN,
			Environment:      cfg.Environment,
			SampleRate:       cfg.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return nil, err
		}
	}
	return &Reporter{logger: logger}, nil
}

// ReportRejection implements adm.Reporter: a single tile failed C2
// validation.
func (r *Reporter) ReportRejection(rej *adm.Rejection) {
	r.logger.Warn("tile rejected",
		zap.String("kind", string(rej.Kind)),
		zap.String("species", string(rej.Species)),
		zap.String("tile", rej.Tile),
		zap.String("url", rej.URL),
		zap.String("reason", rej.Reason),
		zap.String("param", rej.Param),
	)
	r.capture(rej, map[string]string{
		"type":   string(rej.Species),
		"tile":   rej.Tile,
		"url":    rej.URL,
		"reason": rej.Reason,
		"param":  rej.Param,
		"level":  "warning",
		"kind":   string(rej.Kind),
	})
}

// ReportImageFailure implements tiles.ImageFailureReporter: an image
// failed to store and its tile was dropped.
func (r *Reporter) ReportImageFailure(tile tiles.SanitizedTile, err error) {
	r.logger.Warn("image store failed, dropping tile",
		zap.Uint64("tile_id", tile.ID),
		zap.String("image_url", tile.ImageURL),
		zap.Error(err),
	)
	r.capture(err, map[string]string{
		"type":  "ImageStoreFailure",
		"tile":  tile.Name,
		"url":   tile.ImageURL,
		"level": "warning",
	})
}

// ReportFetchError delivers a request-level C3 failure (LoadError,
// ServerError, or BadAdmResponse).
func (r *Reporter) ReportFetchError(err error) {
	r.logger.Error("upstream fetch failed", zap.Error(err))
	r.capture(err, map[string]string{
		"type":  "FetchError",
		"level": "error",
	})
}

// ReportEmptyUpstreamResponse implements tiles.EmptyResponseReporter: the
// partner returned zero tiles for a request.
func (r *Reporter) ReportEmptyUpstreamResponse() {
	r.logger.Info("upstream returned no tiles")
}

// ReportAllTilesFiltered implements tiles.EmptyResponseReporter: the
// partner returned tiles, but every one of them failed C2 validation.
func (r *Reporter) ReportAllTilesFiltered() {
	r.logger.Warn("every upstream tile was filtered out")
}

func (r *Reporter) capture(err error, tags map[string]string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			if v != "" {
				scope.SetTag(k, v)
			}
		}
		sentry.CaptureException(err)
	})
}

// Flush blocks until pending events are delivered or timeout elapses,
// intended for use during graceful shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
