package web

import (
	"fmt"
	"runtime"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/mozilla-services/tiles-edge/internal/common/requestid"
)

// Version is stamped by the build (ldflags -X), reported verbatim by
// __version__.
var Version = "dev"

// Server dispatches the client-facing listener: the Dockerflow operational
// endpoints and the one tile-serving route.
type Server struct {
	Tiles  *TileHandler
	Logger *zap.Logger
}

// NewServer constructs a Server around an already-wired TileHandler.
func NewServer(tiles *TileHandler, logger *zap.Logger) *Server {
	return &Server{Tiles: tiles, Logger: logger}
}

// HandleRequest implements fasthttp.RequestHandler and is the listener's
// single entry point.
func (s *Server) HandleRequest(ctx *fasthttp.RequestCtx) {
	requestID := requestid.GenerateRequestID(string(ctx.Request.Header.Peek("X-Request-ID")))
	ctx.Response.Header.Set("X-Request-ID", requestID)

	switch string(ctx.Path()) {
	case "/v1/tiles":
		if !ctx.IsGet() {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.Tiles.ServeTiles(ctx)
	case "/__heartbeat__":
		s.handleHeartbeat(ctx)
	case "/__lbheartbeat__":
		s.handleLBHeartbeat(ctx)
	case "/__version__":
		s.handleVersion(ctx)
	case "/__error__":
		s.handleError(ctx)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

// handleHeartbeat reports whether this instance's dependencies are usable.
// The filter ruleset and the audience cache are both in-process, so there
// is nothing external to probe; this endpoint exists for operator tooling
// that expects it, and always succeeds once the process is serving traffic.
func (s *Server) handleHeartbeat(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(`{"status":"ok"}`)
}

// handleLBHeartbeat is the load balancer's narrower liveness probe: it
// never checks dependencies, only that the process is accepting
// connections at all.
func (s *Server) handleLBHeartbeat(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func (s *Server) handleVersion(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(fmt.Sprintf(`{"version":%q,"go":%q}`, Version, runtime.Version()))
}

// handleError deliberately fails: it logs an error line and answers 500.
// It does not send an event to the Sentry reporter.
func (s *Server) handleError(ctx *fasthttp.RequestCtx) {
	s.Logger.Error("forced error via __error__")
	s.writeError(ctx, fasthttp.StatusInternalServerError, "forced error")
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	ctx.Response.Header.Set("Content-Type", "text/plain")
	ctx.SetStatusCode(statusCode)
	ctx.SetBodyString(message)
}
