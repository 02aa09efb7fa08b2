package adm

import "fmt"

// RejectionKind enumerates the tile-level rejection taxonomy of §4.2/§7.
// Every rejection is reported to telemetry and the tile is dropped; none
// of these ever propagate to the request level.
type RejectionKind string

const (
	RejectUnexpectedAdvertiser RejectionKind = "UnexpectedAdvertiser"
	RejectMissingHost          RejectionKind = "MissingHost"
	RejectUnexpectedHost       RejectionKind = "UnexpectedHost"
	RejectInvalidHost          RejectionKind = "InvalidHost"
)

// URLSpecies names which of the three tile URLs a rejection concerns, used
// as the "type" telemetry tag.
type URLSpecies string

const (
	SpeciesAdvertiser URLSpecies = "Advertiser"
	SpeciesClick      URLSpecies = "Click"
	SpeciesImpression URLSpecies = "Impression"
)

// Rejection is a single tile's validation failure, carrying everything
// needed to build the telemetry tag set of §4.2/§7.
type Rejection struct {
	Kind    RejectionKind
	Species URLSpecies
	Tile    string
	URL     string
	Reason  string
	Param   string
}

func (r *Rejection) Error() string {
	if r.Param != "" {
		return fmt.Sprintf("%s: %s (tile=%q url=%q reason=%q param=%q)", r.Kind, r.Species, r.Tile, r.URL, r.Reason, r.Param)
	}
	return fmt.Sprintf("%s: %s (tile=%q url=%q reason=%q)", r.Kind, r.Species, r.Tile, r.URL, r.Reason)
}

// FetchErrorKind enumerates the request-level upstream failure taxonomy
// of §4.3/§7.
type FetchErrorKind string

const (
	// KindLoadError is a cold-start-window timeout: a softer signal than
	// ServerError so operators can distinguish load-shedding from an
	// actually broken upstream.
	KindLoadError FetchErrorKind = "LoadError"
	// KindServerError is any other transport failure or non-2xx status.
	KindServerError FetchErrorKind = "ServerError"
	// KindBadAdmResponse is a 2xx response whose body didn't parse.
	KindBadAdmResponse FetchErrorKind = "BadAdmResponse"
)

// FetchError is the error type returned by the upstream fetcher (C3).
type FetchError struct {
	Kind    FetchErrorKind
	Message string
}

func (e *FetchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func loadError() error                { return &FetchError{Kind: KindLoadError} }
func serverError(msg string) error    { return &FetchError{Kind: KindServerError, Message: msg} }
func badAdmResponse(msg string) error { return &FetchError{Kind: KindBadAdmResponse, Message: msg} }
