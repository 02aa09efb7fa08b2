package web

import (
	"fmt"
	"strings"
)

var validPlacements = map[string]struct{}{
	"urlbar": {},
	"newtab": {},
	"search": {},
}

// ValidationError is a client input failure, surfaced as a 4xx per §7's
// error taxonomy.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// TileRequestParams is the validated, normalized form of a /v1/tiles
// query: country uppercased, placement lowercased and checked against the
// fixed placement set.
type TileRequestParams struct {
	Country   string
	Placement string
}

// ParseTileRequestParams normalizes and validates the raw query values per
// §6's client protocol.
func ParseTileRequestParams(rawCountry, rawPlacement string) (TileRequestParams, error) {
	placement := strings.ToLower(rawPlacement)
	if _, ok := validPlacements[placement]; !ok {
		return TileRequestParams{}, &ValidationError{Message: fmt.Sprintf("invalid placement parameter %q", rawPlacement)}
	}
	return TileRequestParams{
		Country:   strings.ToUpper(rawCountry),
		Placement: placement,
	}, nil
}
