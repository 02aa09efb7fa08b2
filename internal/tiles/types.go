// Package tiles defines the wire types shared between the upstream partner
// fetch, the filter pipeline, and the client-facing response, plus the
// assembly and image-decoration steps that turn one into the other.
package tiles

import "encoding/json"

// FormFactor classifies the requesting device for the partner query.
type FormFactor string

const (
	FormFactorDesktop FormFactor = "desktop"
	FormFactorPhone   FormFactor = "phone"
	FormFactorTablet  FormFactor = "tablet"
	FormFactorOther   FormFactor = "other"
)

// OSFamily classifies the requesting device's operating system.
type OSFamily string

const (
	OSFamilyWindows OSFamily = "windows"
	OSFamilyMacOS   OSFamily = "macos"
	OSFamilyLinux   OSFamily = "linux"
	OSFamilyIOS     OSFamily = "ios"
	OSFamilyAndroid OSFamily = "android"
	OSFamilyOther   OSFamily = "other"
)

// AudienceKey is the coarse request fingerprint used to bucket clients onto
// a shared partner fetch. It carries no per-user information: country,
// region, and DMA describe a geography, not an individual.
type AudienceKey struct {
	CountryCode string
	RegionCode  string // empty means absent
	HasRegion   bool
	DMACode     int
	HasDMA      bool
	FormFactor  FormFactor
	OSFamily    OSFamily
	LegacyOnly  bool
}

// String renders a stable, human-inspectable cache key. Field order is
// fixed so two keys with identical fields always produce identical strings
// (required for use as a map key via the cache's sharded lock index).
func (k AudienceKey) String() string {
	region := "-"
	if k.HasRegion {
		region = k.RegionCode
	}
	dma := "-"
	if k.HasDMA {
		dma = itoa(k.DMACode)
	}
	legacy := "0"
	if k.LegacyOnly {
		legacy = "1"
	}
	return k.CountryCode + "|" + region + "|" + dma + "|" + string(k.FormFactor) + "|" + string(k.OSFamily) + "|" + legacy
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RawTile is one tile as returned by the upstream partner, before any
// filtering or sanitization.
type RawTile struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	AdvertiserURL  string `json:"advertiser_url"`
	ClickURL       string `json:"click_url"`
	ImageURL       string `json:"image_url"`
	ImpressionURL  string `json:"impression_url"`
	Position       *uint8 `json:"position,omitempty"`
}

// AdmTileResponse is the shape of the upstream partner's JSON body.
type AdmTileResponse struct {
	Tiles []RawTile `json:"tiles"`
}

// SanitizedTile is one tile as sent to the client, after C2 validation and
// C4 image decoration.
type SanitizedTile struct {
	ID            uint64  `json:"id"`
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	ClickURL      string  `json:"click_url"`
	ImageURL      string  `json:"image_url"`
	ImageSize     *uint32 `json:"image_size"`
	ImpressionURL string  `json:"impression_url"`

	// EffectivePosition carries the filter entry's resolved position
	// attribute. It is not a sort key (§9 Open Question): assembly preserves
	// upstream order and only truncates, it never reorders by position.
	EffectivePosition *uint8 `json:"-"`
}

// TileResponse is the shape of the client-facing response body.
type TileResponse struct {
	Tiles []SanitizedTile `json:"tiles"`
}

// ContentKind distinguishes a populated response from an empty one so the
// cache can serve 204 No Content without re-deriving it from the bytes.
type ContentKind int

const (
	ContentEmpty ContentKind = iota
	ContentJSON
)

// Content is a cached response body: either already-serialized JSON bytes
// or the empty marker. Caching the serialized form means every cache hit
// is a byte copy, never a re-encode.
type Content struct {
	Kind  ContentKind
	Bytes []byte
}

// EmptyContent is the canonical empty-tiles body, used both for the
// client-facing 200+empty response and as the cached value that suppresses
// repeat upstream calls after a BadAdmResponse.
var EmptyContent = Content{Kind: ContentEmpty}

// Serialize renders a tile list into a Content, matching C5 step 5: an
// empty list becomes ContentEmpty, otherwise the list is JSON-encoded once.
func Serialize(sanitized []SanitizedTile) (Content, error) {
	if len(sanitized) == 0 {
		return EmptyContent, nil
	}
	body, err := json.Marshal(TileResponse{Tiles: sanitized})
	if err != nil {
		return Content{}, err
	}
	return Content{Kind: ContentJSON, Bytes: body}, nil
}
