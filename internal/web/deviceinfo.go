package web

import (
	"github.com/mozilla-services/tiles-edge/internal/tiles"
	"github.com/mozilla-services/tiles-edge/pkg/pattern"
)

func mustPattern(raw string) *pattern.Pattern {
	p, err := pattern.Compile(raw)
	if err != nil {
		panic(err)
	}
	return p
}

var tabletPatterns = []*pattern.Pattern{
	mustPattern("*ipad*"),
	mustPattern("~*tablet"),
	mustPattern("*kindle*"),
	mustPattern("*playbook*"),
}

var phonePatterns = []*pattern.Pattern{
	mustPattern("*iphone*"),
	mustPattern("~*android.*mobile"),
	mustPattern("*windows phone*"),
}

var legacyPatterns = []*pattern.Pattern{
	mustPattern("*msie*"),
	mustPattern("*trident*"),
	mustPattern("~*android [1-4]\\."),
}

var osRules = []struct {
	family   tiles.OSFamily
	patterns []*pattern.Pattern
}{
	{tiles.OSFamilyIOS, []*pattern.Pattern{mustPattern("*iphone*"), mustPattern("*ipad*"), mustPattern("*ipod*")}},
	{tiles.OSFamilyAndroid, []*pattern.Pattern{mustPattern("*android*")}},
	{tiles.OSFamilyWindows, []*pattern.Pattern{mustPattern("*windows*")}},
	{tiles.OSFamilyMacOS, []*pattern.Pattern{mustPattern("*macintosh*"), mustPattern("*mac os x*")}},
	{tiles.OSFamilyLinux, []*pattern.Pattern{mustPattern("*linux*")}},
}

// ClassifyDevice derives the coarse FormFactor and OSFamily the upstream
// partner query needs from a raw User-Agent header. Unrecognized strings
// fall back to the desktop form factor and the "other" OS family, never to
// an error: form factor and OS family are best-effort hints to the
// partner, not request validation.
func ClassifyDevice(userAgent string) (tiles.FormFactor, tiles.OSFamily) {
	return classifyFormFactor(userAgent), classifyOSFamily(userAgent)
}

func classifyFormFactor(userAgent string) tiles.FormFactor {
	for _, p := range tabletPatterns {
		if p.Match(userAgent) {
			return tiles.FormFactorTablet
		}
	}
	for _, p := range phonePatterns {
		if p.Match(userAgent) {
			return tiles.FormFactorPhone
		}
	}
	return tiles.FormFactorDesktop
}

func classifyOSFamily(userAgent string) tiles.OSFamily {
	for _, rule := range osRules {
		for _, p := range rule.patterns {
			if p.Match(userAgent) {
				return rule.family
			}
		}
	}
	return tiles.OSFamilyOther
}

// IsLegacy reports whether the requesting browser is old enough that the
// partner should be steered toward its legacy tile format (the
// AudienceKey's legacy_only field).
func IsLegacy(userAgent string) bool {
	for _, p := range legacyPatterns {
		if p.Match(userAgent) {
			return true
		}
	}
	return false
}
