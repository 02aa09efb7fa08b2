package web

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		name       string
		ua         string
		formFactor tiles.FormFactor
		osFamily   tiles.OSFamily
	}{
		{"iphone", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", tiles.FormFactorPhone, tiles.OSFamilyIOS},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", tiles.FormFactorTablet, tiles.OSFamilyIOS},
		{"android phone", "Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile", tiles.FormFactorPhone, tiles.OSFamilyAndroid},
		{"android tablet", "Mozilla/5.0 (Linux; Android 13; Tab)", tiles.FormFactorDesktop, tiles.OSFamilyAndroid},
		{"windows desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", tiles.FormFactorDesktop, tiles.OSFamilyWindows},
		{"mac desktop", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", tiles.FormFactorDesktop, tiles.OSFamilyMacOS},
		{"linux desktop", "Mozilla/5.0 (X11; Linux x86_64)", tiles.FormFactorDesktop, tiles.OSFamilyLinux},
		{"unknown", "SomeWeirdBot/1.0", tiles.FormFactorDesktop, tiles.OSFamilyOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form, os := ClassifyDevice(tc.ua)
			assert.Equal(t, tc.formFactor, form)
			assert.Equal(t, tc.osFamily, os)
		})
	}
}

func TestIsLegacy(t *testing.T) {
	assert.True(t, IsLegacy("Mozilla/5.0 (compatible; MSIE 9.0; Windows NT 6.1; Trident/5.0)"))
	assert.True(t, IsLegacy("Mozilla/5.0 (Linux; Android 4.4.2; Nexus 5)"))
	assert.False(t, IsLegacy("Mozilla/5.0 (Linux; Android 13; Pixel 7) Mobile"))
	assert.False(t, IsLegacy("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
}
