package imagestore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStore_RewritesURLAndReportsWidth(t *testing.T) {
	fixture := pngFixture(t, 200, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture)
	}))
	defer srv.Close()

	store := New("https://cdn.example", time.Second)
	result, err := store.Store(context.Background(), srv.URL+"/images/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/images/a.png", result.URL)
	assert.Equal(t, uint32(200), result.Width)
}

func TestStore_NonImageBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	store := New("https://cdn.example", time.Second)
	_, err := store.Store(context.Background(), srv.URL+"/bad.png")
	assert.Error(t, err)
}

func TestStore_NonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store := New("https://cdn.example", time.Second)
	_, err := store.Store(context.Background(), srv.URL+"/missing.png")
	assert.Error(t, err)
}
