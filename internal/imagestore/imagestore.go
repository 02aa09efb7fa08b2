// Package imagestore provides a reference implementation of the tiles.ImageStore
// capability: it fetches an image, measures its dimensions, and hands
// back a rewritten URL as if the image had been published to a CDN. The
// core tile-serving pipeline only depends on the narrow tiles.ImageStore
// interface; this package is one possible collaborator behind it, not a
// requirement.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/mozilla-services/tiles-edge/internal/tiles"
)

// Store fetches and measures images on demand, rewriting their URL to a
// stable `cdnBase + original path` form. It implements tiles.ImageStore.
type Store struct {
	client  *http.Client
	cdnBase string
}

// New constructs a Store that rewrites stored images under cdnBase.
func New(cdnBase string, timeout time.Duration) *Store {
	return &Store{
		client:  &http.Client{Timeout: timeout},
		cdnBase: cdnBase,
	}
}

// Store implements tiles.ImageStore: fetch imageURL, decode its format to
// find its width, and return the rewritten CDN URL.
func (s *Store) Store(ctx context.Context, imageURL string) (tiles.StoreResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return tiles.StoreResult{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return tiles.StoreResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tiles.StoreResult{}, fmt.Errorf("image store: unexpected status %d fetching %s", resp.StatusCode, imageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tiles.StoreResult{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return tiles.StoreResult{}, fmt.Errorf("image store: decode %s: %w", imageURL, err)
	}

	return tiles.StoreResult{
		URL:   s.cdnBase + imagePath(imageURL),
		Width: uint32(cfg.Width),
	}, nil
}

func imagePath(imageURL string) string {
	for i := len(imageURL) - 1; i >= 0; i-- {
		if imageURL[i] == '/' {
			return imageURL[i:]
		}
	}
	return "/" + imageURL
}
