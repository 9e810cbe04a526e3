package population

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // density maps ship as JPEG or PNG
	_ "image/png"
	"io"
	"net/http"
	"os"
)

// FileLoader decodes a PNG or JPEG density map from disk.
func FileLoader(path string) Loader {
	return func(ctx context.Context) (image.Image, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMapUnavailable, err)
		}
		defer f.Close()
		return decode(f)
	}
}

// HTTPLoader downloads and decodes a density map. A nil client uses
// http.DefaultClient.
func HTTPLoader(client *http.Client, url string) Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (image.Image, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build density map request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMapUnavailable, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d", ErrMapUnavailable, resp.StatusCode)
		}
		return decode(resp.Body)
	}
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode density map: %w", err)
	}
	return img, nil
}
