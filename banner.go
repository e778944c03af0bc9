package spacetraveling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/spacetraveling/prismic"
)

const (
	jpegQuality    = 80
	maxBannerBytes = 10 << 20 // 10MB
	maxBanners     = 128
)

var errNoBanner = errors.New("spacetraveling: post has no banner")

// downscale decodes an image from src, resizes it to maxWidth when wider, and
// encodes it as JPEG.
func downscale(src io.Reader, maxWidth int) ([]byte, image.Point, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if maxWidth > 0 && w > maxWidth {
		newH := h * maxWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), image.Pt(w, h), nil
}

// bannerCache keeps encoded banners keyed by source URL.
type bannerCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   []string
}

func (b *bannerCache) get(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.entries[key]
	return data, ok
}

func (b *bannerCache) put(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.entries == nil {
		b.entries = make(map[string][]byte)
	}
	if _, ok := b.entries[key]; ok {
		return
	}
	if len(b.order) >= maxBanners {
		delete(b.entries, b.order[0])
		b.order = b.order[1:]
	}
	b.entries[key] = data
	b.order = append(b.order, key)
}

// fetchable reports whether raw is an absolute http(s) URL.
func fetchable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (a *App) fetchBanner(ctx context.Context, src string) ([]byte, error) {
	if data, ok := a.banners.get(src); ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download banner: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download banner: unexpected status %d", resp.StatusCode)
	}

	data, size, err := downscale(io.LimitReader(resp.Body, maxBannerBytes), a.Config.BannerMaxWidth)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("banner processed",
		"url", src,
		"width", size.X,
		"height", size.Y,
		"size", humanize.Bytes(uint64(len(data))),
	)
	a.banners.put(src, data)
	return data, nil
}

func (a *App) handleBanner(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Cache.Post(ctx, c.Param("uid"))
	if err != nil {
		if errors.Is(err, prismic.ErrNotFound) {
			return echo.ErrNotFound
		}
		return echo.NewHTTPError(http.StatusBadGateway).SetInternal(err)
	}
	if !fetchable(post.BannerURL) {
		return echo.NewHTTPError(http.StatusNotFound).SetInternal(errNoBanner)
	}

	data, err := a.fetchBanner(ctx, post.BannerURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway).SetInternal(err)
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
