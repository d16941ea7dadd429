// Package imagesource loads annotation images from data URLs, files and
// HTTP, and keeps decoded images in a TTL cache.
package imagesource

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"image-annotator/internal/logging"
)

var (
	// ErrUnsupportedSource is returned for a source with an unknown scheme.
	ErrUnsupportedSource = errors.New("unsupported image source")
	// ErrTooLarge is returned when a source exceeds the byte limit.
	ErrTooLarge = errors.New("image source too large")
)

// Options configures a Loader.
type Options struct {
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	MaxBytes    int64
	Client      *http.Client
	Logger      *slog.Logger
}

// Loaded is a decoded image with its encoding name.
type Loaded struct {
	Source string
	Format string
	Image  image.Image
}

// Size returns the pixel size.
func (l Loaded) Size() (int, int) {
	b := l.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Loader fetches and decodes images. Concurrent loads of one source share a
// single fetch.
type Loader struct {
	opts   Options
	client *http.Client
	cache  *cache.Cache
	group  singleflight.Group
	log    *slog.Logger
}

// NewLoader creates a loader.
func NewLoader(opts Options) *Loader {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}
	client := opts.Client
	if client == nil {
		timeout := opts.HTTPTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Loader{
		opts:   opts,
		client: client,
		cache:  cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		log:    logging.OrNop(opts.Logger).With("component", "imagesource"),
	}
}

// Load returns the decoded image for src, from the cache when possible.
func (l *Loader) Load(ctx context.Context, src string) (Loaded, error) {
	if v, ok := l.cache.Get(src); ok {
		return v.(Loaded), nil
	}
	v, err, _ := l.group.Do(src, func() (any, error) {
		start := time.Now()
		img, err := l.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		l.cache.SetDefault(src, img)
		w, h := img.Size()
		l.log.Debug("image loaded", "source", abbreviate(src), "format", img.Format, "width", w, "height", h, "elapsed", time.Since(start))
		return img, nil
	})
	if err != nil {
		l.log.Warn("image load failed", "source", abbreviate(src), "error", err)
		return Loaded{}, err
	}
	return v.(Loaded), nil
}

// Forget drops src from the cache.
func (l *Loader) Forget(src string) {
	l.cache.Delete(src)
}

// Close releases idle HTTP connections and empties the cache.
func (l *Loader) Close() {
	l.cache.Flush()
	l.client.CloseIdleConnections()
}

func (l *Loader) fetch(ctx context.Context, src string) (Loaded, error) {
	rc, err := l.open(ctx, src)
	if err != nil {
		return Loaded{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, l.opts.MaxBytes+1))
	if err != nil {
		return Loaded{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > l.opts.MaxBytes {
		return Loaded{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.opts.MaxBytes)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Loaded{}, fmt.Errorf("decode image: %w", err)
	}
	return Loaded{Source: src, Format: format, Image: img}, nil
}

func (l *Loader) open(ctx context.Context, src string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err := DecodeDataURL(src)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch image: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		return os.Open(u.Path)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, abbreviate(src))
	case src == "":
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	}
	return os.Open(src)
}

// DecodeDataURL returns the payload of a data URL.
func DecodeDataURL(src string) ([]byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data url", ErrUnsupportedSource)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", ErrUnsupportedSource)
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(s), nil
}

func abbreviate(src string) string {
	if len(src) > 64 {
		return src[:61] + "..."
	}
	return src
}
