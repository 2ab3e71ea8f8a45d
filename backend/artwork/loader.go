package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/boxes-ltd/imaging"
	"github.com/cenkalti/dominantcolor"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rezon/mediasession/backend/util"
)

const (
	DefaultMaxSizePx    = 512
	DefaultFetchRetries = 2

	maxDownloadBytes = 16 * 1_048_576
)

type Options struct {
	// Decoded images larger than this in either dimension are scaled down.
	// Zero disables scaling.
	MaxSizePx int

	// Number of retries for remote fetches that fail with a connection
	// error or a 5xx reply.
	FetchRetries int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Compute the dominant colour of each loaded image.
	AccentColor bool

	// Optional memo for remote and file artwork. Inline payloads are never memoised.
	Cache *ImageCache

	// Optional base client for remote fetches.
	HTTPClient *http.Client
}

// Loader resolves artwork references into decoded images.
// It is safe for concurrent use.
type Loader struct {
	opts   Options
	client *retryablehttp.Client
}

func NewLoader(opts Options) *Loader {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = max(opts.FetchRetries, 0)
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.HTTPClient != nil {
		c.HTTPClient = opts.HTTPClient
	}
	return &Loader{opts: opts, client: c}
}

// Load resolves ref into decoded artwork. It blocks for the duration of
// any network read; there is no deadline beyond ctx and the transport default.
func (l *Loader) Load(ctx context.Context, ref string) (*Artwork, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrEmptyRef
	}

	kind := classify(ref)
	if kind != refInline && l.opts.Cache != nil {
		if a, err := l.opts.Cache.Get(ref); err == nil {
			return a, nil
		}
	}

	var img image.Image
	var err error
	switch kind {
	case refRemote:
		img, err = l.fetchRemote(ctx, ref)
	case refFile:
		img, err = loadFile(ref)
	default:
		img, err = decodeInline(ref)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := l.finish(ref, img)
	if kind != refInline && l.opts.Cache != nil {
		l.opts.Cache.Set(ref, a)
	}
	return a, nil
}

func (l *Loader) finish(ref string, img image.Image) *Artwork {
	if m := l.opts.MaxSizePx; m > 0 {
		if b := img.Bounds(); b.Dx() > m || b.Dy() > m {
			img = imaging.Fit(img, m, m, imaging.Lanczos)
		}
	}
	a := &Artwork{Ref: ref, Image: img}
	if l.opts.AccentColor {
		a.Accent = dominantcolor.Hex(dominantcolor.Find(img))
	}
	return a
}

func (l *Loader) fetchRemote(ctx context.Context, ref string) (image.Image, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build artwork request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedReply, resp.StatusCode)
	}
	if resp.ContentLength > maxDownloadBytes {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge,
			humanize.Bytes(uint64(resp.ContentLength)), humanize.Bytes(maxDownloadBytes))
	}

	data, err := util.ReadAllLimited(ctx, resp.Body, maxDownloadBytes)
	if errors.Is(err, util.ErrLimitExceeded) {
		return nil, fmt.Errorf("%w: body exceeds %s", ErrTooLarge, humanize.Bytes(maxDownloadBytes))
	} else if err != nil {
		return nil, fmt.Errorf("failed to read artwork data: %w", err)
	}
	return decodeImage(data)
}

func loadFile(ref string) (image.Image, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedRef, err)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artwork file: %w", err)
	}
	return decodeImage(data)
}
