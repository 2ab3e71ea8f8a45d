// Package artwork resolves artwork references (inline data URIs, bare base64
// payloads, http(s) URLs and file URLs) into decoded images for the
// notification and media session surfaces.
package artwork

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyRef        = errors.New("empty artwork reference")
	ErrUnsupportedRef  = errors.New("unsupported artwork reference")
	ErrMalformedData   = errors.New("malformed inline artwork")
	ErrEmptyPayload    = errors.New("empty image data")
	ErrTooLarge        = errors.New("artwork too large")
	ErrUnexpectedReply = errors.New("unexpected artwork server reply")
)

// Artwork is a decoded image together with the reference it was loaded for.
type Artwork struct {
	Ref   string
	Image image.Image

	// Accent is the dominant colour as "#RRGGBB", or empty if not computed.
	Accent string
}

// Size returns the pixel dimensions of the decoded image.
func (a *Artwork) Size() (w, h int) {
	if a == nil || a.Image == nil {
		return 0, 0
	}
	b := a.Image.Bounds()
	return b.Dx(), b.Dy()
}

type refKind int

const (
	refInline refKind = iota
	refRemote
	refFile
)

func classify(ref string) refKind {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return refRemote
	case strings.HasPrefix(lower, "file://"):
		return refFile
	}
	return refInline
}

// decodeInline decodes either a data: URI or a bare base64 payload.
func decodeInline(ref string) (image.Image, error) {
	data, err := inlinePayload(ref)
	if err != nil {
		return nil, err
	}
	return decodeImage(data)
}

func inlinePayload(ref string) ([]byte, error) {
	if !strings.HasPrefix(strings.ToLower(ref), "data:") {
		data, err := decodeBase64(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: not a URL, data URI or base64 payload", ErrUnsupportedRef)
		}
		return data, nil
	}

	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: data URI has no payload separator", ErrMalformedData)
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		data, err := decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		return data, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return []byte(unescaped), nil
}

// decodeBase64 accepts padded and unpadded standard or URL-safe base64,
// with embedded line breaks.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
