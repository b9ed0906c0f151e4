package domain

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned when a source produced zero bytes
var ErrEmptyImage = errors.New("empty image data")

// ErrTooManyPixels is returned when the image header declares more pixels than allowed
var ErrTooManyPixels = errors.New("image dimensions exceed limit")

// Image is a decoded thumbnail. Images are immutable once cached.
type Image struct {
	URL    string
	Format string // jpeg, png, gif, webp, bmp
	Width  int
	Height int

	// Data keeps the encoded bytes exactly as fetched so they can be served again
	Data []byte

	Pixels image.Image
}

// Sniff reads only the image header and reports its format and dimensions.
func Sniff(data []byte) (format string, width, height int, err error) {
	if len(data) == 0 {
		return "", 0, 0, ErrEmptyImage
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, err
	}
	return format, cfg.Width, cfg.Height, nil
}

// Decode turns raw bytes from an ImageFetcher into an Image without a size limit.
func Decode(url string, data []byte) (*Image, error) {
	return DecodeLimited(url, data, 0)
}

// DecodeLimited checks the header first and refuses images above maxPixels
// (width*height) before any pixel memory is allocated. maxPixels <= 0 means no limit.
func DecodeLimited(url string, data []byte, maxPixels int64) (*Image, error) {
	_, w, h, err := Sniff(data)
	if err != nil {
		if errors.Is(err, ErrEmptyImage) {
			return nil, err
		}
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	if maxPixels > 0 && int64(w)*int64(h) > maxPixels {
		return nil, fmt.Errorf("decode %s: %dx%d: %w", url, w, h, ErrTooManyPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	b := img.Bounds()
	return &Image{
		URL:    url,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Data:   data,
		Pixels: img,
	}, nil
}

// ByteSize is the in-memory footprint of the decoded image (RGBA, 4 bytes per pixel).
// Falls back to the encoded size when no pixels are attached.
func (i *Image) ByteSize() int64 {
	if i == nil {
		return 0
	}
	if i.Pixels != nil && i.Width > 0 && i.Height > 0 {
		return int64(i.Width) * int64(i.Height) * 4
	}
	return int64(len(i.Data))
}

// ContentType maps the decoded format to a MIME type.
func (i *Image) ContentType() string {
	switch i.Format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
