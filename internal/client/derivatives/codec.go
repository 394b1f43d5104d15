package derivatives

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Codec is the platform decode/encode primitive.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	// Encode writes img in format f; quality in [0,1] applies to lossy formats.
	Encode(img image.Image, f Format, quality float64) ([]byte, error)
	CanEncode(f Format) bool
}

// ImagingCodec implements Codec with disintegration/imaging. It decodes
// JPEG, PNG, GIF, TIFF, BMP and WebP and encodes all of them except WebP.
type ImagingCodec struct{}

var imagingFormats = map[Format]imaging.Format{
	FormatJPEG: imaging.JPEG,
	FormatPNG:  imaging.PNG,
	FormatGIF:  imaging.GIF,
	FormatTIFF: imaging.TIFF,
	FormatBMP:  imaging.BMP,
}

func (ImagingCodec) Decode(data []byte) (image.Image, error) {
	if f := DetectFormat(data); f == FormatHEIC || f == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func (ImagingCodec) Encode(img image.Image, f Format, quality float64) ([]byte, error) {
	target, ok := imagingFormats[f]
	if !ok {
		return nil, fmt.Errorf("%w: encode %s", ErrUnsupportedFormat, f)
	}

	var buf bytes.Buffer
	var opts []imaging.EncodeOption
	if target == imaging.JPEG {
		opts = append(opts, imaging.JPEGQuality(jpegQuality(quality)))
	}
	if err := imaging.Encode(&buf, img, target, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f, err)
	}
	return buf.Bytes(), nil
}

func (ImagingCodec) CanEncode(f Format) bool {
	_, ok := imagingFormats[f]
	return ok
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// Source is a decoded image ready for derivative generation.
type Source struct {
	Image image.Image
	// Format is the container format of the original bytes.
	Format Format
	// Scale is the display scale of the image; pixel sizes always come from
	// the decoded bounds.
	Scale float64
}

// Decode builds a Source from encoded bytes with codec.
func Decode(codec Codec, data []byte) (Source, error) {
	img, err := codec.Decode(data)
	if err != nil {
		return Source{}, err
	}
	return Source{Image: img, Format: DetectFormat(data), Scale: 1}, nil
}
