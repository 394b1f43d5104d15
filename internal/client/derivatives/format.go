package derivatives

import (
	"bytes"
	"strings"
)

// Format is an image container format.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatHEIC    Format = "heic"
	FormatWebP    Format = "webp"
	FormatTIFF    Format = "tiff"
	FormatBMP     Format = "bmp"
	FormatUnknown Format = "unknown"
)

var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// DetectFormat sniffs the magic bytes of data.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return FormatPNG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return FormatGIF
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		brand := data[8:12]
		for _, b := range heifBrands {
			if bytes.Equal(brand, b) {
				return FormatHEIC
			}
		}
	}
	return FormatUnknown
}

// MimeType falls back to image/jpeg for unknown formats.
func (f Format) MimeType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatHEIC:
		return "image/heic"
	case FormatWebP:
		return "image/webp"
	case FormatTIFF:
		return "image/tiff"
	case FormatBMP:
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPNG, FormatGIF, FormatHEIC, FormatWebP, FormatTIFF, FormatBMP:
		return string(f)
	default:
		return "jpg"
	}
}

// HighCompression reports formats whose encoders reach JPEG-like quality
// at a lower numeric setting.
func (f Format) HighCompression() bool {
	return f == FormatHEIC || f == FormatWebP
}

func FormatFromMimeType(mime string) Format {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/gif":
		return FormatGIF
	case "image/heic", "image/heif":
		return FormatHEIC
	case "image/webp":
		return FormatWebP
	case "image/tiff":
		return FormatTIFF
	case "image/bmp":
		return FormatBMP
	}
	return FormatUnknown
}
