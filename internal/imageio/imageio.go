package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when a page cannot be read as an image. Callers skip
// the page and keep going.
var ErrDecode = errors.New("failed to decode image")

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".webp": true,
}

// IsImageName reports whether name carries one of the accepted page
// extensions, ignoring case.
func IsImageName(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DecodeFile opens and decodes one page image.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return img, nil
}

// Encode writes img in the given format. quality only applies to JPEG; webp
// output is lossless.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "webp":
		return nativewebp.Encode(w, img, &nativewebp.Options{})
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
