package document

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"strings"
)

const staticPrefix = "/static/"

// image is a decoded raster referenced by the tree.
type image struct {
	mimeType string
	data     []byte
}

// gofpdfType maps the MIME type onto gofpdf's image type names.
func (img image) gofpdfType() string {
	switch img.mimeType {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

func (img image) dataURI() string {
	return "data:" + img.mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.data)
}

var errUnsupportedImage = errors.New("document: unsupported image source")

// loadImage resolves a data URI or a /static/ path served from assets.
func loadImage(assets fs.FS, src string) (image, error) {
	src = strings.TrimSpace(src)
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURI(src)
	case strings.HasPrefix(src, staticPrefix) && assets != nil:
		name := strings.TrimPrefix(src, staticPrefix)
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return image{}, fmt.Errorf("document: read asset %s: %w", name, err)
		}
		typ := mime.TypeByExtension(path.Ext(name))
		if i := strings.Index(typ, ";"); i >= 0 {
			typ = typ[:i]
		}
		return image{mimeType: typ, data: data}, nil
	}
	return image{}, errUnsupportedImage
}

func decodeDataURI(src string) (image, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return image{}, errUnsupportedImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return image{}, fmt.Errorf("document: decode data uri: %w", err)
	}
	return image{mimeType: strings.TrimSuffix(header, ";base64"), data: data}, nil
}
