package services

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sjperalta/clients-api/internal/storage"
)

// DefaultMaxImageDimension bounds the longest side of a stored document image
const DefaultMaxImageDimension = 2000

const msgUnsupportedImage = "Formato de imagen no soportado (solo JPG/PNG)"

// supportedFormats maps the names registered with the image package
var supportedFormats = map[string]imaging.Format{
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
}

// ImageService checks uploaded document images and shrinks oversized ones
type ImageService struct {
	maxBytes     int64
	maxDimension int
}

func NewImageService(maxBytes int64, maxDimension int) *ImageService {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxImageDimension
	}
	return &ImageService{
		maxBytes:     maxBytes,
		maxDimension: maxDimension,
	}
}

// Prepare verifies that file is a decodable JPG or PNG within the size limit.
// The format comes from the image data, not the file name, and the returned
// file's ContentType always matches it. JPEGs are re-encoded so their EXIF
// orientation is applied to the pixels; images larger than the maximum
// dimension are resized to fit. Other PNGs are returned untouched.
func (s *ImageService) Prepare(file *storage.File) (*storage.File, error) {
	if s.maxBytes > 0 && int64(len(file.Data)) > s.maxBytes {
		return nil, newError(ErrBadRequest, fmt.Sprintf("La imagen %s excede el tamaño máximo de %d MB", file.Name, s.maxBytes/(1024*1024)))
	}

	_, formatName, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return nil, wrapError(ErrBadRequest, msgUnsupportedImage, err)
	}
	format, ok := supportedFormats[formatName]
	if !ok {
		return nil, newError(ErrBadRequest, msgUnsupportedImage)
	}

	img, err := imaging.Decode(bytes.NewReader(file.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, wrapError(ErrBadRequest, fmt.Sprintf("La imagen %s no es válida", file.Name), err)
	}

	bounds := img.Bounds()
	oversized := bounds.Dx() > s.maxDimension || bounds.Dy() > s.maxDimension
	if format == imaging.PNG && !oversized {
		if file.ContentType == contentTypeFor(format) {
			return file, nil
		}
		return &storage.File{Name: file.Name, ContentType: contentTypeFor(format), Data: file.Data}, nil
	}

	if oversized {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("error al procesar imagen: %w", err)
	}

	return &storage.File{
		Name:        file.Name,
		ContentType: contentTypeFor(format),
		Data:        buf.Bytes(),
	}, nil
}

func contentTypeFor(format imaging.Format) string {
	if format == imaging.PNG {
		return "image/png"
	}
	return "image/jpeg"
}
