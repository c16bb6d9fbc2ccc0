package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"

	"github.com/chai2010/webp"
)

const (
	MaxImageSize = 10 * 1024 * 1024 // 10MB
)

var (
	AllowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	}

	ErrTooLarge = errors.New("image exceeds 10MB")
)

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"webp": ".webp",
}

// Processed is a re-encoded image ready for upload.
type Processed struct {
	Data        []byte
	ContentType string
	Ext         string
}

func (p *Processed) Reader() *bytes.Reader {
	return bytes.NewReader(p.Data)
}

// ProcessFile re-encodes an uploaded multipart file.
func ProcessFile(file *multipart.FileHeader) (*Processed, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer src.Close()
	return Process(src)
}

// Process decodes r and re-encodes it in its own format, dropping metadata.
// Anything other than JPEG, PNG or WebP is rejected.
func Process(r io.Reader) (*Processed, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("could not read image: %w", err)
	}
	if len(raw) > MaxImageSize {
		return nil, ErrTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}

	buf := new(bytes.Buffer)
	switch format {
	case "jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: 85})
	case "png":
		err = png.Encode(buf, img)
	case "webp":
		err = webp.Encode(buf, img, &webp.Options{Lossless: false, Quality: 85})
	default:
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("could not encode image: %w", err)
	}

	return &Processed{
		Data:        buf.Bytes(),
		ContentType: "image/" + format,
		Ext:         extensions[format],
	}, nil
}
