package validation

import (
	"mime/multipart"
	"path/filepath"
	"strings"

	"contactbook_backend/pkg/apperror"
)

const MaxImageSize = 10 * 1024 * 1024 // 10MB

var AllowedImageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Image checks presence, size and extension of an uploaded image.
func Image(file *multipart.FileHeader) error {
	if file == nil {
		return apperror.InvalidInput("invalid image",
			apperror.FieldError{Field: "image", Message: "is required"})
	}
	if file.Size > MaxImageSize {
		return apperror.InvalidInput("invalid image",
			apperror.FieldError{Field: "image", Message: "must be 10MB or smaller"})
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !AllowedImageTypes[ext] {
		return apperror.InvalidInput("invalid image",
			apperror.FieldError{Field: "image", Message: "must be a JPG, PNG or WEBP file"})
	}
	return nil
}
