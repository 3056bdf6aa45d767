package usecase

import "fmt"

// DefaultMaxImageSize is 10 MiB.
const DefaultMaxImageSize int64 = 10 * 1024 * 1024

// ValidateImage rejects empty buffers and buffers longer than maxSize. A
// buffer of exactly maxSize bytes is accepted.
func ValidateImage(image []byte, maxSize int64) error {
	if len(image) == 0 {
		return NewError(KindEmptyImage, nil)
	}
	if int64(len(image)) > maxSize {
		return NewError(KindImageTooLarge, fmt.Errorf("%d bytes exceeds limit of %d", len(image), maxSize))
	}
	return nil
}
