package usecase

import "testing"

func TestValidateImageBoundaries(t *testing.T) {
	if KindOf(ValidateImage(nil, DefaultMaxImageSize)) != KindEmptyImage {
		t.Fatal("expected empty image error for nil buffer")
	}
	if KindOf(ValidateImage([]byte{}, DefaultMaxImageSize)) != KindEmptyImage {
		t.Fatal("expected empty image error for zero-length buffer")
	}

	atLimit := make([]byte, 10_485_760)
	if err := ValidateImage(atLimit, DefaultMaxImageSize); err != nil {
		t.Fatalf("expected buffer at the limit to pass, got %v", err)
	}

	overLimit := make([]byte, 10_485_761)
	if KindOf(ValidateImage(overLimit, DefaultMaxImageSize)) != KindImageTooLarge {
		t.Fatal("expected image too large one byte over the limit")
	}
}

func TestValidateImageCustomLimit(t *testing.T) {
	if err := ValidateImage([]byte("abcd"), 4); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if KindOf(ValidateImage([]byte("abcde"), 4)) != KindImageTooLarge {
		t.Fatal("expected image too large")
	}
}
