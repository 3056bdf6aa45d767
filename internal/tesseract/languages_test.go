package tesseract

import (
	"reflect"
	"testing"
)

func TestTraineddataForDefaults(t *testing.T) {
	got := TraineddataFor([]string{"zh-CN", "en-US"})
	want := []string{"chi_sim", "eng"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestTraineddataForPassesThroughAndDedupes(t *testing.T) {
	got := TraineddataFor([]string{"en_GB", "eng", "zh-Hant-TW", "", "chi_sim", "zh-Hans"})
	want := []string{"eng", "chi_tra", "chi_sim"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
