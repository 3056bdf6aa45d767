package tesseract

import "strings"

var localeToTraineddata = map[string]string{
	"zh-cn":   "chi_sim",
	"zh-sg":   "chi_sim",
	"zh-hans": "chi_sim",
	"zh-tw":   "chi_tra",
	"zh-hk":   "chi_tra",
	"zh-hant": "chi_tra",
	"zh":      "chi_sim",
	"en":      "eng",
	"ja":      "jpn",
	"ko":      "kor",
	"fr":      "fra",
	"de":      "deu",
	"es":      "spa",
	"it":      "ita",
	"pt":      "por",
	"ru":      "rus",
}

// TraineddataFor maps BCP-47 locale codes such as "zh-CN" or "en-US" onto
// Tesseract language names. Codes without a mapping are passed through as
// given, so callers may also send "eng" or "chi_sim" directly. Order is kept
// and duplicates are dropped.
func TraineddataFor(locales []string) []string {
	out := make([]string, 0, len(locales))
	seen := make(map[string]struct{}, len(locales))
	for _, locale := range locales {
		locale = strings.TrimSpace(locale)
		if locale == "" {
			continue
		}
		name := lookup(locale)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func lookup(locale string) string {
	key := strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
	if name, ok := localeToTraineddata[key]; ok {
		return name
	}
	if i := strings.IndexByte(key, '-'); i > 0 {
		if name, ok := localeToTraineddata[key[:i]]; ok {
			return name
		}
	}
	return locale
}
