// Package textquality scores text corrupted by legacy-font PDF extraction.
// Garbled passages are demoted, not dropped: OCR recovery may later repair
// them.
package textquality

import "strings"

// Mojibake marker characters commonly produced when legacy Indic fonts are
// extracted as Latin-1.
const garbledMarkers = "Ÿ¢£¤¥¦§¨©ª«¬®±²³´µ¶·¸¹º»¼½¾¿ÐÑÒÓÔÕÖ×ØÙÚÛÜÝÞß"

const DefaultGarbledThreshold = 0.015

// GarbledRatio returns the fraction of marker and stray control characters
// in text. Zero for empty input.
func GarbledRatio(text string) float64 {
	if text == "" {
		return 0
	}

	markers := 0
	total := 0
	for _, r := range text {
		total++
		if strings.ContainsRune(garbledMarkers, r) {
			markers++
			continue
		}
		if r < 32 && r != '\n' && r != '\t' && r != '\r' {
			markers++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(markers) / float64(total)
}

func IsGarbled(text string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultGarbledThreshold
	}
	return GarbledRatio(text) >= threshold
}

// SafeDisplayText returns text when it is clean enough to show to a user,
// otherwise the fallback.
func SafeDisplayText(text, fallback string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return fallback
	}
	if IsGarbled(cleaned, DefaultGarbledThreshold) {
		return fallback
	}
	return cleaned
}
