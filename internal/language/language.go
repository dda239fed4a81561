// Package language detects the script/style of user text and expands a query
// into the normalized variants the indexes were built over. Full
// transliteration is owned by the ingestion tooling; the romanization here
// is a best-effort mapping good enough for recall-biased matching.
package language

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Style tags mirror the ingestion-side language tagging.
const (
	StyleHindi        = "hi"
	StyleGujarati     = "gu"
	StyleEnglish      = "en"
	StyleHindiLatin   = "hi_latn"
	StyleGujaratiLatn = "gu_latn"
)

var whitespaceRe = regexp.MustCompile(`\s+`)
var latinWordRe = regexp.MustCompile(`[a-zA-Z]+`)

var hindiHintWords = map[string]struct{}{
	"kaise": {}, "kya": {}, "kyu": {}, "nahi": {}, "hai": {},
	"aap": {}, "tum": {}, "bhagwan": {}, "prarthana": {},
}

var gujaratiHintWords = map[string]struct{}{
	"kem": {}, "cho": {}, "shu": {}, "tame": {}, "hu": {},
	"bhagvan": {}, "chhe": {}, "mara": {},
}

// Service implements style detection and query variant generation.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// NormalizeText applies NFKC and collapses whitespace.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(norm.NFKC.String(text), " "))
}

type scriptCounts struct {
	devanagari int
	gujarati   int
	latin      int
}

func countScripts(text string) scriptCounts {
	var counts scriptCounts
	for _, r := range text {
		switch {
		case r >= 0x0900 && r <= 0x097F:
			counts.devanagari++
		case r >= 0x0A80 && r <= 0x0AFF:
			counts.gujarati++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			counts.latin++
		}
	}
	return counts
}

// DetectStyle classifies the dominant script of the message, falling back to
// Latin hint-word scoring for romanized Hindi/Gujarati.
func (s *Service) DetectStyle(text string) string {
	text = NormalizeText(text)
	counts := countScripts(text)

	if counts.devanagari > counts.gujarati && counts.devanagari >= counts.latin {
		return StyleHindi
	}
	if counts.gujarati > counts.devanagari && counts.gujarati >= counts.latin {
		return StyleGujarati
	}
	return latinStyleGuess(text)
}

func latinStyleGuess(text string) string {
	hiScore, guScore := 0, 0
	for _, word := range latinWordRe.FindAllString(strings.ToLower(text), -1) {
		if _, ok := hindiHintWords[word]; ok {
			hiScore++
		}
		if _, ok := gujaratiHintWords[word]; ok {
			guScore++
		}
	}
	if guScore > hiScore && guScore > 0 {
		return StyleGujaratiLatn
	}
	if hiScore > 0 {
		return StyleHindiLatin
	}
	return StyleEnglish
}

// Variants expands a query into the matching variants stored at ingestion
// time: the normalized text, its lowercase form, and a romanized form for
// Indic-script input. Order is stable, duplicates removed.
func (s *Service) Variants(query, style string) []string {
	normalized := NormalizeText(query)
	if normalized == "" {
		return nil
	}

	candidates := []string{normalized, strings.ToLower(normalized)}
	if latin := RomanizeIndic(normalized); latin != "" && latin != normalized {
		candidates = append(candidates, latin, strings.ToLower(latin))
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// RomanizeIndic maps Devanagari and Gujarati characters onto an approximate
// Latin rendering. Consonants carry the inherent "a" unless followed by a
// vowel sign or virama, with the word-final schwa dropped as spoken Hindi
// and Gujarati do. Unknown runes pass through unchanged.
func RomanizeIndic(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(runes) * 2)
	for i, r := range runes {
		latin, ok := indicToLatin[r]
		if !ok {
			b.WriteRune(r)
			continue
		}
		b.WriteString(latin)
		if isIndicConsonant(r) && needsInherentVowel(runes, i) {
			b.WriteByte('a')
		}
	}
	return b.String()
}

func isIndicConsonant(r rune) bool {
	return (r >= 0x0915 && r <= 0x0939) || (r >= 0x0A95 && r <= 0x0AB9) || r == 'ळ'
}

func isVowelSignOrVirama(r rune) bool {
	return (r >= 0x093E && r <= 0x094D) || (r >= 0x0ABE && r <= 0x0ACD)
}

func needsInherentVowel(runes []rune, i int) bool {
	if i+1 >= len(runes) || !isIndicLetter(runes[i+1]) {
		// Word-final consonant: schwa dropped.
		return false
	}
	return !isVowelSignOrVirama(runes[i+1])
}

func isIndicLetter(r rune) bool {
	return (r >= 0x0900 && r <= 0x097F) || (r >= 0x0A80 && r <= 0x0AFF)
}

var indicToLatin = map[rune]string{
	// Devanagari vowels and consonants.
	'अ': "a", 'आ': "aa", 'इ': "i", 'ई': "i", 'उ': "u", 'ऊ': "u",
	'ए': "e", 'ऐ': "ai", 'ओ': "o", 'औ': "au", 'ऋ': "ri",
	'क': "k", 'ख': "kh", 'ग': "g", 'घ': "gh", 'ङ': "n",
	'च': "ch", 'छ': "chh", 'ज': "j", 'झ': "jh", 'ञ': "n",
	'ट': "t", 'ठ': "th", 'ड': "d", 'ढ': "dh", 'ण': "n",
	'त': "t", 'थ': "th", 'द': "d", 'ध': "dh", 'न': "n",
	'प': "p", 'फ': "ph", 'ब': "b", 'भ': "bh", 'म': "m",
	'य': "y", 'र': "r", 'ल': "l", 'व': "v",
	'श': "sh", 'ष': "sh", 'स': "s", 'ह': "h",
	'ा': "a", 'ि': "i", 'ी': "i", 'ु': "u", 'ू': "u",
	'े': "e", 'ै': "ai", 'ो': "o", 'ौ': "au", 'ृ': "ri",
	'ं': "n", 'ः': "h", '्': "",
	'०': "0", '१': "1", '२': "2", '३': "3", '४': "4",
	'५': "5", '६': "6", '७': "7", '८': "8", '९': "9",

	// Gujarati vowels and consonants.
	'અ': "a", 'આ': "aa", 'ઇ': "i", 'ઈ': "i", 'ઉ': "u", 'ઊ': "u",
	'એ': "e", 'ઐ': "ai", 'ઓ': "o", 'ઔ': "au",
	'ક': "k", 'ખ': "kh", 'ગ': "g", 'ઘ': "gh",
	'ચ': "ch", 'છ': "chh", 'જ': "j", 'ઝ': "jh",
	'ટ': "t", 'ઠ': "th", 'ડ': "d", 'ઢ': "dh", 'ણ': "n",
	'ત': "t", 'થ': "th", 'દ': "d", 'ધ': "dh", 'ન': "n",
	'પ': "p", 'ફ': "ph", 'બ': "b", 'ભ': "bh", 'મ': "m",
	'ય': "y", 'ર': "r", 'લ': "l", 'વ': "v",
	'શ': "sh", 'ષ': "sh", 'સ': "s", 'હ': "h", 'ળ': "l",
	'ા': "a", 'િ': "i", 'ી': "i", 'ુ': "u", 'ૂ': "u",
	'ે': "e", 'ૈ': "ai", 'ો': "o", 'ૌ': "au",
	'ં': "n", 'ઃ': "h", '્': "",
	'૦': "0", '૧': "1", '૨': "2", '૩': "3", '૪': "4",
	'૫': "5", '૬': "6", '૭': "7", '૮': "8", '૯': "9",
}
