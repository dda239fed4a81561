package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

// Section and verse keywords across the supported scripts. Spelling variants
// cover the common roman, Devanagari, and Gujarati renderings seen in user
// messages.
const (
	prakranWords = `(?:prakran|prakaran|प्रकरण|पकरण|પ્રકરણ|પકરણ)`
	chopaiWords  = `(?:chopai|chaupai|ચોપાઈ|ચોપાઇ|चौपाई|चोपाई)`

	// Words and symbols meaning "to"/"through" in the supported languages.
	rangeConnectors = `(?:to|se|thi|થી|से|[-–—])`
)

var (
	prakranWordRe = regexp.MustCompile(`(?i)` + prakranWords)
	chopaiWordRe  = regexp.MustCompile(`(?i)` + chopaiWords)

	prakranRangeRe    = regexp.MustCompile(`(?i)` + prakranWords + `\s*(\d{1,3})\s*` + rangeConnectors + `\s*(\d{1,3})`)
	prakranRangeRevRe = regexp.MustCompile(`(?i)(\d{1,3})\s*` + rangeConnectors + `\s*(\d{1,3})\s*` + prakranWords)
	prakranSingleRe   = regexp.MustCompile(`(?i)` + prakranWords + `\s*(\d{1,3})`)
	chopaiDirectRe    = regexp.MustCompile(`(?i)` + chopaiWords + `\s*(\d{1,4})`)
	chopaiReverseRe   = regexp.MustCompile(`(?i)(\d{1,4})\s*(?:th|st|nd|rd)?\s*` + chopaiWords)

	firstNumberRe = regexp.MustCompile(`\d{1,4}`)
	deCamelRe     = regexp.MustCompile(`([a-z])([A-Z])`)
	normKeyRe     = regexp.MustCompile(`[^a-z0-9\x{0900}-\x{097F}\x{0A80}-\x{0AFF}]+`)
)

var summaryHintTokens = []string{
	"summary", "summarize", "explain", "explanation",
	"samjhao", "samjhaao", "saransh", "saar",
	"kya", "bataya", "shu", "kahyu", "kahe",
}

var countHintTokens = []string{
	"count", "howmany", "kitni", "ketli", "ketla", "number",
}

var followupHintTokens = []string{
	"usme", "isme", "tema", "ae", "te",
	"that", "this", "same", "upar", "uparnu",
}

// ReferenceParser turns a raw user message plus the known work vocabulary
// and the prior turn's state into a structured QueryContext. Parsing never
// fails: absence of signal yields an all-null general-question context.
type ReferenceParser struct {
	synonyms map[string][]string
	maxSpan  int
}

// NewReferenceParser builds a parser with an injectable work-name synonym
// table keyed by normalized name fragment. A nil table means no curated
// vernacular aliases beyond the mechanical ones.
func NewReferenceParser(synonyms map[string][]string, maxSpan int) *ReferenceParser {
	if maxSpan <= 0 {
		maxSpan = domain.DefaultPrakranMaxSpan
	}
	return &ReferenceParser{synonyms: synonyms, maxSpan: maxSpan}
}

// Parse derives the QueryContext for one turn. filterGranth and
// filterPrakran are explicit client-side filters: the work filter always
// wins over detection, the section filter applies only when the message
// itself carried no section number and no range.
func (p *ReferenceParser) Parse(
	message string,
	granths []string,
	prior domain.SessionContextState,
	filterGranth, filterPrakran string,
) domain.QueryContext {
	text := normalizeNFKC(message)
	lowered := strings.ToLower(text)

	detectedGranth := p.detectGranth(message, granths)
	filterGranth = strings.TrimSpace(filterGranth)
	granthName := detectedGranth
	if filterGranth != "" {
		granthName = filterGranth
	}

	rangeStart, rangeEnd, hasRange := extractPrakranRange(lowered)
	var prakranNumber *int
	if !hasRange {
		prakranNumber = extractSinglePrakran(lowered)
	}
	chopaiNumber := extractChopaiNumber(lowered)

	if n := extractFirstNumber(normalizeDigits(filterPrakran)); n != nil && prakranNumber == nil && !hasRange {
		prakranNumber = n
	}

	summaryHint := hasAnyToken(lowered, summaryHintTokens) || hasRange
	asksChopai := chopaiWordRe.MatchString(lowered)
	asksPrakran := prakranWordRe.MatchString(lowered)
	countHint := hasAnyToken(lowered, countHintTokens) && asksChopai

	intent := domain.IntentGeneralQA
	switch {
	case countHint:
		intent = domain.IntentCountChopai
	case chopaiNumber != nil && (asksChopai || asksPrakran):
		intent = domain.IntentSpecificChopai
	case hasRange:
		intent = domain.IntentPrakranRangeSummary
	case prakranNumber != nil && summaryHint:
		intent = domain.IntentPrakranSummary
	}

	carried := false
	if asksPrakran || asksChopai || mentionsFollowup(lowered) {
		if granthName == "" && prior.GranthName != "" {
			granthName = prior.GranthName
			carried = true
		}
		if prakranNumber == nil && !hasRange && prior.PrakranNumber != nil {
			n := *prior.PrakranNumber
			prakranNumber = &n
			carried = true
		}
		// Carrying a whole range forward is expensive, so it takes a
		// stricter bar: the message must ask about prakrans and contain a
		// follow-up cue. The single-number form always wins over a prior
		// range so a context never holds both.
		if !hasRange && prakranNumber == nil &&
			prior.PrakranRangeStart != nil && prior.PrakranRangeEnd != nil &&
			asksPrakran && mentionsFollowup(lowered) {
			rangeStart, rangeEnd = *prior.PrakranRangeStart, *prior.PrakranRangeEnd
			hasRange = true
			carried = true
		}
	}

	var notes []string
	if carried {
		notes = append(notes, "Used previous conversation context for missing references.")
	}
	if filterGranth != "" {
		notes = append(notes, fmt.Sprintf("Applied granth filter: %s.", filterGranth))
	}
	if strings.TrimSpace(filterPrakran) != "" {
		notes = append(notes, fmt.Sprintf("Applied prakran filter: %s.", filterPrakran))
	}

	ctxOut := domain.QueryContext{
		Intent:          intent,
		GranthName:      granthName,
		PrakranNumber:   prakranNumber,
		ChopaiNumber:    chopaiNumber,
		RequiresSummary: summaryHint || intent == domain.IntentPrakranSummary || intent == domain.IntentPrakranRangeSummary,
		RequiresCount:   countHint,
		ContextCarried:  carried,
		Notes:           notes,
	}
	if hasRange {
		ctxOut.PrakranRangeStart = &rangeStart
		ctxOut.PrakranRangeEnd = &rangeEnd
	}
	return ctxOut
}

// MaxSpan is the configured cap on how many sections a range may expand to.
func (p *ReferenceParser) MaxSpan() int {
	return p.maxSpan
}

// detectGranth matches known work names against the flattened message.
// Every work contributes an alias set; the longest matching alias wins so
// "shri singaar" beats a bare "singaar" substring of another work.
func (p *ReferenceParser) detectGranth(text string, granths []string) string {
	flat := normKey(text)
	if flat == "" || len(granths) == 0 {
		return ""
	}

	best := ""
	bestLen := 0
	for _, granth := range granths {
		for _, alias := range p.granthAliases(granth) {
			if alias == "" || !strings.Contains(flat, alias) {
				continue
			}
			if len(alias) > bestLen {
				best = granth
				bestLen = len(alias)
			}
			break
		}
	}
	return best
}

func (p *ReferenceParser) granthAliases(granth string) []string {
	raw := strings.TrimSpace(granth)
	key := normKey(raw)

	seen := map[string]struct{}{}
	var aliases []string
	add := func(alias string) {
		alias = normKey(alias)
		if alias == "" {
			return
		}
		if _, ok := seen[alias]; ok {
			return
		}
		seen[alias] = struct{}{}
		aliases = append(aliases, alias)
	}

	add(key)
	add(deCamelRe.ReplaceAllString(raw, "$1 $2"))

	base := strings.ReplaceAll(strings.ReplaceAll(key, "shri", ""), "sri", "")
	add(base)
	add(strings.ReplaceAll(base, "aa", "a"))

	for token, values := range p.synonyms {
		if !strings.Contains(key, normKey(token)) {
			continue
		}
		for _, value := range values {
			add(value)
		}
	}
	return aliases
}

// BuildQueryHints derives reference-shaped retrieval hints from the parsed
// context: the work name, keyword+number phrases in every script, and the
// page-marker form sections are printed in. Capped at 10 deduplicated hints.
func BuildQueryHints(query domain.QueryContext) []string {
	var hints []string
	if query.GranthName != "" {
		hints = append(hints, query.GranthName)
	}
	if query.PrakranNumber != nil {
		n := strconv.Itoa(*query.PrakranNumber)
		hints = append(hints, "prakran "+n, "प्रकरण "+n, "પ્રકરણ "+n, "-"+n+"-")
	}
	if query.PrakranRangeStart != nil && query.PrakranRangeEnd != nil {
		for _, number := range query.PrakranNumbers(8) {
			n := strconv.Itoa(number)
			hints = append(hints, "prakran "+n, "-"+n+"-")
		}
	}
	if query.ChopaiNumber != nil {
		n := strconv.Itoa(*query.ChopaiNumber)
		hints = append(hints, "chopai "+n, "chaupai "+n, "चौपाई "+n, "ચોપાઈ "+n)
	}

	seen := map[string]struct{}{}
	deduped := make([]string, 0, len(hints))
	for _, hint := range hints {
		clean := strings.TrimSpace(hint)
		key := strings.ToLower(clean)
		if clean == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, clean)
	}
	if len(deduped) > 10 {
		deduped = deduped[:10]
	}
	return deduped
}

func extractPrakranRange(text string) (start, end int, ok bool) {
	source := normalizeDigits(text)
	match := prakranRangeRe.FindStringSubmatch(source)
	if match == nil {
		match = prakranRangeRevRe.FindStringSubmatch(source)
	}
	if match == nil {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(match[1])
	end, err2 := strconv.Atoi(match[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func extractSinglePrakran(text string) *int {
	match := prakranSingleRe.FindStringSubmatch(normalizeDigits(text))
	if match == nil {
		return nil
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &n
}

func extractChopaiNumber(text string) *int {
	source := normalizeDigits(text)
	match := chopaiDirectRe.FindStringSubmatch(source)
	if match == nil {
		match = chopaiReverseRe.FindStringSubmatch(source)
	}
	if match == nil {
		return nil
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &n
}

func extractFirstNumber(text string) *int {
	match := firstNumberRe.FindString(text)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}

func mentionsFollowup(text string) bool {
	return hasAnyToken(text, followupHintTokens)
}

func hasAnyToken(text string, tokens []string) bool {
	flat := normKey(text)
	for _, token := range tokens {
		if strings.Contains(flat, token) {
			return true
		}
	}
	return false
}

// normalizeDigits maps Devanagari and Gujarati digits onto ASCII so one set
// of numeric patterns covers all supported scripts.
func normalizeDigits(text string) string {
	if text == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '०' && r <= '९':
			return '0' + (r - '०')
		case r >= '૦' && r <= '૯':
			return '0' + (r - '૦')
		}
		return r
	}, text)
}

func normalizeNFKC(text string) string {
	return strings.TrimSpace(norm.NFKC.String(text))
}

// normKey flattens text into a comparable key: NFKC, digit-normalized,
// lowercased, stripped to alphanumerics plus the Devanagari and Gujarati
// script ranges.
func normKey(text string) string {
	flat := strings.ToLower(normalizeDigits(normalizeNFKC(text)))
	return normKeyRe.ReplaceAllString(flat, "")
}
