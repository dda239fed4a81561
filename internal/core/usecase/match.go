package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/skylarkoo7/tartam-rag/internal/core/domain"
)

// Structured prakran numbers at or above this confidence are authoritative:
// a mismatch rejects the unit without consulting the free-text fallbacks.
const prakranConfidenceAuthoritative = 0.8

// Bounded prefix of unit text scanned by the free-text section fallback.
const prakranScanPrefix = 900

// Diversification caps for range queries.
const (
	maxDiversifiedPrakrans = 24
	maxUnitsPerPrakran     = 2
)

var prakranNameExactRe = regexp.MustCompile(`^prakran\s+(\d{1,3})$`)

// UnitMatchesQuery reports whether a unit satisfies every explicit
// structural constraint in the context: work name, verse number (by recorded
// number or prakran-relative index), and section membership.
func UnitMatchesQuery(unit domain.RetrievedUnit, query domain.QueryContext, maxSpan int) bool {
	if query.GranthName != "" && unit.GranthName != query.GranthName {
		return false
	}

	if query.ChopaiNumber != nil {
		parsed := extractFirstNumber(normalizeDigits(unit.ChopaiNumber))
		numberMatch := parsed != nil && *parsed == *query.ChopaiNumber
		indexMatch := unit.PrakranChopaiIndex != nil && *unit.PrakranChopaiIndex == *query.ChopaiNumber
		if !numberMatch && !indexMatch {
			return false
		}
	}

	if numbers := query.PrakranNumbers(maxSpan); len(numbers) > 0 {
		matched := false
		for _, number := range numbers {
			if UnitMatchesPrakran(unit, number) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// UnitMatchesPrakran resolves section membership through a ranked fallback
// chain: the structured section number field, then an exact "prakran N"
// section name, then boundary-safe numeric occurrences in a bounded prefix
// of the unit's raw and normalized text. Section numbers frequently survive
// only in free text, so the weakest tier stays in the chain but never
// overrides a confident structured field.
func UnitMatchesPrakran(unit domain.RetrievedUnit, prakranNumber int) bool {
	if unit.PrakranNumber != nil {
		if *unit.PrakranNumber == prakranNumber {
			return true
		}
		if unit.PrakranConfidence >= prakranConfidenceAuthoritative {
			return false
		}
	}

	prakranName := strings.ToLower(strings.TrimSpace(unit.PrakranName))
	if match := prakranNameExactRe.FindStringSubmatch(prakranName); match != nil {
		n, err := strconv.Atoi(match[1])
		return err == nil && n == prakranNumber
	}

	candidate := strings.ToLower(strings.Join([]string{
		normalizeDigits(unit.PrakranName),
		normalizeDigits(textPrefix(unit.ChunkText, prakranScanPrefix)),
		normalizeDigits(textPrefix(unit.NormalizedText, prakranScanPrefix)),
	}, " "))
	if strings.TrimSpace(candidate) == "" {
		return false
	}

	return containsBoundedNumber(candidate, strconv.Itoa(prakranNumber))
}

// containsBoundedNumber reports a digit-boundary-safe occurrence of target:
// the match may not touch adjacent digits, which also admits the common
// page-marker forms "-N-", "(N", and "N)".
func containsBoundedNumber(text, target string) bool {
	if target == "" {
		return false
	}
	for idx := 0; idx < len(text); {
		pos := strings.Index(text[idx:], target)
		if pos < 0 {
			return false
		}
		pos += idx

		beforeOK := pos == 0 || !isASCIIDigit(text[pos-1])
		afterIdx := pos + len(target)
		afterOK := afterIdx >= len(text) || !isASCIIDigit(text[afterIdx])
		if beforeOK && afterOK {
			return true
		}
		idx = pos + len(target)
	}
	return false
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func textPrefix(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	// Back off to a rune boundary so the cut never splits a character.
	for limit > 0 && text[limit]&0xC0 == 0x80 {
		limit--
	}
	return text[:limit]
}

// applyConstraints filters candidates against the context and applies the
// ambiguity guard. A constrained request that filters down to nothing stays
// empty: callers must treat it as "not found", never as "ignore the
// constraint".
func applyConstraints(results []domain.RetrievalResult, query domain.QueryContext, maxSpan int) domain.RetrievalOutcome {
	if !query.HasReferenceConstraint() {
		return domain.RetrievalOutcome{Results: results}
	}

	filtered := make([]domain.RetrievalResult, 0, len(results))
	for _, result := range results {
		if UnitMatchesQuery(result.Unit, query, maxSpan) {
			filtered = append(filtered, result)
		}
	}

	// A dangling numeric reference without a work anchor that resolves to
	// multiple works must not silently pick one.
	if query.GranthName == "" && (query.ChopaiNumber != nil || query.HasPrakranConstraint()) {
		granths := map[string]struct{}{}
		for _, result := range filtered {
			granths[result.Unit.GranthName] = struct{}{}
		}
		if len(granths) > 1 {
			return domain.RetrievalOutcome{Constrained: true, Ambiguous: true}
		}
	}

	return domain.RetrievalOutcome{Results: filtered, Constrained: true}
}

// diversifyRange keeps a range query from being crowded out by one heavily
// indexed section: at most maxUnitsPerPrakran candidates per requested
// section number enter the primary result, overflow fills remaining slots by
// original score order.
func diversifyRange(results []domain.RetrievalResult, numbers []int, limit int) []domain.RetrievalResult {
	if len(results) == 0 || len(numbers) == 0 || limit <= 0 {
		if limit > 0 && len(results) > limit {
			return results[:limit]
		}
		return results
	}
	if len(numbers) > maxDiversifiedPrakrans {
		numbers = numbers[:maxDiversifiedPrakrans]
	}

	perNumber := map[int]int{}
	primary := make([]domain.RetrievalResult, 0, limit)
	var overflow []domain.RetrievalResult

	for _, result := range results {
		if len(primary) >= limit {
			break
		}
		assigned := -1
		for _, number := range numbers {
			if UnitMatchesPrakran(result.Unit, number) {
				assigned = number
				break
			}
		}
		if assigned >= 0 && perNumber[assigned] >= maxUnitsPerPrakran {
			overflow = append(overflow, result)
			continue
		}
		if assigned >= 0 {
			perNumber[assigned]++
		}
		primary = append(primary, result)
	}

	for _, result := range overflow {
		if len(primary) >= limit {
			break
		}
		primary = append(primary, result)
	}
	return primary
}
