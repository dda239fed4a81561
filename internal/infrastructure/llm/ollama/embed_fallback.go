package ollama

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const pseudoEmbedDim = 256

// pseudoEmbed maps text to a stable hashed bag-of-words vector. It is not a
// semantic embedding; it only has to be deterministic so the same unit lands
// on the same point across reindex runs.
func pseudoEmbed(text string) []float32 {
	vector := make([]float32, pseudoEmbedDim)
	for _, token := range tokenizeForHash(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum32()
		idx := int(sum % pseudoEmbedDim)
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vector[idx] += sign
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}

func tokenizeForHash(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
