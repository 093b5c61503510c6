// Package scoring computes field match scores and document accuracies.
// Scores are normalized edit-distance similarities in [0,1]; the functions
// are pure so the runner and verification workflow share them.
package scoring

import (
	"regexp"
	"sort"
	"strings"

	"github.com/formbench/formbench/internal/domain/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize lowercases the input and collapses whitespace runs to single
// spaces so formatting noise does not count against a match.
func Normalize(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.ToLower(s)
}

// Levenshtein computes the rune-level edit distance between two strings.
func Levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)

	matrix := make([][]int, len(ar)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(br)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(br); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ar); i++ {
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(ar)][len(br)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Similarity returns 1 - distance/maxLen over the normalized inputs,
// clamped to [0,1]. Two empty strings are identical (1.0).
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	maxLen := len([]rune(na))
	if l := len([]rune(nb)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	sim := 1.0 - float64(Levenshtein(na, nb))/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// MatchScore scores an extracted value against the expected one: an exact
// match after normalization is 1.0, otherwise the edit-distance similarity.
func MatchScore(expected, extracted string) float64 {
	if Normalize(expected) == Normalize(extracted) {
		return 1.0
	}
	return Similarity(expected, extracted)
}

// MatchFields pairs every expected field value with its best match across
// all OCR lines and region full texts. Fields in a synthetic batch are all
// ground truth, so every matched field is marked important.
func MatchFields(values model.FieldValues, ocrRegions []model.OCRRegion) []model.ExtractedField {
	// Stable field order keeps results and exports deterministic.
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.ExtractedField, 0, len(names))
	for _, name := range names {
		expected := values[name]

		var bestText string
		var bestScore float64
		var bestConfidence float64

		for _, region := range ocrRegions {
			for _, line := range region.Lines {
				if score := MatchScore(expected, line.Text); score > bestScore {
					bestScore = score
					bestText = line.Text
					bestConfidence = line.Confidence
				}
			}
			if score := MatchScore(expected, region.FullText); score > bestScore {
				bestScore = score
				bestText = region.FullText
				bestConfidence = regionConfidence(region)
			}
		}

		fields = append(fields, model.ExtractedField{
			FieldName:          name,
			ExpectedValue:      expected,
			ExtractedValue:     bestText,
			Confidence:         bestConfidence,
			MatchScore:         bestScore,
			IsImportant:        true,
			VerificationStatus: model.VerificationUnverified,
		})
	}
	return fields
}

// regionConfidence averages the line confidences of a region.
func regionConfidence(region model.OCRRegion) float64 {
	if len(region.Lines) == 0 {
		return 0
	}
	var sum float64
	for _, line := range region.Lines {
		sum += line.Confidence
	}
	return sum / float64(len(region.Lines))
}

// DocumentAccuracy returns the mean match score over important fields with
// a non-empty expected value. When nothing is scorable it returns (0, true)
// so callers can flag the document instead of reporting a fake zero.
func DocumentAccuracy(fields []model.ExtractedField) (float64, bool) {
	var sum float64
	var count int
	for _, f := range fields {
		if !f.IsImportant || f.ExpectedValue == "" {
			continue
		}
		sum += f.MatchScore
		count++
	}
	if count == 0 {
		return 0, true
	}
	return sum / float64(count), false
}
