package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/scoring"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "john smith", scoring.Normalize("  John   Smith "))
	assert.Equal(t, "cv-2024-001", scoring.Normalize("CV-2024-001"))
	assert.Equal(t, "", scoring.Normalize("   \t\n"))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, scoring.Levenshtein("kitten", "kitten"))
	assert.Equal(t, 3, scoring.Levenshtein("kitten", "sitting"))
	assert.Equal(t, 5, scoring.Levenshtein("", "hello"))
	// Rune level, not byte level.
	assert.Equal(t, 1, scoring.Levenshtein("café", "cafe"))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, scoring.Similarity("John Smith", "john  smith"), 1e-9)
	assert.InDelta(t, 1.0, scoring.Similarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, scoring.Similarity("abc", "xyz"), 1e-9)

	// One edit over ten characters.
	sim := scoring.Similarity("john smith", "john smyth")
	assert.InDelta(t, 0.9, sim, 1e-9)

	// Never negative, even for wildly different lengths.
	assert.GreaterOrEqual(t, scoring.Similarity("a", "completely different"), 0.0)
}

func TestMatchScore(t *testing.T) {
	assert.InDelta(t, 1.0, scoring.MatchScore("John Smith", "JOHN SMITH"), 1e-9)
	assert.Less(t, scoring.MatchScore("John Smith", "Jane Smith"), 1.0)
}

func TestMatchFieldsPicksBestLine(t *testing.T) {
	values := model.FieldValues{
		"name":        "John Smith",
		"case_number": "CV-2024-001",
	}
	regions := []model.OCRRegion{
		{
			RegionID: 0,
			FullText: "John Smith CV-2024-001",
			Lines: []model.OCRLine{
				{Text: "John Smlth", Confidence: 0.7},
				{Text: "John Smith", Confidence: 0.92},
			},
		},
		{
			RegionID: 1,
			Lines: []model.OCRLine{
				{Text: "CV-2024-001", Confidence: 0.88},
			},
		},
	}

	fields := scoring.MatchFields(values, regions)
	assert.Len(t, fields, 2)

	// Deterministic alphabetical order.
	assert.Equal(t, "case_number", fields[0].FieldName)
	assert.Equal(t, "name", fields[1].FieldName)

	assert.Equal(t, "CV-2024-001", fields[0].ExtractedValue)
	assert.InDelta(t, 1.0, fields[0].MatchScore, 1e-9)

	assert.Equal(t, "John Smith", fields[1].ExtractedValue)
	assert.InDelta(t, 1.0, fields[1].MatchScore, 1e-9)
	assert.InDelta(t, 0.92, fields[1].Confidence, 1e-9)

	for _, f := range fields {
		assert.True(t, f.IsImportant)
		assert.Equal(t, model.VerificationUnverified, f.VerificationStatus)
	}
}

func TestDocumentAccuracy(t *testing.T) {
	fields := []model.ExtractedField{
		{ExpectedValue: "a", MatchScore: 1.0, IsImportant: true},
		{ExpectedValue: "b", MatchScore: 0.5, IsImportant: true},
		{ExpectedValue: "c", MatchScore: 0.0, IsImportant: false}, // excluded
		{ExpectedValue: "", MatchScore: 0.0, IsImportant: true},  // excluded
	}
	acc, none := scoring.DocumentAccuracy(fields)
	assert.False(t, none)
	assert.InDelta(t, 0.75, acc, 1e-9)
}

func TestDocumentAccuracyNothingScorable(t *testing.T) {
	acc, none := scoring.DocumentAccuracy(nil)
	assert.True(t, none)
	assert.Zero(t, acc)

	acc, none = scoring.DocumentAccuracy([]model.ExtractedField{
		{ExpectedValue: "", IsImportant: true},
	})
	assert.True(t, none)
	assert.Zero(t, acc)
}
