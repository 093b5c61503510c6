// Package synthgen renders synthetic filled court forms: it overlays
// generated field values onto a form template at the positions its field
// mappings describe, producing documents with known ground truth.
package synthgen

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/support/exception"
)

const moduleName = "synthgen"

const defaultFontSize = 12

// Value pools keyed by field type.
var fieldTypePools = map[string][]string{
	"numeric_short": {
		"123", "456", "789", "012", "345", "678", "901", "234",
		"5678", "9012", "1234", "4567", "8901", "42", "307", "88",
	},
	"text_short": {
		"TX", "CA", "NY", "FL", "IL", "PA", "OH", "GA",
		"Civil", "Criminal", "Family", "Probate", "Juvenile",
		"Plaintiff", "Defendant", "Appellant", "Respondent",
		"Dallas", "Harris", "Travis", "Bexar", "Tarrant", "El Paso",
	},
	"sentence": {
		"The defendant failed to appear at the scheduled hearing.",
		"Plaintiff requests summary judgment on all counts.",
		"Motion to dismiss is hereby granted.",
		"The court finds sufficient evidence to proceed.",
		"All parties have been duly notified of the hearing date.",
		"Defendant is ordered to pay restitution to the plaintiff.",
		"The case is hereby continued to the next available date.",
		"Witness testimony corroborates the plaintiff's claims.",
	},
	"full_name": {
		"John Smith", "Jane Doe", "Robert Johnson", "Maria Garcia",
		"Michael Brown", "Emily Davis", "David Wilson", "Sarah Miller",
		"James Taylor", "Jennifer Anderson", "William Thomas", "Linda Martinez",
		"Charles Jordan", "Patricia Williams", "Daniel Lee", "Angela Robinson",
		"Christopher Harris", "Amanda Clark", "Matthew Wright", "Stephanie King",
	},
	"day_month": {
		"January 15", "February 20", "March 10", "April 5",
		"May 25", "June 30", "July 4", "August 15",
		"September 1", "October 12", "November 28", "December 25",
		"January 3", "March 22", "June 17", "September 30",
	},
	"2_digit_year": {"20", "21", "22", "23", "24", "25", "26"},
	"4_digit_year": {"2020", "2021", "2022", "2023", "2024", "2025", "2026"},
}

// Name-based fallback pools for mappings without a field type.
var namePools = map[string][]string{
	"defendant_name": fieldTypePools["full_name"],
	"plaintiff_name": {
		"ABC Corporation", "XYZ Inc.", "State of Texas", "City of Dallas",
		"First National Bank", "Johnson & Associates", "Smith Holdings LLC",
	},
	"case_number": {
		"2024-CV-001234", "2024-CV-005678", "2023-CV-009012", "2024-CR-003456",
		"DC-2024-0001", "DC-2024-0042", "CC-2024-1234", "JP-2024-5678",
	},
	"date": {
		"January 15, 2024", "February 20, 2024", "March 10, 2024",
		"April 5, 2024", "May 25, 2024", "June 30, 2024",
	},
}

var (
	fontOnce   sync.Once
	fontParsed *opentype.Font
	fontErr    error
)

func loadFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, exception.NewAppError(moduleName, "failed to parse embedded font", fontErr, exception.KindInternal)
	}
	return fontParsed, nil
}

// Generator renders filled documents deterministically under its seed. Safe
// for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator seeded for reproducible value selection.
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Fill overlays one generated value per field mapping onto the template
// image and returns the rendered PNG together with the ground-truth values.
// options, when it names a field, constrains that field to the given values.
func (g *Generator) Fill(template []byte, mappings model.FieldMappings, options map[string][]string) ([]byte, model.FieldValues, error) {
	if len(mappings) == 0 {
		return nil, nil, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"form has no field mappings defined")
	}

	src, err := engine.DecodeImage(template)
	if err != nil {
		return nil, nil, err
	}
	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	fnt, err := loadFont()
	if err != nil {
		return nil, nil, err
	}

	g.mu.Lock()
	rng := rand.New(rand.NewSource(g.rng.Int63()))
	g.mu.Unlock()

	values := model.FieldValues{}
	for _, m := range mappings {
		value := pickValue(rng, m, options[m.Name])
		values[m.Name] = value

		size := m.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, nil, exception.NewAppError(moduleName, "failed to build font face", err, exception.KindInternal)
		}

		drawer := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(parseHexColor(m.FontColor)),
			Face: face,
			// The mapping's (x, y) is the text's top-left corner.
			Dot: fixed.P(m.X, m.Y+face.Metrics().Ascent.Ceil()),
		}
		drawer.DrawString(value)
		_ = face.Close()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, nil, exception.NewAppError(moduleName, "failed to encode filled form", err, exception.KindInternal)
	}
	return buf.Bytes(), values, nil
}

// pickValue selects a synthetic value: explicit options first, then the
// mapping's field type pool, then name-based pools, then short text.
func pickValue(rng *rand.Rand, m model.FieldMapping, options []string) string {
	if len(options) > 0 {
		return options[rng.Intn(len(options))]
	}
	if pool, ok := fieldTypePools[m.FieldType]; ok {
		return pool[rng.Intn(len(pool))]
	}
	lower := strings.ToLower(m.Name)
	for key, pool := range namePools {
		if strings.Contains(lower, key) {
			return pool[rng.Intn(len(pool))]
		}
	}
	pool := fieldTypePools["text_short"]
	return pool[rng.Intn(len(pool))]
}

// parseHexColor parses "#rrggbb", returning black for anything else.
func parseHexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.Black
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}
}
