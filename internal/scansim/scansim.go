// Package scansim degrades clean document images so they resemble flatbed
// scans of paper forms. Batches built from rendered templates go through it
// before OCR benchmarking.
package scansim

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/formbench/formbench/internal/engine"
	"github.com/formbench/formbench/internal/support/exception"
)

const moduleName = "scansim"

// Preset bundles the degradation parameters applied to a document.
type Preset struct {
	Name string
	// MaxRotationDeg bounds the random skew angle in either direction.
	MaxRotationDeg float64
	// NoiseSigma is the per-channel noise amplitude, 0..255 scale.
	NoiseSigma float64
	// Brightness is added to every channel, -255..255.
	Brightness float64
	// Contrast scales channel distance from mid-gray.
	Contrast float64
	// PaperTone blends channels toward a warm paper tint, 0..1.
	PaperTone float64
}

var presets = map[string]Preset{
	"light": {
		Name:           "light",
		MaxRotationDeg: 0.7,
		NoiseSigma:     4,
		Brightness:     5,
		Contrast:       0.97,
		PaperTone:      0.04,
	},
	"medium": {
		Name:           "medium",
		MaxRotationDeg: 2.0,
		NoiseSigma:     10,
		Brightness:     -8,
		Contrast:       0.92,
		PaperTone:      0.10,
	},
	"heavy": {
		Name:           "heavy",
		MaxRotationDeg: 4.5,
		NoiseSigma:     22,
		Brightness:     -18,
		Contrast:       0.85,
		PaperTone:      0.18,
	},
}

// LookupPreset resolves a preset by name. Unknown names are a validation
// error so uploads can reject bad presets before touching storage.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, exception.NewAppErrorf(moduleName, exception.KindValidation,
			"unknown scan preset: %s", name)
	}
	return p, nil
}

// PresetNames returns the available preset names.
func PresetNames() []string {
	return []string{"light", "medium", "heavy"}
}

// Simulator applies scan degradation deterministically under its seed. It is
// safe for concurrent use: each Apply call works on its own derived RNG.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulator seeded for reproducible output.
func New(seed int64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

// Apply degrades the PNG or JPEG image bytes with the given preset and
// returns PNG bytes.
func (s *Simulator) Apply(imageData []byte, preset Preset) ([]byte, error) {
	src, err := engine.DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rng := rand.New(rand.NewSource(s.rng.Int63()))
	s.mu.Unlock()

	angle := (rng.Float64()*2 - 1) * preset.MaxRotationDeg
	rotated := rotate(src, angle)
	degraded := adjust(rng, rotated, preset)

	var buf bytes.Buffer
	if err := png.Encode(&buf, degraded); err != nil {
		return nil, exception.NewAppError(moduleName, "failed to encode simulated scan", err, exception.KindInternal)
	}
	return buf.Bytes(), nil
}

// rotate skews the image by angle degrees around its center, filling the
// uncovered corners with white like a scanner lid would.
func rotate(src image.Image, angleDeg float64) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)

	theta := angleDeg * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx := float64(bounds.Dx()) / 2
	cy := float64(bounds.Dy()) / 2

	// Rotation about the image center expressed as a dst-from-src affine.
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, m, src, bounds, xdraw.Over, nil)
	return dst
}

// adjust applies noise, brightness, contrast and paper tint in one pass.
func adjust(rng *rand.Rand, src *image.RGBA, preset Preset) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)

	// Warm off-white paper tone.
	toneR, toneG, toneB := 247.0, 242.0, 230.0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.RGBAAt(x, y)
			r := float64(c.R)
			g := float64(c.G)
			b := float64(c.B)

			if preset.PaperTone > 0 {
				r = r*(1-preset.PaperTone) + toneR*preset.PaperTone
				g = g*(1-preset.PaperTone) + toneG*preset.PaperTone
				b = b*(1-preset.PaperTone) + toneB*preset.PaperTone
			}

			r = (r-128)*preset.Contrast + 128 + preset.Brightness
			g = (g-128)*preset.Contrast + 128 + preset.Brightness
			b = (b-128)*preset.Contrast + 128 + preset.Brightness

			if preset.NoiseSigma > 0 {
				noise := rng.NormFloat64() * preset.NoiseSigma
				r += noise
				g += noise
				b += noise
			}

			dst.SetRGBA(x, y, color.RGBA{
				R: clamp(r),
				G: clamp(g),
				B: clamp(b),
				A: c.A,
			})
		}
	}
	return dst
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
