// Package palette generates color palettes for the brush toolbar.
//
// Harmonic schemes are derived from a base color by rotating its hue in
// HCL space. The warm, happy and soft schemes are random palettes from
// go-colorful, made reproducible by an explicit seed. The curated scheme
// picks one of a few hand-made five-color palettes by seed.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Errors for palette generation.
var (
	ErrUnknownScheme = errors.New("unknown palette scheme")
	ErrInvalidColor  = errors.New("invalid color")
	ErrInvalidSize   = errors.New("invalid palette size")
)

// MaxSize is the largest palette Generate produces.
const MaxSize = 32

// Scheme names a palette generation strategy.
type Scheme string

const (
	Complementary      Scheme = "complementary"
	Analogous          Scheme = "analogous"
	Triadic            Scheme = "triadic"
	Tetradic           Scheme = "tetradic"
	SplitComplementary Scheme = "split-complementary"
	Monochromatic      Scheme = "monochromatic"
	Warm               Scheme = "warm"
	Happy              Scheme = "happy"
	Soft               Scheme = "soft"
	Curated            Scheme = "curated"
)

var schemes = []Scheme{
	Complementary,
	Analogous,
	Triadic,
	Tetradic,
	SplitComplementary,
	Monochromatic,
	Warm,
	Happy,
	Soft,
	Curated,
}

// presets are the curated palettes.
var presets = [][]string{
	{"#264653", "#2a9d8f", "#e9c46a", "#f4a261", "#e76f51"},
	{"#03045e", "#023e8a", "#0077b6", "#0096c7", "#00b4d8"},
	{"#ffbe0b", "#fb5607", "#ff006e", "#8338ec", "#3a86ff"},
	{"#d9ed92", "#b5e48c", "#99d98c", "#76c893", "#52b69a"},
}

// hue offsets in degrees for the harmonic schemes.
var offsets = map[Scheme][]float64{
	Complementary:      {0, 180},
	Analogous:          {-30, 0, 30},
	Triadic:            {0, 120, 240},
	Tetradic:           {0, 90, 180, 270},
	SplitComplementary: {0, 150, 210},
}

// Schemes returns every known scheme in toolbar order.
func Schemes() []Scheme {
	out := make([]Scheme, len(schemes))
	copy(out, schemes)
	return out
}

// ParseScheme looks up a scheme by name, ignoring case.
func ParseScheme(name string) (Scheme, error) {
	s := Scheme(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range schemes {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

// DisplayName returns the title-cased name shown in the toolbar.
func (s Scheme) DisplayName() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "-", " "))
}

// Next returns the scheme after s, wrapping around.
func (s Scheme) Next() Scheme {
	for i, known := range schemes {
		if known == s {
			return schemes[(i+1)%len(schemes)]
		}
	}
	return schemes[0]
}

// Random reports whether the scheme ignores its base color.
func (s Scheme) Random() bool {
	return s == Warm || s == Happy || s == Soft || s == Curated
}

// Palette is an ordered list of hex colors.
type Palette struct {
	Scheme Scheme
	Base   string
	Colors []string
}

// Len returns the number of colors.
func (p Palette) Len() int {
	return len(p.Colors)
}

// RGBA returns the color at index i. Out of range indexes wrap.
func (p Palette) RGBA(i int) color.RGBA {
	if len(p.Colors) == 0 {
		return color.RGBA{A: 0xff}
	}
	i %= len(p.Colors)
	if i < 0 {
		i += len(p.Colors)
	}
	c, err := parseHex(p.Colors[i])
	if err != nil {
		return color.RGBA{A: 0xff}
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Generate builds an n-color palette.
func Generate(scheme Scheme, base string, n int, seed int64) (Palette, error) {
	if n < 1 || n > MaxSize {
		return Palette{}, fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidSize, n, MaxSize)
	}
	scheme, err := ParseScheme(string(scheme))
	if err != nil {
		return Palette{}, err
	}
	bc, err := parseHex(base)
	if err != nil {
		return Palette{}, err
	}

	var cols []colorful.Color
	switch scheme {
	case Monochromatic:
		cols = monochromatic(bc, n)
	case Warm, Happy, Soft:
		cols, err = random(scheme, n, rand.New(rand.NewSource(seed)))
		if err != nil {
			return Palette{}, fmt.Errorf("generate %s palette: %w", scheme, err)
		}
	case Curated:
		cols = curated(n, rand.New(rand.NewSource(seed)))
	default:
		cols = harmonic(bc, offsets[scheme], n)
	}

	p := Palette{Scheme: scheme, Base: bc.Hex(), Colors: make([]string, len(cols))}
	for i, c := range cols {
		p.Colors[i] = c.Clamped().Hex()
	}
	return p, nil
}

// harmonic cycles the hue offsets, alternating lighter and darker shades
// on each pass once the offsets are used up.
func harmonic(base colorful.Color, offs []float64, n int) []colorful.Color {
	h, c, l := base.Hcl()
	out := make([]colorful.Color, n)
	for i := range out {
		round := i / len(offs)
		d := 0.12 * float64((round+1)/2)
		if round%2 == 0 {
			d = -d
		}
		hue := math.Mod(h+offs[i%len(offs)]+360, 360)
		out[i] = colorful.Hcl(hue, c, clamp(l+d, 0.05, 0.95))
	}
	return out
}

// monochromatic spreads lightness evenly across one hue.
func monochromatic(base colorful.Color, n int) []colorful.Color {
	h, c, l := base.Hcl()
	if n == 1 {
		return []colorful.Color{colorful.Hcl(h, c, l)}
	}
	out := make([]colorful.Color, n)
	for i := range out {
		out[i] = colorful.Hcl(h, c, 0.2+0.6*float64(i)/float64(n-1))
	}
	return out
}

// curated returns one preset. Palettes longer than the preset repeat it
// with lighter and darker shades on each pass.
func curated(n int, rng *rand.Rand) []colorful.Color {
	preset := presets[rng.Intn(len(presets))]
	out := make([]colorful.Color, n)
	for i := range out {
		c, _ := colorful.Hex(preset[i%len(preset)])
		round := i / len(preset)
		if round == 0 {
			out[i] = c
			continue
		}
		d := 0.12 * float64((round+1)/2)
		if round%2 == 1 {
			d = -d
		}
		h, cc, l := c.Hcl()
		out[i] = colorful.Hcl(h, cc, clamp(l+d, 0.05, 0.95))
	}
	return out
}

func random(scheme Scheme, n int, rng *rand.Rand) ([]colorful.Color, error) {
	switch scheme {
	case Warm:
		return colorful.WarmPaletteWithRand(n, rng)
	case Happy:
		return colorful.HappyPaletteWithRand(n, rng)
	default:
		return colorful.SoftPaletteWithRand(n, rng)
	}
}

func parseHex(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return c, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
