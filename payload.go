package rytmi

import (
	"math"

	"github.com/viterin/vek/vek32"
)

type (
	// PayloadKind enumerates the kinds of value a cue can carry.
	PayloadKind int

	// Payload is a tagged union over the payload kinds. At most one field is
	// set; Kind reports which one. The engine carries and copies payloads
	// opaquely and never interprets their contents; the accessors below are
	// for listeners.
	Payload struct {
		Text     *string        `yaml:",omitempty" json:",omitempty"`
		Int      *int           `yaml:",omitempty" json:",omitempty"`
		Float    *float64       `yaml:",omitempty" json:",omitempty"`
		Color    *Color         `yaml:",omitempty" json:",omitempty"`
		Curve    Curve          `yaml:",omitempty,flow" json:",omitempty"`
		Gradient Gradient       `yaml:",omitempty,flow" json:",omitempty"`
		Spectrum *SpectrumRange `yaml:",omitempty" json:",omitempty"`
		Asset    *string        `yaml:",omitempty" json:",omitempty"`
	}

	// Color is an RGBA color with components in [0,1].
	Color struct {
		R, G, B, A float32
	}

	// Curve is a piecewise-linear curve over normalized time, sorted by
	// Time.
	Curve []CurvePoint

	CurvePoint struct {
		Time  float64
		Value float64
	}

	// Gradient is a list of color stops over normalized position, sorted by
	// Pos.
	Gradient []GradientStop

	GradientStop struct {
		Pos   float64
		Color Color
	}

	// SpectrumRange carries a slice of spectrum bin magnitudes together with
	// the bin range it was taken from.
	SpectrumRange struct {
		StartBin int
		EndBin   int
		Bins     []float32 `yaml:",flow"`
	}
)

const (
	PayloadNone PayloadKind = iota
	PayloadText
	PayloadInt
	PayloadFloat
	PayloadColor
	PayloadCurve
	PayloadGradient
	PayloadSpectrum
	PayloadAsset
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadNone:
		return "none"
	case PayloadText:
		return "text"
	case PayloadInt:
		return "int"
	case PayloadFloat:
		return "float"
	case PayloadColor:
		return "color"
	case PayloadCurve:
		return "curve"
	case PayloadGradient:
		return "gradient"
	case PayloadSpectrum:
		return "spectrum"
	case PayloadAsset:
		return "asset"
	}
	return "unknown"
}

// Kind reports which payload kind is set. Fields are checked in declaration
// order, so a malformed payload with several fields set resolves to the
// first one.
func (p Payload) Kind() PayloadKind {
	switch {
	case p.Text != nil:
		return PayloadText
	case p.Int != nil:
		return PayloadInt
	case p.Float != nil:
		return PayloadFloat
	case p.Color != nil:
		return PayloadColor
	case p.Curve != nil:
		return PayloadCurve
	case p.Gradient != nil:
		return PayloadGradient
	case p.Spectrum != nil:
		return PayloadSpectrum
	case p.Asset != nil:
		return PayloadAsset
	}
	return PayloadNone
}

// Copy makes a deep copy of a Payload.
func (p Payload) Copy() Payload {
	c := Payload{}
	if p.Text != nil {
		v := *p.Text
		c.Text = &v
	}
	if p.Int != nil {
		v := *p.Int
		c.Int = &v
	}
	if p.Float != nil {
		v := *p.Float
		c.Float = &v
	}
	if p.Color != nil {
		v := *p.Color
		c.Color = &v
	}
	if p.Curve != nil {
		c.Curve = append(Curve(nil), p.Curve...)
	}
	if p.Gradient != nil {
		c.Gradient = append(Gradient(nil), p.Gradient...)
	}
	if p.Spectrum != nil {
		v := *p.Spectrum
		v.Bins = append([]float32(nil), p.Spectrum.Bins...)
		c.Spectrum = &v
	}
	if p.Asset != nil {
		v := *p.Asset
		c.Asset = &v
	}
	return c
}

func TextPayload(s string) Payload      { return Payload{Text: &s} }
func IntPayload(v int) Payload          { return Payload{Int: &v} }
func FloatPayload(v float64) Payload    { return Payload{Float: &v} }
func ColorPayload(c Color) Payload      { return Payload{Color: &c} }
func CurvePayload(c Curve) Payload      { return Payload{Curve: c} }
func GradientPayload(g Gradient) Payload { return Payload{Gradient: g} }
func SpectrumPayload(s SpectrumRange) Payload { return Payload{Spectrum: &s} }
func AssetPayload(ref string) Payload   { return Payload{Asset: &ref} }

// ValueAt evaluates the curve at normalized time t, interpolating linearly
// between points and clamping outside the first and last point.
func (c Curve) ValueAt(t float64) float64 {
	if len(c) == 0 {
		return 0
	}
	if t <= c[0].Time {
		return c[0].Value
	}
	for i := 1; i < len(c); i++ {
		if t <= c[i].Time {
			prev, next := c[i-1], c[i]
			if next.Time == prev.Time {
				return next.Value
			}
			alpha := (t - prev.Time) / (next.Time - prev.Time)
			return prev.Value + (next.Value-prev.Value)*alpha
		}
	}
	return c[len(c)-1].Value
}

// ColorAt evaluates the gradient at normalized position t, interpolating
// component-wise between stops and clamping outside the first and last stop.
func (g Gradient) ColorAt(t float64) Color {
	if len(g) == 0 {
		return Color{}
	}
	if t <= g[0].Pos {
		return g[0].Color
	}
	for i := 1; i < len(g); i++ {
		if t <= g[i].Pos {
			prev, next := g[i-1], g[i]
			if next.Pos == prev.Pos {
				return next.Color
			}
			alpha := float32((t - prev.Pos) / (next.Pos - prev.Pos))
			return Color{
				R: prev.Color.R + (next.Color.R-prev.Color.R)*alpha,
				G: prev.Color.G + (next.Color.G-prev.Color.G)*alpha,
				B: prev.Color.B + (next.Color.B-prev.Color.B)*alpha,
				A: prev.Color.A + (next.Color.A-prev.Color.A)*alpha,
			}
		}
	}
	return g[len(g)-1].Color
}

// NumBins returns the number of bins the range spans, regardless of how many
// magnitudes were actually stored.
func (s SpectrumRange) NumBins() int {
	return s.EndBin - s.StartBin + 1
}

// Peak returns the largest bin magnitude.
func (s SpectrumRange) Peak() float32 {
	if len(s.Bins) == 0 {
		return 0
	}
	return vek32.Max(s.Bins)
}

// Mean returns the average bin magnitude.
func (s SpectrumRange) Mean() float32 {
	if len(s.Bins) == 0 {
		return 0
	}
	return vek32.Mean(s.Bins)
}

// RMS returns the root-mean-square of the bin magnitudes.
func (s SpectrumRange) RMS() float32 {
	if len(s.Bins) == 0 {
		return 0
	}
	return float32(math.Sqrt(float64(vek32.Dot(s.Bins, s.Bins)) / float64(len(s.Bins))))
}
