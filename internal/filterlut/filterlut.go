// Package filterlut builds the folded-FIR anti-alias coefficient
// table: one Kaiser-windowed sinc kernel per row, cutoff tracking the
// phase increment the row is indexed by. The table is built once at
// boot and is read-only thereafter; it is an explicit constructor
// rather than a package init() so taps/rows can vary between the MCU
// build and the host simulator.
package filterlut

import "math"

// Row is one precomputed coefficient set for a specific cutoff,
// folded because a linear-phase FIR is symmetric: only the first
// (T+1)/2 coefficients are stored.
type Row struct {
	LogInc float64
	Inc    float64
	Coeff  []float64
}

// LUT is the full table, indexed by Lookup.
type LUT struct {
	rows        []Row
	taps        int
	spanOctaves float64
}

// Build constructs a LUT with rows rows, taps FIR taps (must be odd),
// a Kaiser window shape parameter beta, and spanOctaves the log2 span
// of phase increments the table covers (~7 octaves on the reference
// hardware). Row k covers inc_k = 2^(k*spanOctaves/rows).
func Build(rows, taps int, beta, spanOctaves float64) *LUT {
	if taps%2 == 0 {
		taps++
	}
	folded := (taps + 1) / 2
	l := &LUT{
		rows:        make([]Row, rows),
		taps:        taps,
		spanOctaves: spanOctaves,
	}
	win := kaiserWindow(taps, beta)
	for k := 0; k < rows; k++ {
		logInc := float64(k) * spanOctaves / float64(rows)
		inc := math.Exp2(logInc)
		cutoff := 1.0 / inc
		coeff := make([]float64, folded)
		center := float64(taps-1) / 2.0
		for j := 0; j < folded; j++ {
			coeff[j] = cutoff * sinc(cutoff*(float64(j)-center)*math.Pi) * win[j]
		}
		l.rows[k] = Row{LogInc: logInc, Inc: inc, Coeff: coeff}
	}
	return l
}

// Taps returns the configured (odd) tap count.
func (l *LUT) Taps() int { return l.taps }

// FoldedTaps returns (Taps()+1)/2, the number of stored coefficients.
func (l *LUT) FoldedTaps() int { return (l.taps + 1) / 2 }

// Rows returns the number of rows in the table.
func (l *LUT) Rows() int { return len(l.rows) }

// Lookup returns the row for a given phase increment, clamped to
// [0, Rows()-1].
func (l *LUT) Lookup(pitchInc float64) Row {
	if pitchInc <= 0 {
		return l.rows[0]
	}
	idx := int(math.Round(math.Log2(pitchInc) * float64(len(l.rows)) / l.spanOctaves))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.rows) {
		idx = len(l.rows) - 1
	}
	return l.rows[idx]
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(x) / x
}

// kaiserWindow returns an n-sample Kaiser window with shape beta.
func kaiserWindow(n int, beta float64) []float64 {
	w := make([]float64, n)
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := 0; i < n; i++ {
		r := (2*float64(i) - m) / m
		arg := beta * math.Sqrt(1-r*r)
		w[i] = besselI0(arg) / denom
	}
	return w
}

// besselI0 evaluates the zeroth-order modified Bessel function of the
// first kind via its series expansion, sufficient precision for a
// window function built once at boot.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 25; k++ {
		term *= (halfX / float64(k)) * (halfX / float64(k))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}
