// Package eigen implements a cyclic Jacobi eigensolver for small dense symmetric matrices.
//
// The solver handles any dimension uniformly: a 1x1 matrix is already diagonal,
// a zero matrix converges in zero sweeps, and 2x2/3x3 inertia tensors need no
// special-case formulas.
package eigen

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultMaxSweeps bounds the number of full cyclic sweeps.
	DefaultMaxSweeps = 50

	// DefaultTolerance is the off-diagonal Frobenius norm, relative to the
	// matrix Frobenius norm, below which the matrix counts as diagonal.
	DefaultTolerance = 1e-15
)

// ErrNotSymmetric is returned for non-square or asymmetric input.
var ErrNotSymmetric = errors.New("matrix is not square and symmetric")

// Options tunes the Jacobi iteration.
type Options struct {
	MaxSweeps int
	Tolerance float64
}

// Decomposition holds the eigen-pairs of a symmetric matrix.
type Decomposition struct {
	// Values are the eigenvalues in input diagonal order.
	Values []float64

	// Vectors holds eigenvectors as columns: Vectors[i][k] is component i of vector k.
	Vectors [][]float64

	// Sweeps is the number of cyclic sweeps performed.
	Sweeps int

	// Converged reports whether the off-diagonal norm fell below tolerance.
	Converged bool
}

// Jacobi computes all eigenvalues and eigenvectors of the symmetric matrix a.
//
// The input is not modified. Each sweep visits every off-diagonal pair (p, q)
// once and zeroes it with a plane rotation; rotations are accumulated into the
// eigenvector matrix.
//
// Parameters:
//   - a: Square symmetric matrix (row-major)
//   - opts: Iteration bounds (zero values select defaults)
//
// Returns:
//   - Decomposition: Eigen-pairs, possibly unconverged after MaxSweeps
//   - error: ErrNotSymmetric on malformed input
func Jacobi(a [][]float64, opts Options) (Decomposition, error) {
	if opts.MaxSweeps <= 0 {
		opts.MaxSweeps = DefaultMaxSweeps
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}

	n := len(a)
	m := make([][]float64, n)
	v := make([][]float64, n)
	for i := range n {
		if len(a[i]) != n {
			return Decomposition{}, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(a[i]), n, ErrNotSymmetric)
		}
		m[i] = append([]float64(nil), a[i]...)
		v[i] = make([]float64, n)
		v[i][i] = 1
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			if !nearlyEqual(m[i][j], m[j][i]) {
				return Decomposition{}, fmt.Errorf("a[%d][%d]=%g differs from a[%d][%d]=%g: %w", i, j, m[i][j], j, i, m[j][i], ErrNotSymmetric)
			}
		}
	}

	norm := frobenius(m)
	dec := Decomposition{Vectors: v}
	for dec.Sweeps < opts.MaxSweeps {
		off := offDiagonal(m)
		if off == 0 || off <= opts.Tolerance*norm {
			dec.Converged = true
			break
		}
		dec.Sweeps++
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				rotate(m, v, p, q)
			}
		}
	}
	if !dec.Converged {
		off := offDiagonal(m)
		dec.Converged = off == 0 || off <= opts.Tolerance*norm
	}

	dec.Values = make([]float64, n)
	for i := range n {
		dec.Values[i] = m[i][i]
	}

	return dec, nil
}

// Principal returns the largest eigenvalue and its unit eigenvector.
//
// The sign of the vector is normalized so that its largest-magnitude component
// is positive (ties resolved toward the lowest index), making the result
// reproducible for identical input.
//
// Returns:
//   - float64: Largest eigenvalue (0 for an empty decomposition)
//   - []float64: Corresponding unit eigenvector (nil for an empty decomposition)
func (d Decomposition) Principal() (float64, []float64) {
	if len(d.Values) == 0 {
		return 0, nil
	}

	best := 0
	for k := 1; k < len(d.Values); k++ {
		if d.Values[k] > d.Values[best] {
			best = k
		}
	}

	vec := make([]float64, len(d.Values))
	for i := range vec {
		vec[i] = d.Vectors[i][best]
	}
	normalize(vec)

	return d.Values[best], vec
}

// Residual returns ||a*vec - value*vec|| / ||a||∞, the normalized eigen-residual.
//
// Returns 0 when a is the zero matrix.
func Residual(a [][]float64, value float64, vec []float64) float64 {
	n := len(a)
	var sum, scale float64
	for i := range n {
		row := -value * vec[i]
		rowAbs := 0.0
		for j := range n {
			row += a[i][j] * vec[j]
			rowAbs += math.Abs(a[i][j])
		}
		sum += row * row
		scale = math.Max(scale, rowAbs)
	}
	if scale == 0 {
		return 0
	}

	return math.Sqrt(sum) / scale
}

// rotate applies the Jacobi rotation that zeroes m[p][q].
func rotate(m, v [][]float64, p, q int) {
	apq := m[p][q]
	if apq == 0 {
		return
	}
	app, aqq := m[p][p], m[q][q]

	theta := (aqq - app) / (2 * apq)
	t := 1 / (math.Abs(theta) + math.Sqrt(theta*theta+1))
	if theta < 0 {
		t = -t
	}
	c := 1 / math.Sqrt(t*t+1)
	s := t * c

	m[p][p] = app - t*apq
	m[q][q] = aqq + t*apq
	m[p][q], m[q][p] = 0, 0

	for k := range m {
		if k == p || k == q {
			continue
		}
		akp, akq := m[k][p], m[k][q]
		m[k][p] = c*akp - s*akq
		m[p][k] = m[k][p]
		m[k][q] = s*akp + c*akq
		m[q][k] = m[k][q]
	}
	for k := range v {
		vkp, vkq := v[k][p], v[k][q]
		v[k][p] = c*vkp - s*vkq
		v[k][q] = s*vkp + c*vkq
	}
}

func offDiagonal(m [][]float64) float64 {
	sum := 0.0
	for i := range m {
		for j := range m[i] {
			if i != j {
				sum += m[i][j] * m[i][j]
			}
		}
	}

	return math.Sqrt(sum)
}

func frobenius(m [][]float64) float64 {
	sum := 0.0
	for i := range m {
		for j := range m[i] {
			sum += m[i][j] * m[i][j]
		}
	}

	return math.Sqrt(sum)
}

func normalize(vec []float64) {
	norm := 0.0
	lead := 0
	for i, x := range vec {
		norm += x * x
		if math.Abs(x) > math.Abs(vec[lead]) {
			lead = i
		}
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return
	}
	if vec[lead] < 0 {
		norm = -norm
	}
	for i := range vec {
		vec[i] /= norm
	}
}

func nearlyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))

	return math.Abs(a-b) <= 1e-12*scale
}
