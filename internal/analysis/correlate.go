package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/fortuna/dubs/internal/process"
)

var (
	// ErrInsufficientData is returned when too few complete observations remain
	ErrInsufficientData = errors.New("insufficient data")
	// ErrSingular is returned when the design matrix is rank deficient
	ErrSingular = errors.New("singular design matrix")
	// ErrBadFormula is returned for formulas that cannot be parsed
	ErrBadFormula = errors.New("bad formula")
)

// Matrix is a square correlation matrix over named columns.
// Values[i][j] is NaN when the pair is undefined; N[i][j] is the number of
// complete pairs it was computed from.
type Matrix struct {
	Name    string
	Columns []string
	Values  [][]float64
	N       [][]int
}

// Correlate computes Pearson correlations using pairwise-complete observations
func Correlate(t *process.Table, columns []string) (*Matrix, error) {
	data := make([][]float64, len(columns))
	for i, c := range columns {
		v, err := t.Column(c)
		if err != nil {
			return nil, fmt.Errorf("correlating: %w", err)
		}
		data[i] = v
	}

	m := &Matrix{
		Columns: append([]string(nil), columns...),
		Values:  make([][]float64, len(columns)),
		N:       make([][]int, len(columns)),
	}
	for i := range columns {
		m.Values[i] = make([]float64, len(columns))
		m.N[i] = make([]int, len(columns))
	}

	for i := range columns {
		for j := i; j < len(columns); j++ {
			r, n := pairwise(data[i], data[j])
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values[i][j], m.Values[j][i] = r, r
			m.N[i][j], m.N[j][i] = n, n
		}
	}
	return m, nil
}

// Get returns the correlation between two named columns
func (m *Matrix) Get(a, b string) (float64, bool) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	return m.Values[i][j], true
}

func (m *Matrix) index(name string) int {
	for i, c := range m.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func pairwise(a, b []float64) (float64, int) {
	var x, y []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		x = append(x, a[i])
		y = append(y, b[i])
	}
	n := len(x)
	if n < 2 {
		return math.NaN(), n
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN(), n
	}
	return stat.Correlation(x, y, nil), n
}
