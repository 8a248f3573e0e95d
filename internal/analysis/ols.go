package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fortuna/dubs/internal/process"
)

// InterceptTerm names the fitted constant
const InterceptTerm = "Intercept"

// Coefficient is one fitted parameter with its two-sided t test
type Coefficient struct {
	Term     string
	Estimate float64
	StdErr   float64
	T        float64
	P        float64
}

// Regression is an ordinary least squares fit
type Regression struct {
	Formula      string
	N            int
	DF           int
	RSquared     float64
	AdjRSquared  float64
	Coefficients []Coefficient
}

// Coefficient returns the fitted parameter for term
func (r *Regression) Coefficient(term string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Term == term {
			return c, true
		}
	}
	return Coefficient{}, false
}

// OLS fits f over t. Days with a missing response or predictor are dropped.
func OLS(t *process.Table, f Formula) (*Regression, error) {
	y, err := t.Column(f.Response)
	if err != nil {
		return nil, fmt.Errorf("regression response: %w", err)
	}
	predictors := make([][]float64, len(f.Terms))
	for i, term := range f.Terms {
		if predictors[i], err = t.Column(term); err != nil {
			return nil, fmt.Errorf("regression term: %w", err)
		}
	}

	var rows []int
	for i := range y {
		if math.IsNaN(y[i]) {
			continue
		}
		complete := true
		for _, p := range predictors {
			if math.IsNaN(p[i]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}

	n, k := len(rows), len(f.Terms)+1
	if n <= k {
		return nil, fmt.Errorf("%w: %d complete observations for %d parameters", ErrInsufficientData, n, k)
	}

	x := mat.NewDense(n, k, nil)
	yv := mat.NewVecDense(n, nil)
	for r, idx := range rows {
		x.Set(r, 0, 1)
		for c, p := range predictors {
			x.Set(r, c+1, p[idx])
		}
		yv.SetVec(r, y[idx])
	}

	var qr mat.QR
	qr.Factorize(x)
	var rmat mat.Dense
	qr.RTo(&rmat)
	maxDiag := 0.0
	for i := 0; i < k; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(rmat.At(i, i)))
	}
	for i := 0; i < k; i++ {
		if math.Abs(rmat.At(i, i)) <= 1e-10*maxDiag {
			return nil, fmt.Errorf("%w: %s", ErrSingular, f)
		}
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	mean := 0.0
	for i := 0; i < n; i++ {
		mean += yv.AtVec(i)
	}
	mean /= float64(n)

	var ssr, sst float64
	for i := 0; i < n; i++ {
		res := yv.AtVec(i) - fitted.AtVec(i)
		ssr += res * res
		dev := yv.AtVec(i) - mean
		sst += dev * dev
	}

	df := n - k
	reg := &Regression{Formula: f.String(), N: n, DF: df}
	if sst > 0 {
		reg.RSquared = 1 - ssr/sst
		reg.AdjRSquared = 1 - (1-reg.RSquared)*float64(n-1)/float64(df)
	} else {
		reg.RSquared, reg.AdjRSquared = math.NaN(), math.NaN()
	}

	var xtx, cov mat.Dense
	xtx.Mul(x.T(), x)
	if err := cov.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	sigma2 := ssr / float64(df)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}

	terms := append([]string{InterceptTerm}, f.Terms...)
	for i, term := range terms {
		c := Coefficient{Term: term, Estimate: beta.AtVec(i)}
		c.StdErr = math.Sqrt(sigma2 * cov.At(i, i))
		switch {
		case c.StdErr > 0:
			c.T = c.Estimate / c.StdErr
			c.P = 2 * dist.Survival(math.Abs(c.T))
		case c.Estimate == 0:
			c.T, c.P = math.NaN(), math.NaN()
		default:
			c.T, c.P = math.Inf(int(math.Copysign(1, c.Estimate))), 0
		}
		reg.Coefficients = append(reg.Coefficients, c)
	}
	return reg, nil
}

// DatasetRegression is the outcome of fitting one named dataset
type DatasetRegression struct {
	Dataset string      `json:"dataset"`
	Result  *Regression `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RunRegressions fits f on every dataset, sorted by dataset name.
// A dataset that cannot be fitted records its error and does not stop the others.
func RunRegressions(datasets map[string]*process.Table, f Formula) []DatasetRegression {
	out := make([]DatasetRegression, 0, len(datasets))
	for _, name := range DatasetNames(datasets) {
		entry := DatasetRegression{Dataset: name}
		reg, err := OLS(datasets[name], f)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Result = reg
		}
		out = append(out, entry)
	}
	return out
}
