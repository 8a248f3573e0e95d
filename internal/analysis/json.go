package analysis

import (
	"encoding/json"
	"math"

	"github.com/fortuna/dubs/internal/process"
)

// Undefined statistics are encoded as null

func fromNullable(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

type matrixJSON struct {
	Name    string       `json:"name"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
	N       [][]int      `json:"n"`
}

func (m Matrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{Name: m.Name, Columns: m.Columns, N: m.N, Values: make([][]*float64, len(m.Values))}
	for i, row := range m.Values {
		out.Values[i] = make([]*float64, len(row))
		for j, v := range row {
			out.Values[i][j] = process.Nullable(v)
		}
	}
	return json.Marshal(out)
}

func (m *Matrix) UnmarshalJSON(data []byte) error {
	var in matrixJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Matrix{Name: in.Name, Columns: in.Columns, N: in.N, Values: make([][]float64, len(in.Values))}
	for i, row := range in.Values {
		m.Values[i] = make([]float64, len(row))
		for j, v := range row {
			m.Values[i][j] = fromNullable(v)
		}
	}
	return nil
}

type coefficientJSON struct {
	Term     string   `json:"term"`
	Estimate *float64 `json:"estimate"`
	StdErr   *float64 `json:"std_err"`
	T        *float64 `json:"t"`
	P        *float64 `json:"p"`
}

func (c Coefficient) MarshalJSON() ([]byte, error) {
	return json.Marshal(coefficientJSON{
		Term:     c.Term,
		Estimate: process.Nullable(c.Estimate),
		StdErr:   process.Nullable(c.StdErr),
		T:        process.Nullable(c.T),
		P:        process.Nullable(c.P),
	})
}

func (c *Coefficient) UnmarshalJSON(data []byte) error {
	var in coefficientJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Coefficient{
		Term:     in.Term,
		Estimate: fromNullable(in.Estimate),
		StdErr:   fromNullable(in.StdErr),
		T:        fromNullable(in.T),
		P:        fromNullable(in.P),
	}
	return nil
}

type regressionJSON struct {
	Formula      string        `json:"formula"`
	N            int           `json:"n"`
	DF           int           `json:"df_resid"`
	RSquared     *float64      `json:"r_squared"`
	AdjRSquared  *float64      `json:"adj_r_squared"`
	Coefficients []Coefficient `json:"coefficients"`
}

func (r Regression) MarshalJSON() ([]byte, error) {
	return json.Marshal(regressionJSON{
		Formula:      r.Formula,
		N:            r.N,
		DF:           r.DF,
		RSquared:     process.Nullable(r.RSquared),
		AdjRSquared:  process.Nullable(r.AdjRSquared),
		Coefficients: r.Coefficients,
	})
}

func (r *Regression) UnmarshalJSON(data []byte) error {
	var in regressionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Regression{
		Formula:      in.Formula,
		N:            in.N,
		DF:           in.DF,
		RSquared:     fromNullable(in.RSquared),
		AdjRSquared:  fromNullable(in.AdjRSquared),
		Coefficients: in.Coefficients,
	}
	return nil
}
