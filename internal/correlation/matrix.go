// Package correlation implements the correlation ranker: percentage
// returns, missing-value cleaning, lag shifting, Pearson and Spearman
// matrices, and top-N pair ranking. Every function is pure.
package correlation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"corrboard/internal/domain"
)

// Axis selects whether DropMissing removes rows or columns.
type Axis int

const (
	Rows Axis = iota
	Columns
)

// PctChange returns period-over-period percentage changes. The first row has
// no predecessor and is discarded. A missing value on either side, or a
// non-positive prior price, yields NaN.
func PctChange(m *domain.PriceMatrix) *domain.PriceMatrix {
	out := &domain.PriceMatrix{Symbols: append([]string(nil), m.Symbols...)}
	if m.Rows() < 2 {
		out.Values = make([][]float64, m.Cols())
		for i := range out.Values {
			out.Values[i] = []float64{}
		}
		return out
	}
	out.Times = append([]time.Time(nil), m.Times[1:]...)
	out.Values = make([][]float64, m.Cols())
	for i, col := range m.Values {
		r := make([]float64, len(col)-1)
		for t := 1; t < len(col); t++ {
			prev, cur := col[t-1], col[t]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
				r[t-1] = math.NaN()
				continue
			}
			r[t-1] = cur/prev - 1
		}
		out.Values[i] = r
	}
	return out
}

// DropMissing removes every row (Rows) or every column (Columns) that holds
// at least one NaN.
func DropMissing(m *domain.PriceMatrix, axis Axis) *domain.PriceMatrix {
	if axis == Columns {
		out := &domain.PriceMatrix{Times: append([]time.Time(nil), m.Times...)}
		for i, col := range m.Values {
			if m.ValidCount(i) == len(col) {
				out.Symbols = append(out.Symbols, m.Symbols[i])
				out.Values = append(out.Values, append([]float64(nil), col...))
			}
		}
		return out
	}

	var keep []int
	for t := range m.Times {
		complete := true
		for _, col := range m.Values {
			if math.IsNaN(col[t]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, t)
		}
	}
	out := &domain.PriceMatrix{
		Times:   make([]time.Time, len(keep)),
		Symbols: append([]string(nil), m.Symbols...),
		Values:  make([][]float64, m.Cols()),
	}
	for k, t := range keep {
		out.Times[k] = m.Times[t]
	}
	for i, col := range m.Values {
		out.Values[i] = make([]float64, len(keep))
		for k, t := range keep {
			out.Values[i][k] = col[t]
		}
	}
	return out
}

// DropEmptyColumns removes columns without a single valid observation and
// returns the names of the removed columns.
func DropEmptyColumns(m *domain.PriceMatrix) (*domain.PriceMatrix, []string) {
	out := &domain.PriceMatrix{Times: append([]time.Time(nil), m.Times...)}
	var dropped []string
	for i, col := range m.Values {
		if m.ValidCount(i) == 0 {
			dropped = append(dropped, m.Symbols[i])
			continue
		}
		out.Symbols = append(out.Symbols, m.Symbols[i])
		out.Values = append(out.Values, append([]float64(nil), col...))
	}
	return out, dropped
}

// ApplyLag shifts every column forward by steps observations: row t of the
// result holds the input value at t-steps. The first steps rows have no
// lagged counterpart and are dropped. steps == 0 returns a copy of m.
func ApplyLag(m *domain.PriceMatrix, steps int) (*domain.PriceMatrix, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: negative lag %d", domain.ErrInvalidParams, steps)
	}
	if steps == 0 {
		return m.Clone(), nil
	}
	out := &domain.PriceMatrix{
		Symbols: append([]string(nil), m.Symbols...),
		Values:  make([][]float64, m.Cols()),
	}
	n := m.Rows() - steps
	if n < 0 {
		n = 0
	}
	out.Times = make([]time.Time, n)
	copy(out.Times, m.Times[m.Rows()-n:])
	for i, col := range m.Values {
		out.Values[i] = make([]float64, n)
		copy(out.Values[i], col[:n])
	}
	return out, nil
}

// ComputeMatrix returns the symmetric correlation matrix of m's columns.
// Each pair is computed over the rows where both columns are valid; fewer
// than two such rows, or a constant series, yields NaN. The diagonal is 1.0
// for every column that is not degenerate.
func ComputeMatrix(m *domain.PriceMatrix, method domain.Method) *domain.CorrelationMatrix {
	c := domain.NewCorrelationMatrix(m.Symbols, 0)
	for i := range m.Values {
		if !degenerate(m.Values[i]) {
			c.Values[i][i] = 1
		}
		for j := i + 1; j < len(m.Values); j++ {
			v := pairwise(m.Values[i], m.Values[j], method)
			c.Values[i][j] = v
			c.Values[j][i] = v
		}
	}
	return c
}

// ComputeLagged correlates each column of m against every column of m
// lagged by steps. Entry [i][j] is corr(i[t], j[t-steps]).
func ComputeLagged(m *domain.PriceMatrix, steps int, method domain.Method) (*domain.CorrelationMatrix, error) {
	lagged, err := ApplyLag(m, steps)
	if err != nil {
		return nil, err
	}
	start := m.Rows() - lagged.Rows()
	c := domain.NewCorrelationMatrix(m.Symbols, steps)
	for i, col := range m.Values {
		lead := col[start:]
		for j := range lagged.Values {
			c.Values[i][j] = pairwise(lead, lagged.Values[j], method)
		}
	}
	return c, nil
}

// DropNaNColumns removes every symbol whose off-diagonal entries, in both
// its row and its column, are all NaN. It returns the removed names.
func DropNaNColumns(c *domain.CorrelationMatrix) (*domain.CorrelationMatrix, []string) {
	keep := make(map[string]bool, c.Size())
	var dropped []string
	for k, sym := range c.Symbols {
		valid := false
		for i := range c.Symbols {
			if i == k {
				continue
			}
			if !math.IsNaN(c.Values[i][k]) || !math.IsNaN(c.Values[k][i]) {
				valid = true
				break
			}
		}
		if valid {
			keep[sym] = true
		} else {
			dropped = append(dropped, sym)
		}
	}
	if len(dropped) == 0 {
		return c, nil
	}
	return c.Subset(keep), dropped
}

// pairwise correlates x and y over the rows where both are valid.
func pairwise(x, y []float64, method domain.Method) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for t := range x {
		if t >= len(y) || math.IsNaN(x[t]) || math.IsNaN(y[t]) {
			continue
		}
		xs = append(xs, x[t])
		ys = append(ys, y[t])
	}
	if len(xs) < 2 || degenerate(xs) || degenerate(ys) {
		return math.NaN()
	}
	if method == domain.MethodSpearman {
		xs, ys = ranks(xs), ranks(ys)
	}
	v := stat.Correlation(xs, ys, nil)
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return v
}

// degenerate reports whether the valid values of x number fewer than two or
// are all equal.
func degenerate(x []float64) bool {
	n := 0
	var first float64
	varies := false
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if n == 0 {
			first = v
		} else if v != first {
			varies = true
		}
		n++
	}
	return n < 2 || !varies
}

// ranks returns 1-based ranks of x, ties receiving the average rank.
func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}
