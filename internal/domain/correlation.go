package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Method selects the correlation coefficient.
type Method string

const (
	MethodPearson  Method = "pearson"
	MethodSpearman Method = "spearman"
)

// ParseMethod accepts "pearson"/"linear" and "spearman"/"rank". An empty
// string selects Pearson.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pearson", "linear":
		return MethodPearson, nil
	case "spearman", "rank":
		return MethodSpearman, nil
	default:
		return "", fmt.Errorf("%w: unknown correlation method %q", ErrInvalidParams, s)
	}
}

// CorrelationMatrix is a square matrix indexed by Symbols on both axes.
// For a lagged matrix (Lag > 0) entry [i][j] is corr(i[t], j[t-Lag]) and
// the matrix is not symmetric in general.
type CorrelationMatrix struct {
	Symbols []string
	Values  [][]float64
	Lag     int
}

// NewCorrelationMatrix returns an n x n matrix filled with NaN.
func NewCorrelationMatrix(symbols []string, lag int) *CorrelationMatrix {
	n := len(symbols)
	c := &CorrelationMatrix{
		Symbols: append([]string(nil), symbols...),
		Values:  make([][]float64, n),
		Lag:     lag,
	}
	for i := range c.Values {
		c.Values[i] = make([]float64, n)
		for j := range c.Values[i] {
			c.Values[i][j] = math.NaN()
		}
	}
	return c
}

// Size returns the number of symbols on each axis.
func (c *CorrelationMatrix) Size() int { return len(c.Symbols) }

// Index returns the axis position of symbol.
func (c *CorrelationMatrix) Index(symbol string) (int, bool) {
	for i, s := range c.Symbols {
		if s == symbol {
			return i, true
		}
	}
	return 0, false
}

// At returns the entry for (a, b). ok is false when either symbol is not on
// the axes; a present entry may still be NaN.
func (c *CorrelationMatrix) At(a, b string) (float64, bool) {
	i, ok := c.Index(a)
	if !ok {
		return 0, false
	}
	j, ok := c.Index(b)
	if !ok {
		return 0, false
	}
	return c.Values[i][j], true
}

// Subset returns a matrix restricted to keep, in the order of c.Symbols.
func (c *CorrelationMatrix) Subset(keep map[string]bool) *CorrelationMatrix {
	var idx []int
	for i, s := range c.Symbols {
		if keep[s] {
			idx = append(idx, i)
		}
	}
	out := &CorrelationMatrix{
		Symbols: make([]string, len(idx)),
		Values:  make([][]float64, len(idx)),
		Lag:     c.Lag,
	}
	for a, i := range idx {
		out.Symbols[a] = c.Symbols[i]
		out.Values[a] = make([]float64, len(idx))
		for b, j := range idx {
			out.Values[a][b] = c.Values[i][j]
		}
	}
	return out
}

type correlationMatrixJSON struct {
	Symbols []string     `json:"symbols"`
	Values  [][]*float64 `json:"values"`
	Lag     int          `json:"lag"`
}

// MarshalJSON encodes NaN entries as null.
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(correlationMatrixJSON{
		Symbols: c.Symbols,
		Values:  nullable(c.Values),
		Lag:     c.Lag,
	})
}

// UnmarshalJSON decodes a matrix written by MarshalJSON.
func (c *CorrelationMatrix) UnmarshalJSON(data []byte) error {
	var w correlationMatrixJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Symbols = w.Symbols
	c.Values = fromNullable(w.Values)
	c.Lag = w.Lag
	return nil
}

// RankedPair is one unordered pair of distinct assets with its coefficient.
type RankedPair struct {
	AssetA string  `json:"asset_a"`
	AssetB string  `json:"asset_b"`
	Value  float64 `json:"value"`
}
