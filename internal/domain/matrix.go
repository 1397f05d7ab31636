// Package domain defines the core types shared across corrboard: bars,
// price matrices, correlation matrices, ranked pairs and request parameters.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
)

// Bar is a single OHLCV bar for one symbol. Close holds the adjusted close
// when the provider supports adjustments.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// ---------------------------------------------------------------------------
// PriceMatrix
// ---------------------------------------------------------------------------

// PriceMatrix is a table of prices with timestamps as rows and symbols as
// columns. Values are stored column-major: Values[col][row]. NaN marks a
// missing observation.
type PriceMatrix struct {
	Times   []time.Time
	Symbols []string
	Values  [][]float64
}

// NewPriceMatrix validates the shape of the given columns and returns a
// matrix over them. Times must be strictly ascending.
func NewPriceMatrix(times []time.Time, symbols []string, cols [][]float64) (*PriceMatrix, error) {
	if len(symbols) != len(cols) {
		return nil, fmt.Errorf("%d symbols for %d columns", len(symbols), len(cols))
	}
	for i, c := range cols {
		if len(c) != len(times) {
			return nil, fmt.Errorf("column %s has %d rows, want %d", symbols[i], len(c), len(times))
		}
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, fmt.Errorf("timestamps not ascending at row %d", i)
		}
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			return nil, fmt.Errorf("duplicate column %s", s)
		}
		seen[s] = struct{}{}
	}
	return &PriceMatrix{Times: times, Symbols: symbols, Values: cols}, nil
}

// Rows returns the number of timestamps.
func (m *PriceMatrix) Rows() int { return len(m.Times) }

// Cols returns the number of symbols.
func (m *PriceMatrix) Cols() int { return len(m.Symbols) }

// Empty reports whether the matrix has no rows or no columns.
func (m *PriceMatrix) Empty() bool {
	return m == nil || m.Rows() == 0 || m.Cols() == 0
}

// Index returns the column index of symbol.
func (m *PriceMatrix) Index(symbol string) (int, bool) {
	for i, s := range m.Symbols {
		if s == symbol {
			return i, true
		}
	}
	return 0, false
}

// Column returns the series for symbol. The slice aliases the matrix.
func (m *PriceMatrix) Column(symbol string) ([]float64, bool) {
	i, ok := m.Index(symbol)
	if !ok {
		return nil, false
	}
	return m.Values[i], true
}

// Clone returns a deep copy.
func (m *PriceMatrix) Clone() *PriceMatrix {
	out := &PriceMatrix{
		Times:   append([]time.Time(nil), m.Times...),
		Symbols: append([]string(nil), m.Symbols...),
		Values:  make([][]float64, len(m.Values)),
	}
	for i, c := range m.Values {
		out.Values[i] = append([]float64(nil), c...)
	}
	return out
}

// ValidCount returns the number of non-NaN observations in column i.
func (m *PriceMatrix) ValidCount(i int) int {
	n := 0
	for _, v := range m.Values[i] {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// priceMatrixJSON is the wire form; NaN cells encode as null.
type priceMatrixJSON struct {
	Times   []time.Time  `json:"times"`
	Symbols []string     `json:"symbols"`
	Values  [][]*float64 `json:"values"`
}

// MarshalJSON encodes the matrix with NaN cells as null.
func (m PriceMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceMatrixJSON{
		Times:   m.Times,
		Symbols: m.Symbols,
		Values:  nullable(m.Values),
	})
}

// UnmarshalJSON decodes a matrix written by MarshalJSON.
func (m *PriceMatrix) UnmarshalJSON(data []byte) error {
	var w priceMatrixJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	pm, err := NewPriceMatrix(w.Times, w.Symbols, fromNullable(w.Values))
	if err != nil {
		return err
	}
	*m = *pm
	return nil
}

// MatrixFromBars builds a PriceMatrix of closing prices. Rows are the union
// of all bar timestamps; a symbol without a bar at a timestamp gets NaN.
// Columns follow order; symbols in order without any bar are left out, and
// bars for symbols not in order are ignored. A nil order keeps every symbol
// in sorted order.
func MatrixFromBars(bars []Bar, order []string) *PriceMatrix {
	bySymbol := make(map[string]map[int64]float64)
	stamps := make(map[int64]time.Time)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		if bySymbol[sym] == nil {
			bySymbol[sym] = make(map[int64]float64)
		}
		key := b.Timestamp.UnixNano()
		bySymbol[sym][key] = b.Close
		stamps[key] = b.Timestamp
	}

	if order == nil {
		for sym := range bySymbol {
			order = append(order, sym)
		}
		sort.Strings(order)
	}

	keys := make([]int64, 0, len(stamps))
	for k := range stamps {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	m := &PriceMatrix{Times: make([]time.Time, len(keys))}
	for i, k := range keys {
		m.Times[i] = stamps[k].UTC()
	}
	seen := make(map[string]bool, len(order))
	for _, sym := range order {
		sym = strings.ToUpper(sym)
		series, ok := bySymbol[sym]
		if !ok || seen[sym] {
			continue
		}
		seen[sym] = true
		col := make([]float64, len(keys))
		for i, k := range keys {
			v, ok := series[k]
			if !ok {
				v = math.NaN()
			}
			col[i] = v
		}
		m.Symbols = append(m.Symbols, sym)
		m.Values = append(m.Values, col)
	}
	return m
}

func nullable(cols [][]float64) [][]*float64 {
	out := make([][]*float64, len(cols))
	for i, c := range cols {
		out[i] = make([]*float64, len(c))
		for j, v := range c {
			if math.IsNaN(v) {
				continue
			}
			v := v
			out[i][j] = &v
		}
	}
	return out
}

func fromNullable(cols [][]*float64) [][]float64 {
	out := make([][]float64, len(cols))
	for i, c := range cols {
		out[i] = make([]float64, len(c))
		for j, p := range c {
			if p == nil {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = *p
		}
	}
	return out
}
