package correlation

import (
	"fmt"
	"math"
	"sort"

	"corrboard/internal/domain"
)

// TopPairs enumerates every unordered pair of distinct columns once, in
// column order, skips NaN entries, and returns the n pairs with the largest
// absolute value. Ties keep enumeration order. If fewer than n pairs exist,
// all of them are returned.
func TopPairs(c *domain.CorrelationMatrix, n int) []domain.RankedPair {
	pairs := make([]domain.RankedPair, 0, c.Size()*(c.Size()-1)/2)
	for i := 0; i < c.Size(); i++ {
		for j := i + 1; j < c.Size(); j++ {
			v := c.Values[i][j]
			if math.IsNaN(v) {
				continue
			}
			pairs = append(pairs, domain.RankedPair{AssetA: c.Symbols[i], AssetB: c.Symbols[j], Value: v})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Value) > math.Abs(pairs[b].Value)
	})
	if n < 0 {
		n = 0
	}
	if n < len(pairs) {
		pairs = pairs[:n]
	}
	return pairs
}

// Options controls Rank.
type Options struct {
	Method domain.Method
	TopN   int
}

// Result is the output of Rank.
type Result struct {
	// Returns is the cleaned return matrix the correlations were computed on.
	Returns *domain.PriceMatrix
	Matrix  *domain.CorrelationMatrix
	Pairs   []domain.RankedPair
	// Empty lists price columns without a single observation.
	Empty []string
	// Dropped lists columns whose correlations were all NaN.
	Dropped []string
}

// Rank runs the full ranking on a price matrix: empty columns are removed,
// prices become returns, incomplete rows are dropped, the correlation matrix
// is computed, all-NaN columns are removed and the top pairs are ranked.
func Rank(prices *domain.PriceMatrix, opts Options) (*Result, error) {
	if prices.Empty() {
		return nil, domain.ErrNoData
	}
	cleaned, empty := DropEmptyColumns(prices)
	if cleaned.Cols() == 0 {
		return nil, domain.ErrNoData
	}
	if cleaned.Cols() < 2 {
		return nil, fmt.Errorf("%w: %d asset(s) with data", domain.ErrInsufficientData, cleaned.Cols())
	}

	returns := DropMissing(PctChange(cleaned), Rows)
	matrix, dropped := DropNaNColumns(ComputeMatrix(returns, opts.Method))
	if matrix.Size() < 2 {
		return nil, fmt.Errorf("%w: %d usable observations", domain.ErrEmptyMatrix, returns.Rows())
	}

	return &Result{
		Returns: returns,
		Matrix:  matrix,
		Pairs:   TopPairs(matrix, opts.TopN),
		Empty:   empty,
		Dropped: dropped,
	}, nil
}

// TopLaggedPairs ranks a lagged matrix. For every unordered pair it keeps the
// stronger of the two directions, so the result does not depend on column
// order. A pair (A, B) carries corr(A[t], B[t-lag]): B is the leader. On a
// tie the column-order direction wins.
func TopLaggedPairs(c *domain.CorrelationMatrix, n int) []domain.RankedPair {
	pairs := make([]domain.RankedPair, 0, c.Size()*(c.Size()-1)/2)
	for i := 0; i < c.Size(); i++ {
		for j := i + 1; j < c.Size(); j++ {
			fwd, back := c.Values[i][j], c.Values[j][i]
			switch {
			case math.IsNaN(fwd) && math.IsNaN(back):
				continue
			case math.IsNaN(fwd) || math.Abs(back) > math.Abs(fwd):
				pairs = append(pairs, domain.RankedPair{AssetA: c.Symbols[j], AssetB: c.Symbols[i], Value: back})
			default:
				pairs = append(pairs, domain.RankedPair{AssetA: c.Symbols[i], AssetB: c.Symbols[j], Value: fwd})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return math.Abs(pairs[a].Value) > math.Abs(pairs[b].Value)
	})
	if n < 0 {
		n = 0
	}
	if n < len(pairs) {
		pairs = pairs[:n]
	}
	return pairs
}

// RankLagged computes the lagged matrix of returns at steps and ranks its
// pairs with TopLaggedPairs. The lag shifts returns, not price levels: the
// lagged section correlates A's return at t with B's return steps bars
// earlier.
func RankLagged(returns *domain.PriceMatrix, steps int, opts Options) (*domain.CorrelationMatrix, []domain.RankedPair, error) {
	lagged, err := ComputeLagged(returns, steps, opts.Method)
	if err != nil {
		return nil, nil, err
	}
	lagged, _ = DropNaNColumns(lagged)
	if lagged.Size() < 2 {
		return nil, nil, fmt.Errorf("%w: lag of %d steps over %d observations", domain.ErrEmptyMatrix, steps, returns.Rows())
	}
	return lagged, TopLaggedPairs(lagged, opts.TopN), nil
}
