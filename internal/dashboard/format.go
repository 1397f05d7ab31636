package dashboard

import (
	"fmt"
	"math"
	"strings"

	"corrboard/internal/domain"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) > 3 {
		var b strings.Builder
		start := len(s) % 3
		if start > 0 {
			b.WriteString(s[:start])
		}
		for i := start; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatCorr formats a correlation with two decimals, or "n/a" for NaN.
func FormatCorr(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	// Avoid "-0.00".
	if math.Abs(v) < 0.005 {
		v = 0
	}
	return fmt.Sprintf("%.2f", v)
}

// PairLabel renders a pair as "A - B".
func PairLabel(p domain.RankedPair) string {
	return p.AssetA + " - " + p.AssetB
}

// FormatPair renders a pair with its value, e.g. "SPY - QQQ: 0.93".
func FormatPair(p domain.RankedPair) string {
	return PairLabel(p) + ": " + FormatCorr(p.Value)
}
