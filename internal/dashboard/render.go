package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"corrboard/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	symbolStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	positiveText = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	negativeText = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// heatScale runs from -1 (deep blue) through white to +1 (deep red).
var heatScale = []lipgloss.Color{"19", "27", "75", "153", "255", "224", "210", "203", "160"}

// heatColor maps a correlation to a background colour of heatScale.
func heatColor(v float64) lipgloss.Color {
	if math.IsNaN(v) {
		return lipgloss.Color("236")
	}
	v = math.Max(-1, math.Min(1, v))
	idx := int(math.Round((v + 1) / 2 * float64(len(heatScale)-1)))
	return heatScale[idx]
}

// RenderHeatmap draws the matrix as a coloured grid of two-decimal cells.
func RenderHeatmap(c *domain.CorrelationMatrix) string {
	if c == nil || c.Size() == 0 {
		return dimStyle.Render("(empty matrix)")
	}
	width := 6
	for _, s := range c.Symbols {
		width = max(width, len(s)+1)
	}
	cell := lipgloss.NewStyle().Width(width).Align(lipgloss.Right)

	var b strings.Builder
	b.WriteString(cell.Render(""))
	for _, s := range c.Symbols {
		b.WriteString(headerStyle.Inherit(cell).Render(s))
	}
	b.WriteByte('\n')

	for i, row := range c.Values {
		b.WriteString(symbolStyle.Inherit(cell).Render(c.Symbols[i]))
		for _, v := range row {
			fg := lipgloss.Color("0")
			if !math.IsNaN(v) && math.Abs(v) > 0.75 {
				fg = lipgloss.Color("15")
			}
			b.WriteString(cell.Background(heatColor(v)).Foreground(fg).Render(FormatCorr(v)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderTable lists ranked pairs under a title.
func RenderTable(title string, pairs []domain.RankedPair) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteByte('\n')
	if len(pairs) == 0 {
		b.WriteString(dimStyle.Render("no pairs"))
		b.WriteByte('\n')
		return b.String()
	}

	wa, wb := len("Asset 1"), len("Asset 2")
	for _, p := range pairs {
		wa = max(wa, len(p.AssetA))
		wb = max(wb, len(p.AssetB))
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%4s  %-*s  %-*s  %11s", "#", wa, "Asset 1", wb, "Asset 2", "Correlation")))
	b.WriteByte('\n')
	for i, p := range pairs {
		val := fmt.Sprintf("%11s", FormatCorr(p.Value))
		if p.Value < 0 {
			val = negativeText.Render(val)
		} else {
			val = positiveText.Render(val)
		}
		fmt.Fprintf(&b, "%4d  %-*s  %-*s  %s\n", i+1, wa, p.AssetA, wb, p.AssetB, val)
	}
	return b.String()
}

// RenderReport renders the full terminal view of a report.
func RenderReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s  %s observations\n",
		symbolStyle.Render(strings.Join(r.Present, ",")),
		dimStyle.Render("timeframe="+r.Timeframe.Name),
		dimStyle.Render("method="+string(r.Method)),
		FormatInt(r.Observations),
	)
	for _, w := range r.Warnings {
		b.WriteString(warnStyle.Render("warning: "+w) + "\n")
	}
	if len(r.Missing) > 0 {
		b.WriteString(warnStyle.Render("no data: "+strings.Join(r.Missing, ", ")) + "\n")
	}
	b.WriteByte('\n')
	b.WriteString(RenderTable(fmt.Sprintf("Top %d Correlated Pairs", r.TopN), r.Pairs))
	if r.LaggedMatrix != nil {
		b.WriteByte('\n')
		b.WriteString(RenderTable(fmt.Sprintf("Top %d Correlated Pairs with Lag (%s)", r.TopN, r.Lag), r.LaggedPairs))
	}
	b.WriteByte('\n')
	b.WriteString(titleStyle.Render("Correlation Heatmap"))
	b.WriteByte('\n')
	b.WriteString(RenderHeatmap(r.Matrix))
	return b.String()
}
