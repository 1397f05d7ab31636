package dashboard

import (
	"errors"

	"github.com/vicanso/go-charts/v2"

	"corrboard/internal/domain"
)

// RenderPairsChart draws the ranked pairs as a PNG bar chart on a fixed
// [-1, 1] axis.
func RenderPairsChart(title string, pairs []domain.RankedPair) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, errors.New("no pairs to chart")
	}

	labels := make([]string, len(pairs))
	values := make([]float64, len(pairs))
	for i, p := range pairs {
		labels[i] = PairLabel(p)
		values[i] = p.Value
	}

	yMin, yMax := -1.0, 1.0
	width := max(600, 60*len(pairs))
	painter, err := charts.BarRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(labels),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 4}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(400),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}
