package dataprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"registrydash/pkg/contracts/domain"
)

// Describe summarises both count columns the way a describe() table does:
// count, mean, sample std, min, quartiles and max.
func Describe(table domain.Table) domain.Statistics {
	y2024 := make([]float64, 0, table.Len())
	y2025 := make([]float64, 0, table.Len())
	for _, r := range table.Records {
		y2024 = append(y2024, r.Count2024)
		y2025 = append(y2025, r.Count2025)
	}
	return domain.Statistics{Columns: []domain.ColumnStats{
		describeColumn(domain.Column2024, y2024),
		describeColumn(domain.Column2025, y2025),
	}}
}

func describeColumn(name string, values []float64) domain.ColumnStats {
	cs := domain.ColumnStats{Column: name, Count: len(values)}
	if len(values) == 0 {
		return cs
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	cs.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		cs.Std = stat.StdDev(sorted, nil)
	}
	cs.Min = floats.Min(sorted)
	cs.Max = floats.Max(sorted)
	cs.Q25 = quantile(sorted, 0.25)
	cs.Median = quantile(sorted, 0.50)
	cs.Q75 = quantile(sorted, 0.75)
	return cs
}

// quantile interpolates linearly between the closest ranks of sorted data,
// position (n-1)*p.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := float64(len(sorted)-1) * p
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
