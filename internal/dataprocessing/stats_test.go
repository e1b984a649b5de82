package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrydash/pkg/contracts/domain"
)

func TestDescribe(t *testing.T) {
	table := makeTable(rec("A", 1, 10), rec("B", 2, 20), rec("C", 3, 30), rec("D", 4, 40))

	stats := Describe(table)
	require.Len(t, stats.Columns, 2)

	c := stats.Columns[0]
	assert.Equal(t, domain.Column2024, c.Column)
	assert.Equal(t, 4, c.Count)
	assert.InDelta(t, 2.5, c.Mean, 1e-9)
	assert.InDelta(t, 1.2909944487, c.Std, 1e-9)
	assert.Equal(t, 1.0, c.Min)
	assert.InDelta(t, 1.75, c.Q25, 1e-9)
	assert.InDelta(t, 2.5, c.Median, 1e-9)
	assert.InDelta(t, 3.25, c.Q75, 1e-9)
	assert.Equal(t, 4.0, c.Max)

	assert.InDelta(t, 25.0, stats.Columns[1].Median, 1e-9)
}

func TestDescribe_EdgeCases(t *testing.T) {
	empty := Describe(domain.Table{})
	assert.Equal(t, 0, empty.Columns[0].Count)
	assert.Equal(t, 0.0, empty.Columns[0].Mean)

	single := Describe(makeTable(rec("A", 7, 9))).Columns[1]
	assert.Equal(t, 1, single.Count)
	assert.Equal(t, 0.0, single.Std, "std of a single value reported as zero")
	assert.Equal(t, 9.0, single.Q25)
	assert.Equal(t, 9.0, single.Max)
}

func TestDescribe_UnsortedInput(t *testing.T) {
	c := Describe(makeTable(rec("A", 9, 0), rec("B", 1, 0), rec("C", 5, 0))).Columns[0]
	assert.Equal(t, 1.0, c.Min)
	assert.Equal(t, 5.0, c.Median)
	assert.Equal(t, 9.0, c.Max)
}
