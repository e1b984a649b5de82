package dataprocessing

import (
	"math"
	"sort"

	"registrydash/pkg/contracts/domain"
)

// ZeroBaselinePolicy documents how PercentChange treats a zero baseline:
// the result is 0, which hides growth from nothing.
const ZeroBaselinePolicy = "zero-baseline-yields-zero"

// Total sums both count columns, skipping the zero-based row positions in
// exclude. Out-of-range positions are ignored.
func Total(table domain.Table, exclude ...int) domain.Totals {
	skip := make(map[int]struct{}, len(exclude))
	for _, i := range exclude {
		skip[i] = struct{}{}
	}

	var t domain.Totals
	for i, r := range table.Records {
		if _, ok := skip[i]; ok {
			continue
		}
		t.Y2024 += r.Count2024
		t.Y2025 += r.Count2025
	}
	return t
}

// TotalExcludingSubtotals sums every record not flagged as an aggregate.
func TotalExcludingSubtotals(table domain.Table) domain.Totals {
	var t domain.Totals
	for _, r := range table.Records {
		if r.IsSubtotal || r.IsGrandTotal {
			continue
		}
		t.Y2024 += r.Count2024
		t.Y2025 += r.Count2025
	}
	return t
}

// PercentChange returns (after-before)/before*100, or 0 when before is 0
// or the ratio overflows.
func PercentChange(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	pct := (after - before) / before * 100
	if math.IsInf(pct, 0) || math.IsNaN(pct) {
		return 0
	}
	return pct
}

// Change returns the absolute and relative change between two totals.
func Change(t domain.Totals) (delta, pct float64) {
	return t.Y2025 - t.Y2024, PercentChange(t.Y2024, t.Y2025)
}

// LookupValue returns the year count of the first record labelled label.
func LookupValue(table domain.Table, label string, year domain.Year) (float64, error) {
	rec, err := LookupRecord(table, label)
	if err != nil {
		return 0, err
	}
	return rec.Count(year), nil
}

// LookupValueOr is LookupValue with an explicit fallback for call sites
// that accept a missing label.
func LookupValueOr(table domain.Table, label string, year domain.Year, fallback float64) float64 {
	v, err := LookupValue(table, label, year)
	if err != nil {
		return fallback
	}
	return v
}

// LookupRecord returns the first record labelled label.
func LookupRecord(table domain.Table, label string) (domain.OperationRecord, error) {
	for _, r := range table.Records {
		if r.OperationType == label {
			return r, nil
		}
	}
	return domain.OperationRecord{}, notFound(label)
}

// FilterByCategorySubstring keeps records whose label contains any pattern.
func FilterByCategorySubstring(table domain.Table, patterns []string) domain.Table {
	return filter(table, func(r domain.OperationRecord) bool {
		return containsAny(r.OperationType, patterns)
	})
}

// FilterByLabels keeps records whose label is in labels. An empty set
// yields an empty table.
func FilterByLabels(table domain.Table, labels []string) domain.Table {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return filter(table, func(r domain.OperationRecord) bool {
		_, ok := set[r.OperationType]
		return ok
	})
}

// FilterByCategory keeps records of the given categories.
func FilterByCategory(table domain.Table, categories ...domain.Category) domain.Table {
	return filter(table, func(r domain.OperationRecord) bool {
		for _, c := range categories {
			if r.Category == c {
				return true
			}
		}
		return false
	})
}

// WithoutSubtotals drops aggregate rows.
func WithoutSubtotals(table domain.Table) domain.Table {
	return filter(table, func(r domain.OperationRecord) bool {
		return !r.IsSubtotal && !r.IsGrandTotal
	})
}

// SubtotalsOnly keeps aggregate rows other than the grand total.
func SubtotalsOnly(table domain.Table) domain.Table {
	return filter(table, func(r domain.OperationRecord) bool {
		return r.IsSubtotal && !r.IsGrandTotal
	})
}

// WithoutGrandTotal drops the trailing grand-total row if present.
func WithoutGrandTotal(table domain.Table) domain.Table {
	return filter(table, func(r domain.OperationRecord) bool {
		return !r.IsGrandTotal
	})
}

func filter(table domain.Table, keep func(domain.OperationRecord) bool) domain.Table {
	records := make([]domain.OperationRecord, 0, len(table.Records))
	for _, r := range table.Clone().Records {
		if keep(r) {
			records = append(records, r)
		}
	}
	return table.WithRecords(records)
}

// RowChanges derives the per-row change columns into a new slice. The
// table is not modified.
func RowChanges(table domain.Table) []domain.RowChange {
	out := make([]domain.RowChange, 0, len(table.Records))
	for _, r := range table.Records {
		out = append(out, domain.RowChange{
			OperationType: r.OperationType,
			Count2024:     r.Count2024,
			Count2025:     r.Count2025,
			Change:        r.Count2025 - r.Count2024,
			ChangePct:     PercentChange(r.Count2024, r.Count2025),
		})
	}
	return out
}

// BiggestMover returns the record with the largest (increase) or smallest
// (decrease) percent change. Ties go to the earliest row.
func BiggestMover(table domain.Table, direction domain.Direction) (domain.Mover, error) {
	if table.Empty() {
		return domain.Mover{}, ErrEmptyInput
	}

	changes := RowChanges(table)
	best := 0
	for i := 1; i < len(changes); i++ {
		switch direction {
		case domain.DirectionDecrease:
			if changes[i].ChangePct < changes[best].ChangePct {
				best = i
			}
		default:
			if changes[i].ChangePct > changes[best].ChangePct {
				best = i
			}
		}
	}

	c := changes[best]
	return domain.Mover{
		OperationType: c.OperationType,
		ChangePct:     c.ChangePct,
		Count2024:     c.Count2024,
		Count2025:     c.Count2025,
	}, nil
}

// MaxByYear returns the record with the largest count for year. Ties go
// to the earliest row.
func MaxByYear(table domain.Table, year domain.Year) (domain.OperationRecord, error) {
	top, err := TopN(table, 1, year)
	if err != nil {
		return domain.OperationRecord{}, err
	}
	return top.Records[0], nil
}

// TopN returns the n records with the largest count for year, sorted
// descending with ties in source order. n <= 0 yields an empty table.
func TopN(table domain.Table, n int, year domain.Year) (domain.Table, error) {
	if table.Empty() {
		return domain.Table{Headers: table.Headers}, ErrEmptyInput
	}
	if n <= 0 {
		return table.WithRecords([]domain.OperationRecord{}), nil
	}

	records := table.Clone().Records
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Count(year) > records[j].Count(year)
	})
	if n < len(records) {
		records = records[:n]
	}
	return table.WithRecords(records), nil
}

// Share returns each record's percentage of the year total. A zero total
// yields zero shares.
func Share(table domain.Table, year domain.Year) []float64 {
	total := Total(table).Get(year)
	shares := make([]float64, len(table.Records))
	if total == 0 {
		return shares
	}
	for i, r := range table.Records {
		shares[i] = r.Count(year) / total * 100
	}
	return shares
}
