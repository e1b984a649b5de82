package dashboard

import (
	"strings"

	"registrydash/internal/dataprocessing"
	"registrydash/pkg/contracts/domain"
)

// DefaultLabels is the initial multi-select state of the dashboard.
var DefaultLabels = []string{
	domain.LabelTotalCreation,
	domain.LabelTotalUpdate,
	"استخراج مضمون",
	"طلب شهادة حجز تسمية",
	"ترسيم رهون",
	"ترسيم إيجار",
	"دعوة لجلسة عامة",
	"التصريح بالمستفيد الحقيقي",
}

// Selection is the user's label filter.
//
// Explicit distinguishes a filter the caller chose from the default one.
// An explicit empty selection means "no filter", as with an emptied
// multi-select.
type Selection struct {
	Labels   []string `json:"labels"`
	Explicit bool     `json:"explicit"`
}

// DefaultSelection returns a selection of labels, or of DefaultLabels when
// labels is empty.
func DefaultSelection(labels []string) Selection {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return Selection{Labels: append([]string(nil), labels...)}
}

// ExplicitSelection builds a caller-chosen selection. Entries may be comma
// separated; blanks and duplicates are dropped.
func ExplicitSelection(raw []string) Selection {
	seen := make(map[string]struct{})
	labels := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, label := range strings.Split(entry, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
	}
	return Selection{Labels: labels, Explicit: true}
}

// IsAll reports whether the selection keeps every row.
func (s Selection) IsAll() bool {
	return s.Explicit && len(s.Labels) == 0
}

// Apply returns the rows of table the selection keeps.
func (s Selection) Apply(table domain.Table) domain.Table {
	if s.IsAll() {
		return table.Clone()
	}
	return dataprocessing.FilterByLabels(table, s.Labels)
}

// Scope returns the table a category view works on: the whole table unless
// the caller narrowed it explicitly.
func (s Selection) Scope(table domain.Table) domain.Table {
	if !s.Explicit {
		return table.Clone()
	}
	return s.Apply(table)
}
