package domain

// Source column headers. These fixed strings are the schema contract of the
// registry workbook and are matched after trimming.
const (
	ColumnOperationType = "نوع العملية"
	Column2024          = "2024 العدد"
	Column2025          = "2025 العدد"
	ColumnYearlyChange  = "الإنزلاق السنوي"
	ColumnTotal         = "إجمالي العمليات"
)

// TotalMarker is the token carried by aggregate rows ("total").
const TotalMarker = "مجموع"

// Canonical aggregate labels.
const (
	LabelTotalCreation = "مجموع عمليات التأسيس"
	LabelTotalUpdate   = "مجموع عمليات التحيين"
)

// Year selects one of the two count columns.
type Year int

const (
	Year2024 Year = 2024
	Year2025 Year = 2025
)

// Valid reports whether y is one of the two tracked years.
func (y Year) Valid() bool {
	return y == Year2024 || y == Year2025
}

// Category is the typed classification of an operation label.
type Category string

const (
	CategoryCreation Category = "creation"
	CategoryUpdate   Category = "update"
	CategoryService  Category = "service"
	CategoryOther    Category = "other"
)

// Direction selects the extreme returned by a biggest-mover search.
type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
)

// OperationRecord is one row of the registry table.
type OperationRecord struct {
	Row           int               `json:"row"`
	OperationType string            `json:"operation_type"`
	Count2024     float64           `json:"count_2024"`
	Count2025     float64           `json:"count_2025"`
	YearlyChange  string            `json:"yearly_change,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
	Category      Category          `json:"category"`
	IsSubtotal    bool              `json:"is_subtotal"`
	IsGrandTotal  bool              `json:"is_grand_total"`
}

// Count returns the count for the given year. Unknown years yield 0.
func (r OperationRecord) Count(year Year) float64 {
	switch year {
	case Year2024:
		return r.Count2024
	case Year2025:
		return r.Count2025
	default:
		return 0
	}
}

// Table is an ordered, read-only set of operation records. Filters and
// derivations always return new Tables.
type Table struct {
	Headers []string          `json:"headers"`
	Records []OperationRecord `json:"records"`
}

// Len returns the number of records.
func (t Table) Len() int {
	return len(t.Records)
}

// Empty reports whether the table has no records.
func (t Table) Empty() bool {
	return len(t.Records) == 0
}

// Labels returns the operation labels in row order.
func (t Table) Labels() []string {
	labels := make([]string, 0, len(t.Records))
	for _, r := range t.Records {
		labels = append(labels, r.OperationType)
	}
	return labels
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		Headers: append([]string(nil), t.Headers...),
		Records: make([]OperationRecord, len(t.Records)),
	}
	for i, r := range t.Records {
		if r.Extra != nil {
			extra := make(map[string]string, len(r.Extra))
			for k, v := range r.Extra {
				extra[k] = v
			}
			r.Extra = extra
		}
		out.Records[i] = r
	}
	return out
}

// WithRecords returns a table that shares t's headers and holds records.
func (t Table) WithRecords(records []OperationRecord) Table {
	return Table{
		Headers: append([]string(nil), t.Headers...),
		Records: records,
	}
}

// Totals holds per-year sums.
type Totals struct {
	Y2024 float64 `json:"total_2024"`
	Y2025 float64 `json:"total_2025"`
}

// Get returns the total for year.
func (t Totals) Get(year Year) float64 {
	if year == Year2024 {
		return t.Y2024
	}
	if year == Year2025 {
		return t.Y2025
	}
	return 0
}

// RowChange is a derived per-row view: counts plus computed change.
type RowChange struct {
	OperationType string  `json:"operation_type"`
	Count2024     float64 `json:"count_2024"`
	Count2025     float64 `json:"count_2025"`
	Change        float64 `json:"change"`
	ChangePct     float64 `json:"change_pct"`
}

// Mover is the result of a biggest-mover search.
type Mover struct {
	OperationType string  `json:"operation_type"`
	ChangePct     float64 `json:"change_pct"`
	Count2024     float64 `json:"count_2024"`
	Count2025     float64 `json:"count_2025"`
}

// ColumnStats mirrors a describe() summary for one numeric column.
type ColumnStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"p25"`
	Median float64 `json:"p50"`
	Q75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Statistics is the describe() summary for both count columns.
type Statistics struct {
	Columns []ColumnStats `json:"columns"`
}
