package dataprocessing

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"registrydash/pkg/contracts/domain"
)

// CategoryRule assigns a category to labels matching exactly or by substring.
type CategoryRule struct {
	Category domain.Category `yaml:"category"`
	Labels   []string        `yaml:"labels,omitempty"`
	Contains []string        `yaml:"contains,omitempty"`
}

// CategoryMapping is the label taxonomy applied once at load time.
type CategoryMapping struct {
	Rules []CategoryRule `yaml:"rules"`
	// SubtotalLabels are aggregate rows that do not carry the marker token.
	SubtotalLabels []string `yaml:"subtotal_labels,omitempty"`
	// SubtotalMarker marks aggregate rows by substring.
	SubtotalMarker string `yaml:"subtotal_marker,omitempty"`
}

// ServiceLabels is the fixed list of additional registry services.
var ServiceLabels = []string{
	"ترسيم رهون",
	"ترسيم إيجار",
	"طلب شهادة حجز تسمية",
	"استخراج مضمون",
	"دعوة لجلسة عامة",
	"التصريح بالمستفيد الحقيقي",
}

// Default substrings used to recognise creation and update operations.
var (
	CreationPatterns = []string{"طلب تأسيس", "إنشاء"}
	UpdatePatterns   = []string{"طلب عمليات", "تحديث"}
)

// DefaultCategoryMapping returns the built-in taxonomy.
func DefaultCategoryMapping() CategoryMapping {
	return CategoryMapping{
		Rules: []CategoryRule{
			{Category: domain.CategoryService, Labels: append([]string(nil), ServiceLabels...)},
			{Category: domain.CategoryCreation, Contains: append([]string(nil), CreationPatterns...)},
			{Category: domain.CategoryUpdate, Contains: append([]string(nil), UpdatePatterns...)},
		},
		SubtotalMarker: domain.TotalMarker,
	}
}

// LoadCategoryMapping reads a YAML mapping file. Missing fields fall back
// to the defaults.
func LoadCategoryMapping(path string) (CategoryMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CategoryMapping{}, fmt.Errorf("failed to read category mapping: %w", err)
	}

	var m CategoryMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return CategoryMapping{}, fmt.Errorf("failed to parse category mapping: %w", err)
	}
	if err := m.validate(); err != nil {
		return CategoryMapping{}, err
	}

	def := DefaultCategoryMapping()
	if len(m.Rules) == 0 {
		m.Rules = def.Rules
	}
	if m.SubtotalMarker == "" {
		m.SubtotalMarker = def.SubtotalMarker
	}
	return m, nil
}

func (m CategoryMapping) validate() error {
	for i, rule := range m.Rules {
		switch rule.Category {
		case domain.CategoryCreation, domain.CategoryUpdate, domain.CategoryService, domain.CategoryOther:
		default:
			return fmt.Errorf("rule %d: unknown category %q", i, rule.Category)
		}
		if len(rule.Labels) == 0 && len(rule.Contains) == 0 {
			return fmt.Errorf("rule %d: needs labels or contains", i)
		}
	}
	return nil
}

// Classifier derives category and aggregate flags from labels.
type Classifier struct {
	exact     map[string]domain.Category
	rules     []CategoryRule
	subtotals map[string]struct{}
	marker    string
}

// NewClassifier compiles a mapping.
func NewClassifier(m CategoryMapping) *Classifier {
	c := &Classifier{
		exact:     make(map[string]domain.Category),
		rules:     m.Rules,
		subtotals: make(map[string]struct{}, len(m.SubtotalLabels)),
		marker:    m.SubtotalMarker,
	}
	// Earlier rules win for exact labels too.
	for _, rule := range m.Rules {
		for _, label := range rule.Labels {
			label = strings.TrimSpace(label)
			if _, ok := c.exact[label]; !ok {
				c.exact[label] = rule.Category
			}
		}
	}
	for _, label := range m.SubtotalLabels {
		c.subtotals[strings.TrimSpace(label)] = struct{}{}
	}
	return c
}

// Category classifies one label. Exact labels take precedence over
// substring rules.
func (c *Classifier) Category(label string) domain.Category {
	if cat, ok := c.exact[label]; ok {
		return cat
	}
	for _, rule := range c.rules {
		if containsAny(label, rule.Contains) {
			return rule.Category
		}
	}
	return domain.CategoryOther
}

// IsSubtotal reports whether label names an aggregate row.
func (c *Classifier) IsSubtotal(label string) bool {
	if _, ok := c.subtotals[label]; ok {
		return true
	}
	return c.marker != "" && strings.Contains(label, c.marker)
}

// Apply sets Category, IsSubtotal and IsGrandTotal on every record in place.
// Only the last record may be the grand total.
func (c *Classifier) Apply(records []domain.OperationRecord) {
	for i := range records {
		records[i].Category = c.Category(records[i].OperationType)
		records[i].IsSubtotal = c.IsSubtotal(records[i].OperationType)
		records[i].IsGrandTotal = false
	}
	if n := len(records); n > 0 && c.marker != "" && strings.Contains(records[n-1].OperationType, c.marker) {
		records[n-1].IsGrandTotal = true
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, p) {
			return true
		}
	}
	return false
}
