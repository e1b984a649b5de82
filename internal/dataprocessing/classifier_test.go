package dataprocessing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrydash/pkg/contracts/domain"
)

func TestClassifier_DefaultMapping(t *testing.T) {
	c := NewClassifier(DefaultCategoryMapping())

	tests := []struct {
		label    string
		category domain.Category
		subtotal bool
	}{
		{label: "طلب تأسيس شركة ذات مسؤولية محدودة", category: domain.CategoryCreation},
		{label: "إنشاء فرع", category: domain.CategoryCreation},
		{label: "طلب عمليات على السجل", category: domain.CategoryUpdate},
		{label: "تحديث البيانات", category: domain.CategoryUpdate},
		{label: "طلب عمليات تحيين أشخاص طبيعيين", category: domain.CategoryUpdate},
		{label: "ترسيم رهون", category: domain.CategoryService},
		{label: "التصريح بالمستفيد الحقيقي", category: domain.CategoryService},
		{label: "مجموع عمليات التأسيس", category: domain.CategoryOther, subtotal: true},
		{label: "مجموع عمليات التحيين", category: domain.CategoryOther, subtotal: true},
		{label: "شيء آخر", category: domain.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.category, c.Category(tt.label))
			assert.Equal(t, tt.subtotal, c.IsSubtotal(tt.label))
		})
	}
}

func TestClassifier_ExactLabelsWinOverSubstrings(t *testing.T) {
	c := NewClassifier(CategoryMapping{
		Rules: []CategoryRule{
			{Category: domain.CategoryUpdate, Contains: []string{"شهادة"}},
			{Category: domain.CategoryService, Labels: []string{"طلب شهادة حجز تسمية"}},
		},
		SubtotalLabels: []string{"الإجمالي"},
	})

	assert.Equal(t, domain.CategoryService, c.Category("طلب شهادة حجز تسمية"))
	assert.Equal(t, domain.CategoryUpdate, c.Category("شهادة أخرى"))
	assert.True(t, c.IsSubtotal("الإجمالي"))
	assert.False(t, c.IsSubtotal("مجموع"), "no marker configured")
}

func TestClassifier_Apply(t *testing.T) {
	c := NewClassifier(DefaultCategoryMapping())
	records := []domain.OperationRecord{
		{OperationType: "مجموع عمليات التأسيس"},
		{OperationType: "ترسيم إيجار"},
		{OperationType: "المجموع العام"},
	}
	c.Apply(records)

	assert.True(t, records[0].IsSubtotal)
	assert.False(t, records[0].IsGrandTotal)
	assert.Equal(t, domain.CategoryService, records[1].Category)
	assert.True(t, records[2].IsGrandTotal)

	noGrand := []domain.OperationRecord{{OperationType: "مجموع عمليات التأسيس"}, {OperationType: "ترسيم إيجار"}}
	c.Apply(noGrand)
	assert.False(t, noGrand[0].IsGrandTotal)
	assert.False(t, noGrand[1].IsGrandTotal)
}

func TestLoadCategoryMapping(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`
rules:
  - category: creation
    contains: ["تأسيس"]
  - category: service
    labels: ["ترسيم رهون"]
subtotal_labels: ["الإجمالي العام"]
`), 0o644))

	m, err := LoadCategoryMapping(valid)
	require.NoError(t, err)
	require.Len(t, m.Rules, 2)
	assert.Equal(t, domain.TotalMarker, m.SubtotalMarker, "marker defaulted")
	assert.Equal(t, []string{"الإجمالي العام"}, m.SubtotalLabels)

	c := NewClassifier(m)
	assert.Equal(t, domain.CategoryCreation, c.Category("مجموع عمليات التأسيس"))

	badCategory := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badCategory, []byte("rules:\n  - category: misc\n    labels: [a]\n"), 0o644))
	_, err = LoadCategoryMapping(badCategory)
	assert.Error(t, err)

	emptyRule := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(emptyRule, []byte("rules:\n  - category: service\n"), 0o644))
	_, err = LoadCategoryMapping(emptyRule)
	assert.Error(t, err)

	defaults := filepath.Join(dir, "defaults.yaml")
	require.NoError(t, os.WriteFile(defaults, []byte("subtotal_labels: [x]\n"), 0o644))
	m, err = LoadCategoryMapping(defaults)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryMapping().Rules, m.Rules)

	_, err = LoadCategoryMapping(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
