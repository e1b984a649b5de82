package dashboard

import (
	"fmt"
	"math"

	"registrydash/pkg/contracts/domain"
)

func changeInsight(kind, subject string, pct float64) domain.Insight {
	sign := "+"
	if pct < 0 {
		sign = "-"
	}
	return domain.Insight{
		Kind:  kind,
		Text:  fmt.Sprintf("%s تغيرت بنسبة %.1f%% %s", subject, math.Abs(pct), sign),
		Label: subject,
		Value: pct,
	}
}

// highlightInsights names the largest operation of 2025 and the two
// biggest movers.
func highlightInsights(top domain.OperationRecord, up, down domain.Mover) []domain.Insight {
	return []domain.Insight{
		{
			Kind:  "top_operation",
			Text:  fmt.Sprintf("أعلى عملية في 2025: %s بعدد %s طلب", top.OperationType, FormatCount(top.Count2025)),
			Label: top.OperationType,
			Value: top.Count2025,
		},
		{
			Kind:  "biggest_increase",
			Text:  fmt.Sprintf("أكبر زيادة في: %s (%.1f%%)", up.OperationType, up.ChangePct),
			Label: up.OperationType,
			Value: up.ChangePct,
		},
		{
			Kind:  "biggest_decrease",
			Text:  fmt.Sprintf("أكبر انخفاض في: %s (%.1f- %%)", down.OperationType, math.Abs(down.ChangePct)),
			Label: down.OperationType,
			Value: down.ChangePct,
		},
	}
}
