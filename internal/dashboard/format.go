package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatCount renders a count with thousands separators. Fractional counts
// keep one decimal.
func FormatCount(v float64) string {
	prec := 0
	if math.Abs(v-math.Round(v)) > 1e-9 {
		prec = 1
	}
	s := strconv.FormatFloat(math.Abs(v), 'f', prec, 64)
	intPart, fracPart, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	if v < 0 {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatPercent renders the magnitude of pct with one decimal and an arrow
// for its direction, e.g. "12.5% ↑".
func FormatPercent(pct float64) string {
	arrow := "↑"
	if pct < 0 {
		arrow = "↓"
	}
	return fmt.Sprintf("%.1f%% %s", math.Abs(pct), arrow)
}

// FormatSignedPercent renders pct with an explicit sign, e.g. "+12.5%".
func FormatSignedPercent(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

// FormatChange renders an absolute change as a direction word followed by
// the magnitude.
func FormatChange(delta float64) string {
	word := "زيادة"
	if delta < 0 {
		word = "انخفاض"
	}
	return word + " " + FormatCount(math.Abs(delta))
}
