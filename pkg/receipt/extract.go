package receipt

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// maxLabelLen bounds line-item labels for display.
const maxLabelLen = 60

// maxItemPence rejects any single parsed line at or above 1000 currency
// units. OCR misreads that merge multiple numbers or pick up reference codes
// produce absurd amounts; receipts in this domain never have a single line
// that large, so dropping is safer than keeping (precision over recall).
const maxItemPence = 1000 * 100

var (
	// A candidate line is anything ending in a price-like token: two decimal
	// digits after a dot or comma, preceded by a label.
	lineItemRE   = regexp.MustCompile(`^(.*\S)\s+([0-9]+[.,][0-9]{2})$`)
	labelCleanRE = regexp.MustCompile(`[^A-Za-z0-9 .,-]`)
	spaceRunRE   = regexp.MustCompile(`\s+`)
)

// ExtractLineItems parses raw OCR text into line-item candidates, one per
// recognized line of the form "<label> <amount>". Lines that do not match the
// grammar are silently dropped; an empty result is a normal output, not an
// error. Candidates keep the text's top-to-bottom order, which approximates
// receipt print order. OCR cannot infer business intent, so every candidate
// starts with IsBusiness=false.
func ExtractLineItems(text string) []LineItem {
	var out []LineItem
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := lineItemRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		amount, err := ParseDecimalToPence(m[2])
		if err != nil || amount >= maxItemPence {
			continue
		}
		out = append(out, LineItem{
			ID:     uuid.NewString(),
			Label:  CleanLabel(m[1]),
			Amount: amount,
		})
	}
	return out
}

// CleanLabel strips characters outside [A-Za-z0-9 .,-], collapses whitespace
// and truncates to the display limit. Applied to OCR output and user edits
// alike so the stored label is always in canonical form.
func CleanLabel(s string) string {
	s = labelCleanRE.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRunRE.ReplaceAllString(s, " "))
	if len(s) > maxLabelLen {
		s = strings.TrimSpace(s[:maxLabelLen])
	}
	return s
}
