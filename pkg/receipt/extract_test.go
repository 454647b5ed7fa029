package receipt

import (
	"strings"
	"testing"
)

func TestExtractLineItems(t *testing.T) {
	text := "Milk 2.50\nBread 1.20\nNotes about nothing\nTotal 3.70"
	items := ExtractLineItems(text)
	if len(items) != 3 {
		t.Fatalf("expected 3 candidates got %d: %+v", len(items), items)
	}
	want := []struct {
		label  string
		amount int64
	}{
		{"Milk", 250},
		{"Bread", 120},
		{"Total", 370}, // no semantic notion of a total line; kept on purpose
	}
	for i, w := range want {
		if items[i].Label != w.label || items[i].Amount != w.amount {
			t.Fatalf("item %d: got (%q, %d) want (%q, %d)", i, items[i].Label, items[i].Amount, w.label, w.amount)
		}
		if items[i].IsBusiness {
			t.Fatalf("item %d: OCR candidates must start unticked", i)
		}
		if items[i].ID == "" {
			t.Fatalf("item %d: missing id", i)
		}
	}
	if items[0].ID == items[1].ID {
		t.Fatalf("ids must be unique")
	}
}

func TestExtractDropsImplausibleAmounts(t *testing.T) {
	if items := ExtractLineItems("Paperclips 1500.00"); len(items) != 0 {
		t.Fatalf("amount >= 1000 must be dropped, got %+v", items)
	}
	if items := ExtractLineItems("Staples 999.99"); len(items) != 1 {
		t.Fatalf("amount just under the guard must survive, got %+v", items)
	}
}

func TestExtractIgnoresNonPriceLines(t *testing.T) {
	text := "Thank you for shopping\n\n\nSee you soon"
	if items := ExtractLineItems(text); len(items) != 0 {
		t.Fatalf("expected no candidates got %+v", items)
	}
	if items := ExtractLineItems(""); items != nil {
		t.Fatalf("empty text must yield nil, got %+v", items)
	}
}

func TestExtractCommaDecimal(t *testing.T) {
	items := ExtractLineItems("Sponges 3,40")
	if len(items) != 1 || items[0].Amount != 340 {
		t.Fatalf("comma separator not normalized: %+v", items)
	}
}

func TestCleanLabel(t *testing.T) {
	if got := CleanLabel("Café* crème!! #9"); got != "Caf crme 9" {
		t.Fatalf("unexpected cleaned label %q", got)
	}
	long := strings.Repeat("ab ", 40)
	if got := CleanLabel(long); len(got) > 60 {
		t.Fatalf("label not truncated: %d chars", len(got))
	}
}
