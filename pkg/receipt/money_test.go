package receipt

import "testing"

func TestParseDecimalToPence(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"2.50", 250, true},
		{"2,50", 250, true},
		{"0.00", 0, true},
		{"12.344", 1234, true},
		{"12.345", 1235, true},
		{"7", 700, true},
		{".99", 99, true},
		{"-1.00", 0, false},
		{"+1.00", 0, false},
		{"1.2.3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseDecimalToPence(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("%q: got (%d, %v) want %d", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("%q: expected error", c.in)
		}
	}
}

func TestFormatPence(t *testing.T) {
	if got := FormatPence(775); got != "7.75" {
		t.Fatalf("got %q", got)
	}
	if got := FormatPence(5); got != "0.05" {
		t.Fatalf("got %q", got)
	}
	if got := FormatPence(0); got != "0.00" {
		t.Fatalf("got %q", got)
	}
}
