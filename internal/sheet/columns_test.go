package sheet

import (
	"reflect"
	"testing"
)

func TestLetterToNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A", 1},
		{"B", 2},
		{"Z", 26},
		{"AA", 27},
		{"AZ", 52},
		{"BA", 53},
		{"ZZ", 702},
		{"a", 1},
		{"", 0},
	}

	for _, tt := range tests {
		if got := LetterToNumber(tt.in); got != tt.want {
			t.Errorf("LetterToNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNumberToLetter(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{1, "A"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
		{0, ""},
		{-5, ""},
	}

	for _, tt := range tests {
		if got := NumberToLetter(tt.in); got != tt.want {
			t.Errorf("NumberToLetter(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Round-trip over every one- and two-letter column string.
func TestLetterNumberRoundTrip(t *testing.T) {
	var all []string
	for a := 'A'; a <= 'Z'; a++ {
		all = append(all, string(a))
	}
	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			all = append(all, string(a)+string(b))
		}
	}

	for _, s := range all {
		if got := NumberToLetter(LetterToNumber(s)); got != s {
			t.Fatalf("round trip %q -> %d -> %q", s, LetterToNumber(s), got)
		}
	}
}

func TestEmptyColumnsAfter(t *testing.T) {
	got := EmptyColumnsAfter([]string{"A", "C"}, 5)
	want := []string{"D", "E", "F", "G", "H"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EmptyColumnsAfter(['A','C'], 5) = %v, want %v", got, want)
	}

	got = EmptyColumnsAfter(nil, 3)
	want = []string{"A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EmptyColumnsAfter([], 3) = %v, want %v", got, want)
	}

	// Crossing the Z boundary.
	got = EmptyColumnsAfter([]string{"Y"}, 3)
	want = []string{"Z", "AA", "AB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("EmptyColumnsAfter(['Y'], 3) = %v, want %v", got, want)
	}

	if got := EmptyColumnsAfter([]string{"A"}, 0); got != nil {
		t.Errorf("EmptyColumnsAfter(n=0) = %v, want nil", got)
	}
}

func TestBuildRange(t *testing.T) {
	if got := BuildRange("A", "C", 2, 51); got != "A2:C51" {
		t.Errorf("BuildRange = %q, want A2:C51", got)
	}
	// No ordering validation: caller's responsibility.
	if got := BuildRange("C", "A", 51, 2); got != "C51:A2" {
		t.Errorf("BuildRange = %q, want C51:A2", got)
	}
}

func TestAllocatorConsecutive(t *testing.T) {
	a := NewAllocator([]string{"D", "E", "F", "G"})

	first := a.Next(3)
	if !reflect.DeepEqual(first, []string{"D", "E", "F"}) {
		t.Fatalf("first allocation = %v", first)
	}
	second := a.Next(1)
	if !reflect.DeepEqual(second, []string{"G"}) {
		t.Fatalf("second allocation = %v", second)
	}
	if a.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", a.Remaining())
	}
}

func TestAllocatorSynthesizesPastPool(t *testing.T) {
	a := NewAllocator([]string{"Y", "Z"})

	got := a.Next(4)
	want := []string{"Y", "Z", "AA", "AB"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Next(4) = %v, want %v", got, want)
	}

	// Further allocations keep advancing, never reuse.
	if next := a.Next(1); next[0] != "AC" {
		t.Fatalf("Next(1) after exhaustion = %v, want [AC]", next)
	}
}

func TestAllocatorReserveExcludesColumn(t *testing.T) {
	a := NewAllocator([]string{"D", "E", "F"})
	a.Reserve("E")

	got := a.Next(3)
	want := []string{"D", "F", "G"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Next(3) with E reserved = %v, want %v", got, want)
	}
	if a.Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", a.Remaining())
	}
}

func TestAllocatorReserveCountsAgainstRemaining(t *testing.T) {
	a := NewAllocator([]string{"D", "E", "F"})
	a.Reserve("d")

	if a.Remaining() != 2 {
		t.Fatalf("Remaining = %d, want 2", a.Remaining())
	}
	if got := a.Next(1); got[0] != "E" {
		t.Fatalf("Next(1) = %v, want [E]", got)
	}
}

func TestAllocatorEmptyPool(t *testing.T) {
	a := NewAllocator(nil)
	got := a.Next(2)
	if !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("Next(2) on empty pool = %v", got)
	}
}

func TestExplicitOutputColumn(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"summarize reviews to column H", "H"},
		{"write results in column AB please", "AB"},
		{"classify into column d", "D"},
		{"summarize the reviews", ""},
		{"to column", ""},
	}

	for _, tt := range tests {
		if got := ExplicitOutputColumn(tt.command); got != tt.want {
			t.Errorf("ExplicitOutputColumn(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}
