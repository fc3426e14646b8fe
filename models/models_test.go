package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecordCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Record
		want int
	}{
		{"equal", Record{"a", "b"}, Record{"a", "b"}, 0},
		{"first field", Record{"a", "z"}, Record{"b", "a"}, -1},
		{"second field", Record{"a", "c"}, Record{"a", "b"}, 1},
		{"prefix first", Record{"a"}, Record{"a", "b"}, -1},
		{"case sensitive", Record{"B"}, Record{"a"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRecordKey(t *testing.T) {
	if (Record{"ab", "c"}).Key() == (Record{"a", "bc"}).Key() {
		t.Error("records with different field boundaries must have different keys")
	}
	if (Record{"x", "y"}).Key() != (Record{"x", "y"}).Key() {
		t.Error("equal records must share a key")
	}
}

func TestSortRecords(t *testing.T) {
	records := []Record{{"Piet", "2"}, {"Anna", "9"}, {"Piet", "10"}}
	SortRecords(records)

	want := []Record{{"Anna", "9"}, {"Piet", "10"}, {"Piet", "2"}}
	for i := range want {
		if !records[i].Equal(want[i]) {
			t.Fatalf("position %d = %v, want %v", i, records[i], want[i])
		}
	}
}

func TestAlphabet(t *testing.T) {
	keys := Alphabet()
	if len(keys) != 26 {
		t.Fatalf("expected 26 keys, got %d", len(keys))
	}
	if keys[0] != "a" || keys[25] != "z" {
		t.Errorf("unexpected bounds %q..%q", keys[0], keys[25])
	}
}

func TestParsePartitionKeys(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "abcdefghijklmnopqrstuvwxyz", false},
		{"cab", "abc", false},
		{"Z,a, a", "az", false},
		{"a1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			keys, err := ParsePartitionKeys(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !IsCode(err, ErrCodeInvalidInput) {
					t.Errorf("expected %s, got %v", ErrCodeInvalidInput, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := ""
			for _, k := range keys {
				got += k.String()
			}
			if got != tt.want {
				t.Errorf("ParsePartitionKeys(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	base := NewCrawlError(ErrCodeTransport, "fetch failed", errors.New("connection reset"))
	wrapped := fmt.Errorf("engine: %w", base)

	if got := CodeOf(wrapped); got != ErrCodeTransport {
		t.Errorf("CodeOf = %s, want %s", got, ErrCodeTransport)
	}
	if got := CodeOf(errors.New("plain")); got != ErrCodeInternal {
		t.Errorf("CodeOf(plain) = %s, want %s", got, ErrCodeInternal)
	}
	if !errors.Is(wrapped, base.Err) {
		t.Error("expected wrapped cause to be reachable")
	}
}
