package identity

import (
	"strconv"
	"testing"
)

func TestIsValidNationalID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"ten digits", "9001010001", false},
		{"twelve digits", "150312612310", false},
		{"letters", "1503126123A", false},
		{"empty", "", false},
		{"post 2014 valid checksum", "15031261231", true},
		{"post 2014 wrong checksum", "15031261232", false},
		{"pre 2014 checksum ignored", "85010100007", true},
		{"invalid month", "85130100000", false},
		{"invalid day", "85023000001", false},
		{"leap day 2000", "00022960001", true},
		{"no leap day 2015", "15022960000", false},
		{"nineteenth century", "99123190000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidNationalID(tt.id); got != tt.want {
				t.Errorf("IsValidNationalID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestIsValidNationalID_SyntheticRecent(t *testing.T) {
	base := "2007046512" // 2020-07-04, sequence 6512
	check := CheckDigit(base)
	if check < 0 {
		t.Fatalf("CheckDigit(%q) = %d", base, check)
	}
	id := base + strconv.Itoa(check)
	if !IsValidNationalID(id) {
		t.Fatalf("IsValidNationalID(%q) = false, want true", id)
	}
	flipped := base + strconv.Itoa((check+1)%10)
	if IsValidNationalID(flipped) {
		t.Fatalf("IsValidNationalID(%q) = true after flipping check digit", flipped)
	}
}

func TestCheckDigit(t *testing.T) {
	if got := CheckDigit("1503126123"); got != 1 {
		t.Errorf("CheckDigit = %d, want 1", got)
	}
	if got := CheckDigit("12345"); got != -1 {
		t.Errorf("short input: got %d, want -1", got)
	}
	if got := CheckDigit("12345abcde"); got != -1 {
		t.Errorf("non digits: got %d, want -1", got)
	}
}
