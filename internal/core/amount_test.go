package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"600", 600, false},
		{" 600 ", 600, false},
		{"12 500", 12500, false},
		{"0", 0, false},
		{"", 0, false},
		{"-5", 0, true},
		{"+5", 0, true},
		{"5.5", 0, true},
		{"abc", 0, true},
		{"12e3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNumericInput) {
					t.Fatalf("ParseAmount(%q) err = %v, want ErrInvalidNumericInput", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAllocation(t *testing.T) {
	if v, err := ParseAllocation("100"); err != nil || v != 100 {
		t.Errorf("ParseAllocation(100) = %d, %v", v, err)
	}
	if _, err := ParseAllocation("101"); !errors.Is(err, ErrInvalidNumericInput) {
		t.Errorf("allocation over 100 should fail, got %v", err)
	}
}
