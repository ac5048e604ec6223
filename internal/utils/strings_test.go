package utils

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"9876543210", "9876543210"},
		{" +91 98765-43210 ", "9876543210"},
		{"098765 43210", "9876543210"},
		{"919876543210", "9876543210"},
		{"020 2612 3456", "2026123456"},
		{"", ""},
		{"n/a", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSamePhone(t *testing.T) {
	if !SamePhone("+91 9876543210", "9876543210") {
		t.Fatal("expected formatted and bare numbers to match")
	}
	if SamePhone("", "") {
		t.Fatal("blank numbers must never match")
	}
	if SamePhone("9876543210", "9876543211") {
		t.Fatal("different numbers matched")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ops@FitKeeda.in "); got != "ops@fitkeeda.in" {
		t.Fatalf("got %q", got)
	}
}
