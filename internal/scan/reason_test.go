package scan

import (
	"testing"
	"time"
)

func TestIsAppleDouble(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"._code.py", true},
		{"._", true},
		{"._.Trashes", true},
		{"code.py", false},
		{".DS_Store", false},
		{"_._x", false},
		{"x._y", false},
		{"", false},
		{".", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAppleDouble(tt.name); got != tt.expected {
				t.Errorf("IsAppleDouble(%q) = %v, expected %v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r := Evaluate("/Volumes/CIRCUITPY", "._boot_out.txt", now)
	if !r.HasReason() {
		t.Fatal("expected ._boot_out.txt to be a candidate")
	}
	if r.Root != "/Volumes/CIRCUITPY" || !r.EvaluatedAt.Equal(now) {
		t.Errorf("unexpected metadata: %+v", r)
	}
	if got, want := r.ToLogString(), `name_prefix: "._boot_out.txt" starts with "._"`; got != want {
		t.Errorf("ToLogString() = %s, expected %s", got, want)
	}
	if got := r.GetPrimaryReason(); got != "appledouble" {
		t.Errorf("GetPrimaryReason() = %s, expected appledouble", got)
	}
}

func TestEvaluateNoMatch(t *testing.T) {
	r := Evaluate("/v", "boot_out.txt", time.Now())
	if r.HasReason() {
		t.Fatal("boot_out.txt should not be a candidate")
	}
	if r.ToLogString() != "unknown" || r.GetPrimaryReason() != "unknown" {
		t.Errorf("unexpected formatting for non-candidate: %+v", r)
	}
}
