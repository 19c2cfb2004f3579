package components

import (
	"strings"
	"testing"
)

func TestProgressBarFilled(t *testing.T) {
	tests := []struct {
		percent float64
		want    int
	}{
		{0, 0},
		{0.5, 10},
		{1, 20},
		{1.7, 20},
		{-0.3, 0},
	}
	for _, tt := range tests {
		p := NewProgressBar("", tt.percent, false, 20)
		if got := p.Filled(20); got != tt.want {
			t.Errorf("Filled(20) at %.1f = %d, want %d", tt.percent, got, tt.want)
		}
	}
}

func TestProgressBarViewShowsPercent(t *testing.T) {
	view := NewProgressBar("success", 0.75, true, 40).View()
	if !strings.Contains(view, "75%") {
		t.Errorf("view %q does not contain percentage", view)
	}
	if !strings.Contains(view, "success") {
		t.Errorf("view %q does not contain label", view)
	}
}
