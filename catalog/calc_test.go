package catalog

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 4", 2},
		{"-3 + 5", 2},
		{"--3", 3},
		{"2 ** 3 ** 2", 512},
		{"-2 ** 2", -4},
		{"1.5e3 + .5", 1500.5},
		{"  7  ", 7},
		{"0.1 + 0.2", 0.30000000000000004},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	v, err := Evaluate("1 / 0")
	if err != nil || !math.IsInf(v, 1) {
		t.Fatalf("1/0 = %v, %v", v, err)
	}
	v, err = Evaluate("0 / 0")
	if err != nil || !math.IsNaN(v) {
		t.Fatalf("0/0 = %v, %v", v, err)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	for _, expr := range []string{"", "2 +", "(1 + 2", "1 + 2)", "2 $ 3", "abc", "1..2", "3 4"} {
		t.Run(expr, func(t *testing.T) {
			if _, err := Evaluate(expr); !errors.Is(err, ErrSyntax) {
				t.Fatalf("Evaluate(%q) err = %v, want ErrSyntax", expr, err)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{14, "14"},
		{2.5, "2.5"},
		{-0.0, "0"},
		{0.30000000000000004, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{123456789012, "123456789012"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
