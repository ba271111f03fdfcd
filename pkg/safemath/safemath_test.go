package safemath

import (
	"errors"
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 5, 7, 12, nil},
		{"zero", 0, 0, 0, nil},
		{"max plus zero", math.MaxUint64, 0, math.MaxUint64, nil},
		{"overflow by one", math.MaxUint64, 1, 0, ErrOverflow},
		{"overflow near max", math.MaxUint64 - 50, 200, 0, ErrOverflow},
	}

	for _, tt := range tests {
		got, err := Add(tt.a, tt.b)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Add(%d, %d) error = %v, want %v", tt.name, tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: Add(%d, %d) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSub(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 200, 100, 100, nil},
		{"to zero", 100, 100, 0, nil},
		{"underflow", 100, 200, 0, ErrUnderflow},
		{"underflow from zero", 0, 1, 0, ErrUnderflow},
	}

	for _, tt := range tests {
		got, err := Sub(tt.a, tt.b)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Sub(%d, %d) error = %v, want %v", tt.name, tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: Sub(%d, %d) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMul(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 6, 7, 42, nil},
		{"by zero", math.MaxUint64, 0, 0, nil},
		{"by one", math.MaxUint64, 1, math.MaxUint64, nil},
		{"overflow", math.MaxUint64, 2, 0, ErrOverflow},
		{"large overflow", 1 << 32, 1 << 32, 0, ErrOverflow},
	}

	for _, tt := range tests {
		got, err := Mul(tt.a, tt.b)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: Mul(%d, %d) error = %v, want %v", tt.name, tt.a, tt.b, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: Mul(%d, %d) = %d, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSaturating(t *testing.T) {
	if got := SaturatingAdd(math.MaxUint64-50, 200); got != math.MaxUint64 {
		t.Errorf("SaturatingAdd clamp = %d, want MaxUint64", got)
	}
	if got := SaturatingAdd(5, 7); got != 12 {
		t.Errorf("SaturatingAdd(5, 7) = %d, want 12", got)
	}
	if got := SaturatingSub(100, 200); got != 0 {
		t.Errorf("SaturatingSub clamp = %d, want 0", got)
	}
	if got := SaturatingSub(200, 100); got != 100 {
		t.Errorf("SaturatingSub(200, 100) = %d, want 100", got)
	}
	if got := SaturatingMul(math.MaxUint64, 2); got != math.MaxUint64 {
		t.Errorf("SaturatingMul clamp = %d, want MaxUint64", got)
	}
	if got := SaturatingMul(6, 7); got != 42 {
		t.Errorf("SaturatingMul(6, 7) = %d, want 42", got)
	}
}
