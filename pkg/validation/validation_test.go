package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Mode  string  `validate:"required,oneof=fast slow"`
	Ratio float64 `validate:"gt=0,lte=1"`
	Count int     `validate:"gte=1"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{Mode: "fast", Ratio: 0.5, Count: 1}, ""},
		{"missing mode", sample{Ratio: 0.5, Count: 1}, "sample.Mode: field is required"},
		{"bad mode", sample{Mode: "medium", Ratio: 0.5, Count: 1}, "must be one of [fast slow]"},
		{"ratio zero", sample{Mode: "slow", Ratio: 0, Count: 1}, "must be greater than 0"},
		{"ratio high", sample{Mode: "slow", Ratio: 2, Count: 1}, "must not exceed 1"},
		{"count", sample{Mode: "slow", Ratio: 1, Count: 0}, "must be at least 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Struct() = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if err := Struct(nil); err == nil {
		t.Error("expected error for nil")
	}
}

func TestConfigValidator_CollectsAll(t *testing.T) {
	cv := NewConfigValidator("Profile").
		Required("Name", "").
		PositiveFloat("RTTMs", 0).
		NonNegativeFloat("Throughput", -1).
		RangeFloat("Layout", 2, 0, 1).
		RangeInt("Connections", 0, 1, 6).
		OneOf("Method", "fast", []string{"simulate", "provided"})

	if len(cv.Errors()) != 6 {
		t.Fatalf("expected 6 errors, got %d: %v", len(cv.Errors()), cv.Errors())
	}
	err := cv.Validate()
	if err == nil || !strings.Contains(err.Error(), "Profile.RTTMs") || !strings.Contains(err.Error(), "Profile.Method") {
		t.Errorf("joined error missing fields: %v", err)
	}
}

func TestConfigValidator_WhenAndCustom(t *testing.T) {
	sentinel := errors.New("boom")
	cv := NewConfigValidator("Settings").
		When(false, func(cv *ConfigValidator) { cv.Required("Skipped", "") }).
		When(true, func(cv *ConfigValidator) { cv.PositiveFloat("Kept", 1) }).
		Custom("Hook", func() error { return sentinel })

	if len(cv.Errors()) != 1 {
		t.Fatalf("expected 1 error, got %v", cv.Errors())
	}
	if !errors.Is(cv.Validate(), sentinel) {
		t.Error("custom error should be wrapped")
	}

	if NewConfigValidator("Empty").Validate() != nil {
		t.Error("no errors should validate to nil")
	}
	if NewConfigValidator("S").Struct(sample{Mode: "fast", Ratio: 1, Count: 2}).HasErrors() {
		t.Error("valid struct should pass")
	}
}

func TestDefaultOr(t *testing.T) {
	if DefaultOr(0, 6) != 6 || DefaultOr(3, 6) != 3 {
		t.Error("DefaultOr int")
	}
	if DefaultOr("", "simulate") != "simulate" {
		t.Error("DefaultOr string")
	}
}
