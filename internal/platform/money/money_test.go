package money

import (
	"encoding/json"
	"testing"
)

func TestAmount_UnmarshalNumberAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`50`, "50"},
		{`"50"`, "50"},
		{`"1200.00"`, "1200"},
		{`49.999`, "50"},
		{`" 75.5 "`, "75.5"},
	}
	for _, tt := range tests {
		var a Amount
		if err := json.Unmarshal([]byte(tt.in), &a); err != nil {
			t.Errorf("unmarshal %s: %v", tt.in, err)
			continue
		}
		if got := a.String(); got != tt.want {
			t.Errorf("unmarshal %s: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestAmount_UnmarshalRejectsGarbage(t *testing.T) {
	for _, in := range []string{`"fifty"`, `""`, `true`} {
		var a Amount
		if err := json.Unmarshal([]byte(in), &a); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestAmount_NullLeavesValue(t *testing.T) {
	body := struct {
		Fees Amount `json:"fees"`
	}{Fees: MustParse("40")}
	if err := json.Unmarshal([]byte(`{"fees": null}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Fees.String() != "40" {
		t.Errorf("expected 40 kept, got %s", body.Fees)
	}
}

func TestAmount_Storable(t *testing.T) {
	if !MustParse("9999999999.99").Storable() {
		t.Error("expected 9999999999.99 to fit")
	}
	for _, in := range []string{"10000000000", "9999999999.995"} {
		if MustParse(in).Storable() {
			t.Errorf("expected %s to exceed the limit", in)
		}
	}
}

func TestAmount_PointerFieldOmitted(t *testing.T) {
	var body struct {
		Fee *Amount `json:"fee"`
	}
	if err := json.Unmarshal([]byte(`{}`), &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Fee != nil {
		t.Error("expected nil fee when absent")
	}
}

func TestAmount_Marshal(t *testing.T) {
	b, err := json.Marshal(MustParse("50.50"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"50.5"` {
		t.Errorf("expected \"50.5\", got %s", b)
	}
}

func TestAmount_MinorUnitsAndSum(t *testing.T) {
	if got := MustParse("50.25").MinorUnits(); got != 5025 {
		t.Errorf("expected 5025, got %d", got)
	}
	sum := MustParse("10.10").Add(MustParse("0.20"))
	if sum.String() != "10.3" {
		t.Errorf("expected 10.3, got %s", sum)
	}
	if MustParse("0").IsPositive() || !MustParse("0.01").IsPositive() {
		t.Error("unexpected IsPositive result")
	}
}
