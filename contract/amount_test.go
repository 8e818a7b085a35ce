package contract

import (
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	tests := []struct {
		name    string
		input   string
		want    *big.Int
		wantErr bool
	}{
		{"whole token", "1", oneToken, false},
		{"fractional", "0.5", new(big.Int).Div(oneToken, big.NewInt(2)), false},
		{"large", "1000000", new(big.Int).Mul(oneToken, big.NewInt(1000000)), false},
		{"eighteen decimals", "0.000000000000000001", big.NewInt(1), false},
		{"zero", "0", big.NewInt(0), false},
		{"whitespace trimmed", "  2  ", new(big.Int).Mul(oneToken, big.NewInt(2)), false},
		{"too many decimals", "0.0000000000000000001", nil, true},
		{"negative", "-1", nil, true},
		{"empty", "", nil, true},
		{"garbage", "abc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.input, err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	oneToken := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	tests := []struct {
		name  string
		input *big.Int
		want  string
	}{
		{"whole token", oneToken, "1"},
		{"half token", new(big.Int).Div(oneToken, big.NewInt(2)), "0.5"},
		{"smallest unit", big.NewInt(1), "0.000000000000000001"},
		{"zero", big.NewInt(0), "0"},
		{"nil", nil, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.input); got != tt.want {
				t.Errorf("FormatAmount = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"1", "0.25", "123456.789", "0.000000000000000001"} {
		v, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		if got := FormatAmount(v); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestMulBy(t *testing.T) {
	bet := big.NewInt(3)
	got := MulBy(bet, 10)
	if got.Int64() != 30 {
		t.Errorf("MulBy = %s, want 30", got)
	}
	if bet.Int64() != 3 {
		t.Error("MulBy must not mutate its input")
	}
}
