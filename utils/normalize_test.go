package utils

import (
	"errors"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  ACME   Ltda ", "acme ltda"},
		{"acme ltda", "acme ltda"},
		{"Fornecedor\tCentral\nSul", "fornecedor central sul"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateCnpj(t *testing.T) {
	valid := []string{
		"11222333000181",
		"11.222.333/0001-81",
		"00.000.000/0001-91",
	}
	for _, s := range valid {
		if err := ValidateCnpj(s); err != nil {
			t.Fatalf("ValidateCnpj(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{
		"",
		"112223330001",      // too short
		"11222333000182",    // wrong second check digit
		"11222333000171",    // wrong first check digit
		"11111111111111",    // 14 identical digits
		"00000000000000",    // all zeros would pass the arithmetic
		"11.222.333/0001-8", // 13 digits
	}
	for _, s := range invalid {
		if err := ValidateCnpj(s); !errors.Is(err, ErrInvalidTaxId) {
			t.Fatalf("ValidateCnpj(%q) = %v, want ErrInvalidTaxId", s, err)
		}
	}
}

func TestCnpjDigits(t *testing.T) {
	if got := CnpjDigits("11.222.333/0001-81"); got != "11222333000181" {
		t.Fatalf("CnpjDigits = %q", got)
	}
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc-1234", "ABC1234"},
		{"ABC1234", "ABC1234"},
		{" abc 1d23 ", "ABC1D23"},
	}
	for _, tt := range tests {
		if got := NormalizePlate(tt.in); got != tt.want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
