package crypto

import (
	"strings"
	"testing"
)

func TestNanoIDGenerator_New(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantErr      error
		wantAlphabet string
	}{
		{name: "empty args use default", args: nil, wantAlphabet: defaultAlphabet},
		{name: "custom alphabet", args: []string{"ABCDEFGH"}, wantAlphabet: "ABCDEFGH"},
		{name: "too many args", args: []string{"a", "b"}, wantErr: ErrTooManyInputAlphabet},
		{name: "alphabet too long", args: []string{strings.Repeat("a", 256)}, wantErr: ErrAlphabetTooLong},
		{name: "alphabet too short", args: []string{"abc"}, wantErr: ErrAlphabetTooShort},
		{name: "non ascii", args: []string{"abcdefgé"}, wantErr: ErrAlphabetNotASCII},
		{name: "invalid utf8", args: []string{"abcdefg\xff"}, wantErr: ErrAlphabetInvalidUTF8},
		{name: "empty string uses default", args: []string{""}, wantAlphabet: defaultAlphabet},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Act
			nanoid, err := NewNanoID(test.args...)

			// Assert
			if err != test.wantErr {
				t.Fatalf("NewNanoID() error = %v, want %v", err, test.wantErr)
			}
			if test.wantErr == nil && nanoid.alphabet != test.wantAlphabet {
				t.Errorf("NewNanoID() alphabet = %q, want %q", nanoid.alphabet, test.wantAlphabet)
			}
		})
	}
}

func TestNanoIDGenerator_GetMask(t *testing.T) {
	tests := []struct {
		alphabetLen int
		wantMask    int
	}{
		{alphabetLen: 8, wantMask: 15},
		{alphabetLen: 16, wantMask: 31},
		{alphabetLen: 64, wantMask: 127},
		{alphabetLen: 255, wantMask: 255},
	}

	for _, test := range tests {
		if got := getMask(test.alphabetLen); got != test.wantMask {
			t.Errorf("getMask(%d) = %d, want %d", test.alphabetLen, got, test.wantMask)
		}
	}
}

func TestNanoIDGenerator_Generate(t *testing.T) {
	gen, _ := NewNanoID("abcdefgh")

	id, err := gen.Generate(40)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(id) != 40 {
		t.Errorf("Generate() length = %d, want 40", len(id))
	}
	for _, c := range id {
		if !strings.ContainsRune("abcdefgh", c) {
			t.Fatalf("Generate() produced %q outside alphabet", c)
		}
	}
}

func TestNanoIDGenerator_WithPrefix(t *testing.T) {
	base, _ := NewNanoID()
	prefixed := base.WithPrefix("x_")

	id, _ := prefixed.Generate()
	plain, _ := base.Generate()

	if !strings.HasPrefix(id, "x_") || len(id) != defaultSize+2 {
		t.Errorf("Generate() = %q, want x_ prefix and %d chars", id, defaultSize+2)
	}
	if strings.HasPrefix(plain, "x_") {
		t.Error("WithPrefix() must not modify the original generator")
	}
}

func TestRecordIDs_AreUniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		acc, err := NewAccountID()
		if err != nil {
			t.Fatalf("NewAccountID() error = %v", err)
		}
		lid, _ := NewIdentityID()
		if !strings.HasPrefix(acc, PrefixAccount) || !strings.HasPrefix(lid, PrefixIdentity) {
			t.Fatalf("unexpected prefixes: %q %q", acc, lid)
		}
		if seen[acc] || seen[lid] {
			t.Fatalf("duplicate id after %d iterations", i)
		}
		seen[acc], seen[lid] = true, true
	}
}
