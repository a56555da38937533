package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

func TestRandomChars_Length(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		charset Charset
	}{
		{"numeric 6", 6, CharsetNumeric},
		{"alphabetic 10", 10, CharsetAlphabetic},
		{"alphanumeric 32", 32, CharsetAlphanumeric},
		{"hex 16", 16, CharsetHex},
		{"custom alphabet", 8, Charset("xyz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RandomChars(tt.length, tt.charset)
			if err != nil {
				t.Fatalf("RandomChars: %v", err)
			}
			if len(got) != tt.length {
				t.Errorf("got length %d, want %d", len(got), tt.length)
			}
		})
	}
}

func TestRandomChars_NoAmbiguousGlyphs(t *testing.T) {
	for _, charset := range []Charset{CharsetNumeric, CharsetAlphabetic, CharsetAlphanumeric, CharsetHex} {
		got, err := RandomChars(256, charset)
		if err != nil {
			t.Fatalf("RandomChars(%s): %v", charset, err)
		}
		if strings.ContainsAny(got, "0OIl") {
			t.Errorf("charset %s produced ambiguous glyph in %q", charset, got)
		}
	}
}

func TestRandomChars_CharsetMembership(t *testing.T) {
	got, err := RandomChars(128, CharsetNumeric)
	if err != nil {
		t.Fatalf("RandomChars: %v", err)
	}
	for _, r := range got {
		if r < '1' || r > '9' {
			t.Errorf("numeric charset produced %q", r)
		}
	}
}

func TestRandomChars_InvalidLength(t *testing.T) {
	if _, err := RandomChars(0, CharsetNumeric); err == nil {
		t.Error("expected error for zero length")
	}
	if _, err := RandomChars(-3, CharsetNumeric); err == nil {
		t.Error("expected error for negative length")
	}
}

func TestRandomChars_UnusableCharset(t *testing.T) {
	// Every character is ambiguous, so nothing survives the strip.
	if _, err := RandomChars(4, Charset("0OIl")); err == nil {
		t.Error("expected error for alphabet with no usable characters")
	}
}

func TestAllocateUniqueCode_FirstTry(t *testing.T) {
	code, err := AllocateUniqueCode(context.Background(), 6, CharsetAlphanumeric, func(ctx context.Context, c string) (bool, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("AllocateUniqueCode: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("got length %d, want 6", len(code))
	}
}

func TestAllocateUniqueCode_RetriesOnCollision(t *testing.T) {
	calls := 0
	code, err := AllocateUniqueCode(context.Background(), 6, CharsetAlphanumeric, func(ctx context.Context, c string) (bool, error) {
		calls++
		return calls < 4, nil
	})
	if err != nil {
		t.Fatalf("AllocateUniqueCode: %v", err)
	}
	if code == "" {
		t.Error("expected a code after collisions resolved")
	}
	if calls != 4 {
		t.Errorf("got %d liveness checks, want 4", calls)
	}
}

func TestAllocateUniqueCode_Exhausted(t *testing.T) {
	calls := 0
	_, err := AllocateUniqueCode(context.Background(), 6, CharsetAlphanumeric, func(ctx context.Context, c string) (bool, error) {
		calls++
		return true, nil
	})
	if !errors.Is(err, domain.ErrAllocationExhausted) {
		t.Fatalf("got %v, want ErrAllocationExhausted", err)
	}
	if calls != maxAllocateAttempts {
		t.Errorf("got %d attempts, want %d", calls, maxAllocateAttempts)
	}
}

func TestAllocateUniqueCode_LivenessError(t *testing.T) {
	boom := errors.New("store down")
	_, err := AllocateUniqueCode(context.Background(), 6, CharsetAlphanumeric, func(ctx context.Context, c string) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped store error", err)
	}
}
