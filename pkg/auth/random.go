package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/haqqman/gatekeeper/pkg/domain"
)

// Charset selects the working alphabet for RandomChars. Any value other than
// the presets is treated as a caller-supplied alphabet.
type Charset string

const (
	CharsetNumeric      Charset = "numeric"
	CharsetAlphabetic   Charset = "alphabetic"
	CharsetAlphanumeric Charset = "alphanumeric"
	CharsetHex          Charset = "hex"
)

const (
	digits     = "0123456789"
	lowercase  = "abcdefghijklmnopqrstuvwxyz"
	uppercase  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hexLetters = "abcdef"

	// Glyphs that humans mistranscribe when copying a code from an email.
	ambiguousGlyphs = "0OIl"
)

// RandomChars returns a string of length n sampled uniformly from the given
// charset using a cryptographically secure source. Ambiguous glyphs (0, O, I,
// l) are stripped from the working alphabet regardless of preset. Sampling
// uses rejection over raw bytes: any byte >= 256 - (256 mod len(alphabet)) is
// discarded, which removes modulo bias at the cost of discarding some random
// bytes. A failing random source surfaces domain.ErrRandomSourceUnavailable;
// there is no fallback to a weaker source.
func RandomChars(n int, charset Charset) (string, error) {
	if n < 1 {
		return "", errors.New("length must be at least 1")
	}

	alphabet := stripAmbiguous(alphabetFor(charset))
	if len(alphabet) == 0 {
		return "", errors.New("charset has no usable characters")
	}

	maxByte := 256 - (256 % len(alphabet))
	var out strings.Builder
	out.Grow(n)

	for out.Len() < n {
		remaining := n - out.Len()
		buf := make([]byte, remaining*256/maxByte+1)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrRandomSourceUnavailable, err)
		}
		for _, b := range buf {
			if out.Len() == n {
				break
			}
			if int(b) < maxByte {
				out.WriteByte(alphabet[int(b)%len(alphabet)])
			}
		}
	}

	return out.String(), nil
}

func alphabetFor(charset Charset) string {
	switch charset {
	case CharsetNumeric:
		return digits
	case CharsetAlphabetic:
		return lowercase + uppercase
	case CharsetAlphanumeric:
		return digits + lowercase + uppercase
	case CharsetHex:
		return digits + hexLetters
	default:
		return string(charset)
	}
}

func stripAmbiguous(alphabet string) string {
	var out strings.Builder
	for i := 0; i < len(alphabet); i++ {
		if !strings.ContainsRune(ambiguousGlyphs, rune(alphabet[i])) {
			out.WriteByte(alphabet[i])
		}
	}
	return out.String()
}

// maxAllocateAttempts bounds the collision-retry loop in AllocateUniqueCode.
const maxAllocateAttempts = 50

// LiveCheck reports whether a candidate code is currently live and therefore
// unavailable.
type LiveCheck func(ctx context.Context, code string) (bool, error)

// AllocateUniqueCode mints a code that is not currently live. Candidates are
// drawn from RandomChars and checked against the live set; on collision a new
// candidate is drawn, up to maxAllocateAttempts, after which allocation fails
// with domain.ErrAllocationExhausted. For small alphabets the live-set size
// governs how quickly the space saturates; callers needing high-volume codes
// must use a longer length.
func AllocateUniqueCode(ctx context.Context, length int, charset Charset, live LiveCheck) (string, error) {
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := RandomChars(length, charset)
		if err != nil {
			return "", err
		}
		inUse, err := live(ctx, code)
		if err != nil {
			return "", fmt.Errorf("liveness check: %w", err)
		}
		if !inUse {
			return code, nil
		}
	}
	return "", domain.ErrAllocationExhausted
}
