package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_Roundtrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("wrong password accepted")
	}
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	h1, err := HashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashPassword("same password")
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=65536,t=1,p=4$badsalt",
		"$bcrypt$whatever",
	}
	for _, hash := range tests {
		if VerifyPassword("anything", hash) {
			t.Errorf("malformed hash %q accepted", hash)
		}
	}
}
