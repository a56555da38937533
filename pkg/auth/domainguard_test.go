package auth

import "testing"

func TestHasBlockedDomain(t *testing.T) {
	blocklist := []string{"blocked.com", "blocked.co.uk"}

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"exact match", "user@blocked.com", true},
		{"subdomain match", "user@mail.blocked.com", true},
		{"multi-label public suffix", "user@sub.blocked.co.uk", true},
		{"not blocked", "user@allowed.com", false},
		{"suffix lookalike", "user@notblocked.com", false},
		{"case insensitive", "user@BLOCKED.COM", true},
		{"no at sign", "blocked.com", false},
		{"empty address", "", false},
		{"trailing at", "user@", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasBlockedDomain(tt.address, blocklist); got != tt.want {
				t.Errorf("HasBlockedDomain(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestHasBlockedDomain_EmptyBlocklist(t *testing.T) {
	if HasBlockedDomain("user@anything.com", nil) {
		t.Error("empty blocklist should block nothing")
	}
	if HasBlockedDomain("user@anything.com", []string{"", "  "}) {
		t.Error("blank blocklist entries should block nothing")
	}
}
