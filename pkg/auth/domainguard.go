package auth

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HasBlockedDomain reports whether the registrable domain of the address host
// appears in the tenant's workmail blocklist. Multi-label public suffixes are
// honored: "user@sub.blocked.co.uk" matches a "blocked.co.uk" entry. The
// check runs before credential verification on console login and its failure
// is surfaced distinctly from bad credentials.
func HasBlockedDomain(address string, blocklist []string) bool {
	host := addressHost(address)
	if host == "" {
		return false
	}
	registrable := registrableDomain(host)
	for _, blocked := range blocklist {
		blocked = strings.ToLower(strings.TrimSpace(blocked))
		if blocked == "" {
			continue
		}
		if registrable == registrableDomain(blocked) {
			return true
		}
	}
	return false
}

func addressHost(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

// registrableDomain returns the eTLD+1 of host. Hosts not covered by the
// public suffix list fall back to themselves so bare blocklist entries still
// compare exactly.
func registrableDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
