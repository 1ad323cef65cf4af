package capture

import (
	"net/url"
	"strings"
)

// UnknownDomain is returned when a URL has no parseable host
const UnknownDomain = "unknown"

// ExtractDomain returns the lower-cased hostname of rawURL, or UnknownDomain
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return UnknownDomain
	}
	host := strings.TrimRight(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return UnknownDomain
	}
	return host
}

// GetBaseDomain reduces a hostname to its registrable root: the last two labels,
// or the last three when the second-to-last label has at most three characters
// (co.uk, com.au). The heuristic misclassifies short second-level names such as
// bbc.com; it does not consult the public suffix list.
func GetBaseDomain(domain string) string {
	domain = strings.TrimRight(domain, ".")
	labels := strings.Split(domain, ".")
	n := len(labels)
	if n <= 2 {
		return domain
	}
	if len(labels[n-2]) <= 3 {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// IsThirdParty reports whether requestURL belongs to a different base domain than pageURL.
// An undetermined origin on either side counts as third-party.
func IsThirdParty(requestURL, pageURL string) bool {
	requestDomain := ExtractDomain(requestURL)
	pageDomain := ExtractDomain(pageURL)
	if requestDomain == UnknownDomain || pageDomain == UnknownDomain {
		return true
	}
	return GetBaseDomain(requestDomain) != GetBaseDomain(pageDomain)
}
