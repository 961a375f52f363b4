package instagram

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

// reserved first path segments that never name a profile
var reservedSegments = map[string]bool{
	"accounts": true,
	"explore":  true,
	"direct":   true,
	"p":        true,
	"reel":     true,
	"reels":    true,
	"stories":  true,
	"tv":       true,
}

// IdentifierFromHref extracts the username a profile link points at.
// Links into a following list, non-profile pages and foreign hosts yield
// ok=false.
func IdentifierFromHref(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != "" && !isInstagramHost(u.Hostname()) {
		return "", false
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	for _, s := range segments {
		if s == FollowingPath {
			return "", false
		}
	}
	if len(segments) != 1 || reservedSegments[strings.ToLower(segments[0])] {
		return "", false
	}

	name, err := url.PathUnescape(segments[0])
	if err != nil || !IsValidUsername(name) {
		return "", false
	}
	return NormalizeIdentifier(name), true
}

func isInstagramHost(host string) bool {
	host = strings.ToLower(host)
	return host == Domain || strings.HasSuffix(host, "."+Domain)
}

// ParseCount reads the count out of a counter label such as
// "1,234 following", "12.5K following" or "2M". Abbreviated values are
// approximate.
func ParseCount(text string) (int, bool) {
	text = strings.TrimSpace(text)

	start := strings.IndexFunc(text, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(text) && (unicode.IsDigit(rune(text[end])) || text[end] == ',' || text[end] == '.') {
		end++
	}
	number := text[start:end]

	multiplier := 0.0
	if end < len(text) {
		switch unicode.ToLower(rune(text[end])) {
		case 'k':
			multiplier = 1e3
		case 'm':
			multiplier = 1e6
		}
		// a suffix must not be the start of a word such as "members"
		if multiplier > 0 && end+1 < len(text) && unicode.IsLetter(rune(text[end+1])) {
			multiplier = 0
		}
	}

	if multiplier > 0 {
		f, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return int(f * multiplier), true
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
