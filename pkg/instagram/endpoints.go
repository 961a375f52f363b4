package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// Domain is the registrable domain profile links must belong to
	Domain = "instagram.com"

	// FollowingPath is the path segment of a profile's following list
	FollowingPath = "following"
)

// HomeURL is where the login form lives
func HomeURL() string {
	return BaseURL + "/"
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, url.PathEscape(username))
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// letters, numbers, periods and underscores only
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @, surrounding whitespace and trailing slashes
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}

// NormalizeIdentifier returns the canonical, case-folded form of a username.
// Usernames are case-insensitive on the platform.
func NormalizeIdentifier(username string) string {
	return strings.ToLower(SanitizeUsername(username))
}
