package instagram

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUserProfileURL(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected string
	}{
		{
			name:     "valid username",
			username: "testuser",
			expected: fmt.Sprintf("%s/testuser/", BaseURL),
		},
		{
			name:     "username with dots",
			username: "test.user",
			expected: fmt.Sprintf("%s/test.user/", BaseURL),
		},
		{
			name:     "empty username",
			username: "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetUserProfileURL(tt.username)
			assert.Equal(t, tt.expected, result)
			if result != "" {
				_, err := url.Parse(result)
				assert.NoError(t, err)
			}
		})
	}
}

func TestHomeURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/", HomeURL())
}
