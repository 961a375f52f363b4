package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifiersFromHrefs(t *testing.T) {
	// each row renders an avatar link and a name link to the same profile
	hrefs := []string{
		"https://www.instagram.com/alice/",
		"https://www.instagram.com/alice/",
		"https://www.instagram.com/me/following/",
		"https://www.instagram.com/Bob/",
		"https://www.instagram.com/explore/",
		"https://www.instagram.com/carol/",
		"https://example.com/dave/",
		"https://www.instagram.com/erin/",
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"alice", "bob", "carol", "erin"}},
		{"prefix", 2, []string{"alice", "bob"}},
		{"limit beyond list", 10, []string{"alice", "bob", "carol", "erin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identifiersFromHrefs(hrefs, tt.limit))
		})
	}
}

func TestIdentifiersFromHrefsEmpty(t *testing.T) {
	assert.Empty(t, identifiersFromHrefs(nil, 5))
}
