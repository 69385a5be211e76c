package manager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllDomains(t *testing.T) {
	testCases := []struct {
		name     string
		domain   string
		addons   []string
		expected []string
	}{
		{
			name:     "root domain gains www sibling",
			domain:   "example.org",
			expected: []string{"example.org", "www.example.org"},
		},
		{
			name:     "www domain gains bare sibling",
			domain:   "www.example.org",
			expected: []string{"www.example.org", "example.org"},
		},
		{
			name:     "plain subdomain stays alone",
			domain:   "blog.example.org",
			expected: []string{"blog.example.org"},
		},
		{
			name:     "deep www subdomain stays alone",
			domain:   "www.blog.example.org",
			expected: []string{"www.blog.example.org"},
		},
		{
			name:     "addons expand too",
			domain:   "example.org",
			addons:   []string{"example.net"},
			expected: []string{"example.org", "www.example.org", "example.net", "www.example.net"},
		},
		{
			name:     "duplicates collapse",
			domain:   "example.org",
			addons:   []string{"www.example.org", "example.org"},
			expected: []string{"example.org", "www.example.org"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, AllDomains(tc.domain, tc.addons))
		})
	}
}
