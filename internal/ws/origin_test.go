package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list admits all", nil, "http://evil.test", true},
		{"wildcard", []string{"*"}, "http://evil.test", true},
		{"listed origin", []string{"http://chat.test"}, "http://chat.test", true},
		{"case and whitespace", []string{" HTTP://Chat.Test "}, "http://chat.test", true},
		{"unlisted origin", []string{"http://chat.test"}, "http://evil.test", false},
		{"port matters", []string{"http://chat.test"}, "http://chat.test:8080", false},
		{"no origin header", []string{"http://chat.test"}, "", true},
		{"garbage origin", []string{"http://chat.test"}, "::nope", false},
		{"only invalid entries admit none", []string{"not-an-origin"}, "http://evil.test", false},
		{"blank entries admit all", []string{" ", ""}, "http://evil.test", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws/direct", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, newOriginPolicy(tt.allowed).check(r))
		})
	}
}
