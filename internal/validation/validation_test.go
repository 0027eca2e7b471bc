package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	t.Run("rejects unsafe urls", func(t *testing.T) {
		tests := []struct {
			name string
			url  string
		}{
			{"empty", ""},
			{"whitespace only", "   "},
			{"no scheme", "example.com/path"},
			{"ftp scheme", "ftp://example.com/file"},
			{"localhost", "http://localhost/x"},
			{"loopback ip", "http://127.0.0.1/admin"},
			{"private 10 range", "http://10.1.2.3/internal"},
			{"private 192.168 range", "http://192.168.1.5/"},
			{"shell script", "https://evil.com/run.sh"},
			{"bash script", "https://evil.com/run.bash"},
			{"command separator", "https://evil.com/x;rm -rf /"},
			{"pipe to shell", "https://evil.com/payload|sh"},
			{"curl download", "https://evil.com/curl/something"},
			{"command substitution", "https://evil.com/$(whoami)"},
			{"backtick execution", "https://evil.com/`id`"},
			{"etc reference", "https://evil.com/etc/passwd"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				clean, err := ValidateURL(tt.url)

				assert.Error(t, err)
				assert.Empty(t, clean)

				var rejErr *RejectionError
				assert.ErrorAs(t, err, &rejErr)
				assert.NotEmpty(t, rejErr.Reason)
			})
		}
	})

	t.Run("accepts safe urls", func(t *testing.T) {
		tests := []string{
			"https://example.com/a/b?c=d",
			"https://example.com/path?q=1",
			"http://example.com",
			"https://sub.example.org/deep/path/index.html",
		}

		for _, u := range tests {
			clean, err := ValidateURL(u)

			assert.NoError(t, err)
			assert.Equal(t, u, clean)
		}
	})

	t.Run("strips markup", func(t *testing.T) {
		clean, err := ValidateURL("https://example.com/<script>alert(1)</script>page")

		assert.NoError(t, err)
		assert.NotContains(t, clean, "<script>")
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		clean, err := ValidateURL("  https://example.com/path?q=1  ")

		assert.NoError(t, err)
		assert.Equal(t, "https://example.com/path?q=1", clean)
	})
}

func TestValidateShortCode(t *testing.T) {
	const maxLength = 16

	t.Run("rejects invalid tokens", func(t *testing.T) {
		tests := []struct {
			name string
			code string
		}{
			{"empty", ""},
			{"over max length", "aaaaaaaaaaaaaaaaa"},
			{"path traversal", "../etc"},
			{"url-like", "a/b"},
			{"command separator", "x;rm"},
			{"space", "ab cd"},
			{"localhost literal", "localhost"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := ValidateShortCode(tt.code, maxLength)

				var rejErr *RejectionError
				assert.Error(t, err)
				assert.ErrorAs(t, err, &rejErr)
			})
		}
	})

	t.Run("accepts valid tokens", func(t *testing.T) {
		for _, code := range []string{"abc1234", "AbC-12_x", "0000000", "a"} {
			assert.NoError(t, ValidateShortCode(code, maxLength))
		}
	})
}
