// Package validation gates every URL entering the system and every short
// code token used on the resolution path. All checks are pure: no I/O, no
// shared mutable state.
package validation

import (
	"fmt"
	"html"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// RejectionError reports why an input was refused. The reason is safe to
// surface to the caller; rejected inputs are never retried automatically.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func reject(reason string) error {
	return &RejectionError{Reason: reason}
}

// dangerousPatterns are command-injection signatures a URL must not carry.
// A shortened URL ends up in terminals, chat clients and logs, so pipe-to-shell
// and command-substitution payloads are refused outright.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\|\s*sh\b`),
	regexp.MustCompile(`(?i)\|\s*bash\b`),
	regexp.MustCompile(`(?i)\b(wget|curl)\b`),
	regexp.MustCompile(`(?i)\bexec\b`),
	regexp.MustCompile(`[;&\n]`),
	regexp.MustCompile(`(?i)\bcron\b`),
	regexp.MustCompile(`(?i)\b(rm|mv|cp)\b`),
	regexp.MustCompile(`/etc/`),
	regexp.MustCompile(`(?i)\beval\b`),
	regexp.MustCompile("`[^`]*`"),
	regexp.MustCompile(`\$\(`),
}

var scriptExtensions = []string{".sh", ".bash", ".zsh", ".fish"}

var privateRanges = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{"10.0.0.0/8", "192.168.0.0/16", "127.0.0.0/8"} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// sanitizer strips HTML and script content before anything is stored or
// logged. StrictPolicy entity-escapes the survivors, so the output is
// unescaped again to keep query strings intact.
var sanitizer = bluemonday.StrictPolicy()

// ValidateURL vets a target URL before it is allowed into the system.
// It returns the sanitized URL to store, or a *RejectionError explaining
// the first check that failed.
func ValidateURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", reject("URL cannot be empty")
	}

	clean := html.UnescapeString(sanitizer.Sanitize(strings.TrimSpace(raw)))
	if clean == "" {
		return "", reject("URL contains only markup")
	}

	u, err := url.Parse(clean)
	if err != nil || u.Host == "" {
		return "", reject("invalid URL format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", reject("URL scheme must be http or https")
	}

	if err := checkHost(u.Hostname()); err != nil {
		return "", err
	}

	for _, ext := range scriptExtensions {
		if strings.HasSuffix(u.Path, ext) {
			return "", reject("shell script URLs are not allowed")
		}
	}

	if err := checkDangerous(clean); err != nil {
		return "", err
	}

	return clean, nil
}

// ValidateShortCode vets a short code token used on the resolution path.
// The token itself is attacker-controlled input and gets the same
// dangerous-pattern and localhost checks as a full URL, so a crafted
// "short URL" can never be replayed as an injection or SSRF vector.
func ValidateShortCode(code string, maxLength int) error {
	if code == "" {
		return reject("short code cannot be empty")
	}
	if len(code) > maxLength {
		return reject(fmt.Sprintf("short code must be at most %d characters long", maxLength))
	}
	if !shortCodePattern.MatchString(code) {
		return reject("short code contains invalid characters")
	}
	if err := checkHost(code); err != nil {
		return err
	}
	return checkDangerous(code)
}

func checkHost(hostname string) error {
	host := strings.ToLower(hostname)
	if host == "localhost" {
		return reject("internal/localhost URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, r := range privateRanges {
			if r.Contains(ip) {
				return reject("internal/localhost URLs are not allowed")
			}
		}
	}
	return nil
}

func checkDangerous(s string) error {
	for _, p := range dangerousPatterns {
		if p.MatchString(s) {
			return reject("URL contains potentially dangerous patterns")
		}
	}
	return nil
}
