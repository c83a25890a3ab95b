package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// secretPatterns match credential-looking substrings in free-form text,
// covering key=value and key: value forms for common secret field names.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|secret|token|api[_-]?key|auth)[=:\s]+["']?([^\s"'&]+)["']?`),
}

// sensitiveQueryParams are webhook URL query parameters whose values are
// masked before display.
var sensitiveQueryParams = map[string]bool{
	"token":   true,
	"key":     true,
	"secret":  true,
	"auth":    true,
	"api_key": true,
}

// MaskCredential masks a credential value, keeping just enough of the edges
// to recognize which credential it is.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSecrets masks credential-looking substrings in free-form text so error
// messages and config dumps can be shown without leaking secrets.
func MaskSecrets(input string) string {
	result := input
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			for _, sep := range []string{"=", ":"} {
				if parts := strings.SplitN(match, sep, 2); len(parts) == 2 {
					return parts[0] + sep + MaskCredential(strings.Trim(parts[1], "\"' "))
				}
			}
			return MaskCredential(match)
		})
	}
	return result
}

// MaskURL masks the userinfo and sensitive query parameters of a URL.
// Invalid URLs are masked wholesale rather than returned as-is.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return MaskCredential(raw)
	}
	if u.User != nil {
		username := u.User.Username()
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(username, "****")
		}
	}
	q := u.Query()
	changed := false
	for param := range q {
		if sensitiveQueryParams[strings.ToLower(param)] {
			q.Set(param, MaskCredential(q.Get(param)))
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
