// Package phone validates and canonicalizes destination phone numbers for
// the messaging channel, which expects bare international digits.
package phone

import (
	"fmt"
	"regexp"
	"strings"

	"payreminder/internal/constants"
)

var (
	nonDialRe = regexp.MustCompile(`[^\d+]`)
	digitsRe  = regexp.MustCompile(`^\d+$`)

	waURLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`wa\.me/(\d+)`),
		regexp.MustCompile(`whatsapp\.com/send\?phone=(\d+)`),
		regexp.MustCompile(`api\.whatsapp\.com/send\?phone=(\d+)`),
	}
)

// Normalize canonicalizes a raw phone string to international digits.
// Local-format numbers (a single leading zero, or exactly nine digits) are
// prefixed with countryCode. On validation failure the best-effort
// normalized value is still returned for diagnostics.
func Normalize(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = constants.DefaultCountryCode
	}

	cleaned := nonDialRe.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", fmt.Errorf("empty phone number")
	}

	var normalized string
	switch {
	case strings.HasPrefix(cleaned, "+"):
		normalized = cleaned[1:]
	case strings.HasPrefix(cleaned, "00"):
		normalized = cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		normalized = countryCode + cleaned[1:]
	case len(cleaned) == constants.LocalNumberDigits:
		normalized = countryCode + cleaned
	default:
		normalized = cleaned
	}

	if len(normalized) < constants.MinPhoneDigits || len(normalized) > constants.MaxPhoneDigits {
		return normalized, fmt.Errorf("invalid length: %d digits", len(normalized))
	}

	if !digitsRe.MatchString(normalized) {
		return normalized, fmt.Errorf("contains non-digit characters")
	}

	return normalized, nil
}

// FormatDisplay renders a normalized number in a readable "+XX XXX XXX XXXX"
// form for queue listings.
func FormatDisplay(phone string) string {
	if phone == "" {
		return ""
	}

	cleaned := nonDialRe.ReplaceAllString(phone, "")
	cleaned = strings.ReplaceAll(cleaned, "+", "")
	if len(cleaned) < constants.MinPhoneDigits {
		return phone
	}

	return fmt.Sprintf("+%s %s %s %s", cleaned[:2], cleaned[2:5], cleaned[5:8], cleaned[8:])
}

// Mask hides the middle of a phone number for log output.
func Mask(phone string) string {
	if len(phone) < constants.PhoneMaskVisiblePrefix+constants.PhoneMaskVisibleSuffix {
		return "***"
	}
	return phone[:constants.PhoneMaskVisiblePrefix] + "****" + phone[len(phone)-constants.PhoneMaskVisibleSuffix:]
}

// FromWhatsAppURL extracts the phone digits from a wa.me or whatsapp.com
// send link, or returns an empty string when the URL carries none.
func FromWhatsAppURL(url string) string {
	for _, re := range waURLPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	return ""
}
