package internal

import "regexp"

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b(?:\+?\d{1,3}[\s.-]?)?(?:\(\d{2,4}\)[\s.-]?|\d{2,4}[\s.-]?)?\d{3,4}[\s.-]?\d{3,4}\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// Redaction markers
const (
	RedactedEmail = "[REDACTED:EMAIL]"
	RedactedPhone = "[REDACTED:PHONE]"
	RedactedCard  = "[REDACTED:CARD]"
	RedactedIP    = "[REDACTED:IP]"
)

// Sanitize redacts email addresses, card numbers, IPv4 addresses and phone
// numbers. Digit runs that fail the Luhn check are not treated as cards.
func Sanitize(text string) string {
	text = emailPattern.ReplaceAllLiteralString(text, RedactedEmail)
	text = cardPattern.ReplaceAllStringFunc(text, func(raw string) string {
		if luhnValid(raw) {
			return RedactedCard
		}
		return raw
	})
	text = ipv4Pattern.ReplaceAllLiteralString(text, RedactedIP)
	text = phonePattern.ReplaceAllLiteralString(text, RedactedPhone)
	return text
}

// SanitizeMessages returns a copy of messages with every content sanitized
func SanitizeMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = Message{Role: msg.Role, Content: Sanitize(msg.Content)}
	}
	return out
}

// luhnValid runs the Luhn checksum over the digits of s, requiring 13 to
// 19 of them
func luhnValid(s string) bool {
	digits := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	total := 0
	parity := len(digits) % 2
	for i, d := range digits {
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
	}
	return total%10 == 0
}
