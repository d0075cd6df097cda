package booking

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9][0-9]{7,14}$`)
)

const (
	minServiceMinutes = 15
	maxServiceMinutes = 12 * 60
	maxNameLength     = 120
	maxNoteLength     = 1000
)

func validSlug(s string) bool {
	return len(s) <= 64 && slugPattern.MatchString(s)
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

func validPhone(s string) bool {
	return phonePattern.MatchString(s)
}

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 2 && n <= maxNameLength
}
