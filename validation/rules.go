// validation/rules.go
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NameRule selects how full names are checked. The two rules are
// deliberately kept apart: the standard form and the live form accept
// different sets of names.
type NameRule int

const (
	// NameRuleLenient accepts letters, spaces, hyphens and apostrophes,
	// up to 30 characters.
	NameRuleLenient NameRule = iota

	// NameRuleStrict accepts 5 to 30 letters and spaces only.
	NameRuleStrict
)

// String returns the rule name used in logs and metrics.
func (r NameRule) String() string {
	switch r {
	case NameRuleStrict:
		return "strict"
	case NameRuleLenient:
		return "lenient"
	default:
		return "unknown"
	}
}

const maxNameLength = 30

var (
	lenientNamePattern = regexp.MustCompile(`^[a-zA-Z-' ]*$`)
	strictNamePattern  = regexp.MustCompile(`^[a-zA-Z ]{5,30}$`)
	phonePattern       = regexp.MustCompile(`^[1-9][0-9]{9}$`)
)

// PhoneDisplayPattern is the HTML pattern attribute the live form sends to
// browsers. It is a rendering hint only; PhonePattern is what gets enforced.
const PhoneDisplayPattern = `[7-9]{1}[0-9]{9}`

// PhonePattern is the enforced phone number pattern.
const PhonePattern = `^[1-9][0-9]{9}$`

// Messages holds the user-facing text reported for each failure.
type Messages struct {
	EmptyFields      string
	NameTooLong      string
	NameInvalid      string
	PhoneInvalid     string
	EmailInvalid     string
	DomainNotAllowed string
}

// DefaultMessages returns the messages used by the standard form.
func DefaultMessages() Messages {
	return Messages{
		EmptyFields:      "Empty fields present",
		NameTooLong:      "Maximum 30 characters allowed for name!",
		NameInvalid:      "Invalid user name!",
		PhoneInvalid:     "Invalid mobile number!",
		EmailInvalid:     "Invalid email address!",
		DomainNotAllowed: "Domain name not allowed",
	}
}

// normalize composes the input to NFC and trims the same set of
// characters PHP's trim() removes, so stored values and checks agree on
// what counts as blank.
func normalize(s string) string {
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return strings.Trim(s, " \t\n\r\x00\x0B")
}

// IsBlank reports whether s is empty after trimming.
func IsBlank(s string) bool {
	return normalize(s) == ""
}

func checkFullName(name string, rule NameRule, msg Messages) Result {
	name = normalize(name)
	if name == "" {
		return fail(FieldFullName, KindEmptyField, msg.EmptyFields)
	}

	switch rule {
	case NameRuleStrict:
		if !strictNamePattern.MatchString(name) {
			return fail(FieldFullName, KindFormat, msg.NameInvalid)
		}
	default:
		// Length is reported ahead of the pattern, matching the order the
		// form has always shown them in.
		if utf8.RuneCountInString(name) > maxNameLength {
			return fail(FieldFullName, KindFormat, msg.NameTooLong)
		}
		if !lenientNamePattern.MatchString(name) {
			return fail(FieldFullName, KindFormat, msg.NameInvalid)
		}
	}
	return pass(FieldFullName)
}

func checkPhone(phone string, msg Messages) Result {
	phone = normalize(phone)
	if phone == "" {
		return fail(FieldPhone, KindEmptyField, msg.EmptyFields)
	}
	if !phonePattern.MatchString(phone) {
		return fail(FieldPhone, KindFormat, msg.PhoneInvalid)
	}
	return pass(FieldPhone)
}

// emailDomain returns everything after the last '@'.
func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
