// validation/email.go
package validation

import (
	"sort"

	"github.com/go-playground/validator/v10"
)

// DomainSet is an immutable set of allowed email domains. Membership is an
// exact, case-sensitive match.
type DomainSet struct {
	m map[string]struct{}
}

// NewDomainSet builds a DomainSet from the given domains.
func NewDomainSet(domains ...string) DomainSet {
	m := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		m[d] = struct{}{}
	}
	return DomainSet{m: m}
}

// Contains reports whether domain is allowed.
func (d DomainSet) Contains(domain string) bool {
	_, ok := d.m[domain]
	return ok
}

// List returns the allowed domains in sorted order.
func (d DomainSet) List() []string {
	out := make([]string, 0, len(d.m))
	for k := range d.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AllowedEmailDomains are the domains an email address may belong to.
var AllowedEmailDomains = NewDomainSet(
	"gmail.com",
	"yahoo.com",
	"outlook.com",
	"mail.com",
	"innoraft.com",
)

// EmailRule checks RFC syntax with go-playground/validator and then the
// domain allow-list. A *validator.Validate is safe for concurrent use, so
// one EmailRule can be shared by every request.
type EmailRule struct {
	v       *validator.Validate
	domains DomainSet
}

// NewEmailRule returns an EmailRule restricted to the given domains.
func NewEmailRule(domains DomainSet) *EmailRule {
	return &EmailRule{
		v:       validator.New(),
		domains: domains,
	}
}

// SyntaxValid reports whether s is a syntactically valid address.
func (e *EmailRule) SyntaxValid(s string) bool {
	return e.v.Var(s, "required,email") == nil
}

func (e *EmailRule) check(email string, msg Messages) Result {
	email = normalize(email)
	if email == "" {
		return fail(FieldEmail, KindEmptyField, msg.EmptyFields)
	}
	if !e.SyntaxValid(email) {
		return fail(FieldEmail, KindFormat, msg.EmailInvalid)
	}
	if !e.domains.Contains(emailDomain(email)) {
		return fail(FieldEmail, KindDomainNotAllowed, msg.DomainNotAllowed)
	}
	return pass(FieldEmail)
}
