// Package validation checks the employee settings fields: full name, phone
// number and email address.
//
// Every check is pure and synchronous. Failures are reported as data
// (Result values with a Kind), never as Go errors:
//
//	v := validation.New(validation.NameRuleLenient)
//	out := v.Submission(validation.Input{
//	    FullName: "Jane Doe",
//	    Phone:    "9876543210",
//	    Email:    "jane@gmail.com",
//	})
//	if !out.Valid {
//	    for _, e := range out.Errors {
//	        fmt.Printf("%s: %s\n", e.Field, e.Message)
//	    }
//	}
package validation

// Gender is the radio choice on the settings forms.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is one of the offered options.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Input is one submission of the settings form.
type Input struct {
	FullName string `json:"fullname"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Gender   Gender `json:"gender"`
}

// Value returns the raw value of field f.
func (in Input) Value(f Field) string {
	switch f {
	case FieldFullName:
		return in.FullName
	case FieldPhone:
		return in.Phone
	case FieldEmail:
		return in.Email
	}
	return ""
}

// Validator runs the field checks with a fixed name rule and message set.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	rule     NameRule
	messages Messages
	email    *EmailRule
}

// Option configures a Validator.
type Option func(*Validator)

// WithMessages replaces the default messages.
func WithMessages(m Messages) Option {
	return func(v *Validator) {
		v.messages = m
	}
}

// WithDomains replaces the allowed email domains.
func WithDomains(d DomainSet) Option {
	return func(v *Validator) {
		v.email = NewEmailRule(d)
	}
}

// New returns a Validator that checks names with rule.
func New(rule NameRule, opts ...Option) *Validator {
	v := &Validator{
		rule:     rule,
		messages: DefaultMessages(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.email == nil {
		v.email = NewEmailRule(AllowedEmailDomains)
	}
	return v
}

// NameRule returns the rule this validator applies to full names.
func (v *Validator) NameRule() NameRule { return v.rule }

// FullName validates a full name.
func (v *Validator) FullName(name string) Result {
	return checkFullName(name, v.rule, v.messages)
}

// Phone validates a 10 digit phone number.
func (v *Validator) Phone(phone string) Result {
	return checkPhone(phone, v.messages)
}

// Email validates an email address and its domain.
func (v *Validator) Email(email string) Result {
	return v.email.check(email, v.messages)
}

// Field validates the value of a single field.
func (v *Validator) Field(f Field, value string) Result {
	switch f {
	case FieldFullName:
		return v.FullName(value)
	case FieldPhone:
		return v.Phone(value)
	default:
		return v.Email(value)
	}
}

// Submission validates a whole submission. When any field is blank only the
// empty-fields error is reported; the pattern checks are skipped.
func (v *Validator) Submission(in Input) Outcome {
	if IsBlank(in.FullName) || IsBlank(in.Phone) || IsBlank(in.Email) {
		return Outcome{
			Valid:  false,
			Errors: []Result{fail(FieldForm, KindEmptyField, v.messages.EmptyFields)},
		}
	}

	var errs []Result
	for _, f := range Fields {
		if r := v.Field(f, in.Value(f)); !r.Valid {
			errs = append(errs, r)
		}
	}
	return Outcome{Valid: len(errs) == 0, Errors: errs}
}

var (
	lenient = New(NameRuleLenient)
	strict  = New(NameRuleStrict)
)

func byRule(rule NameRule) *Validator {
	if rule == NameRuleStrict {
		return strict
	}
	return lenient
}

// ValidateFullName checks name with the given rule and default messages.
func ValidateFullName(name string, rule NameRule) Result {
	return byRule(rule).FullName(name)
}

// ValidatePhone checks a phone number with default messages.
func ValidatePhone(phone string) Result {
	return lenient.Phone(phone)
}

// ValidateEmail checks an email address against AllowedEmailDomains.
func ValidateEmail(email string) Result {
	return lenient.Email(email)
}

// ValidateSubmission checks a whole submission with the given name rule.
func ValidateSubmission(in Input, rule NameRule) Outcome {
	return byRule(rule).Submission(in)
}
