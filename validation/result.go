// validation/result.go
package validation

// Field identifies one of the validated inputs.
type Field string

const (
	FieldFullName Field = "fullname"
	FieldPhone    Field = "phone"
	FieldEmail    Field = "email"

	// FieldForm is used for errors that describe the submission as a whole,
	// such as the empty-fields error.
	FieldForm Field = "form"
)

// Fields lists the validated fields in reporting order.
var Fields = []Field{FieldFullName, FieldPhone, FieldEmail}

// ParseField maps a field key to a Field. The second return is false for
// keys that are not validated.
func ParseField(key string) (Field, bool) {
	switch Field(key) {
	case FieldFullName, FieldPhone, FieldEmail:
		return Field(key), true
	}
	return "", false
}

// Kind classifies a failed validation. The zero value means no error.
type Kind string

const (
	KindNone             Kind = ""
	KindEmptyField       Kind = "empty_field"
	KindFormat           Kind = "format"
	KindDomainNotAllowed Kind = "domain_not_allowed"
)

// Result is the outcome of validating a single field. Results are values;
// a validator returns a fresh one on every call.
type Result struct {
	Field   Field  `json:"field"`
	Valid   bool   `json:"valid"`
	Kind    Kind   `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func pass(f Field) Result {
	return Result{Field: f, Valid: true}
}

func fail(f Field, k Kind, msg string) Result {
	return Result{Field: f, Valid: false, Kind: k, Message: msg}
}

// Outcome aggregates the results of validating a whole submission.
type Outcome struct {
	Valid  bool     `json:"valid"`
	Errors []Result `json:"errors,omitempty"`
}

// HasKind reports whether any error in the outcome is of kind k.
func (o Outcome) HasKind(k Kind) bool {
	for _, e := range o.Errors {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Failed returns the fields that carry an error, in order, without the
// form-level pseudo field.
func (o Outcome) Failed() []Field {
	var out []Field
	for _, e := range o.Errors {
		if e.Field != FieldForm {
			out = append(out, e.Field)
		}
	}
	return out
}
