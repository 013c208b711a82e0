// forms/definitions.go
package forms

import "github.com/dalemusser/customform/validation"

// Form ids.
const (
	StandardFormID = "custom_form_config"
	LiveFormID     = "custom_form_config_ajax"
)

// Configuration names the two forms save under. They are never merged.
const (
	StandardConfigName = "custom_form.settings"
	LiveConfigName     = "custom_form.settings.ajax"
)

// Keys of the stored configuration.
const (
	KeyFullName = "fullname"
	KeyPhone    = "phone"
	KeyEmail    = "email"
	KeyGender   = "gender"
)

// Choice is one option of a radios field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDef describes how a field is rendered. Size, MaxLength, MinLength and
// Pattern are browser hints; the server never trusts them.
type FieldDef struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Size      int      `json:"size,omitempty"`
	MaxLength int      `json:"maxlength,omitempty"`
	MinLength int      `json:"minlength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Target    string   `json:"target,omitempty"`
	Options   []Choice `json:"options,omitempty"`
}

// LiveMessages are the per-field texts reported while the user types.
type LiveMessages struct {
	FullName string
	Phone    string
	Email    string
	Valid    string
}

// Definition is a settings form: its fields, name rule, messages and the
// configuration name it saves under.
type Definition struct {
	ID         string
	Title      string
	ConfigName string
	NameRule   validation.NameRule
	Fields     []FieldDef
	Messages   validation.Messages

	// Live is used by CheckField. Empty texts fall back to Messages.
	Live LiveMessages

	// Summary, when set, replaces the field errors of a rejected submission
	// whose fields are all filled in.
	Summary string

	// Success is the notice shown after a successful save.
	Success string

	// LiveValidation marks forms whose page checks fields as they are typed.
	LiveValidation bool
}

// Field returns the field definition with the given key.
func (d Definition) Field(key string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDef{}, false
}

var genderChoices = []Choice{
	{Value: string(validation.GenderMale), Label: "Male"},
	{Value: string(validation.GenderFemale), Label: "Female"},
}

// Standard is the settings form validated on submit only.
func Standard() Definition {
	return Definition{
		ID:         StandardFormID,
		Title:      "Employee settings",
		ConfigName: StandardConfigName,
		NameRule:   validation.NameRuleLenient,
		Messages:   validation.DefaultMessages(),
		Success:    "The configuration options have been saved.",
		Fields: []FieldDef{
			{Key: KeyFullName, Label: "Full Name", Type: "text", Size: 25, MaxLength: 25},
			{Key: KeyPhone, Label: "Phone Number", Type: "tel", Size: 10, MinLength: 10, MaxLength: 10},
			{Key: KeyEmail, Label: "Email ID", Type: "email", Size: 30},
			{Key: KeyGender, Label: "Gender", Type: "radios", Options: genderChoices},
		},
	}
}

// Live is the settings form whose fields are checked as they are typed.
func Live() Definition {
	msg := validation.DefaultMessages()
	msg.NameTooLong = "Invalid Name."
	msg.NameInvalid = "Invalid Name."
	msg.PhoneInvalid = "Invalid mobile number."
	msg.EmailInvalid = "Invalid email address."
	msg.DomainNotAllowed = "Invalid email address."

	return Definition{
		ID:         LiveFormID,
		Title:      "Employee settings (live validation)",
		ConfigName: LiveConfigName,
		NameRule:   validation.NameRuleStrict,
		Messages:   msg,
		Live: LiveMessages{
			FullName: "Invalid Name.",
			Phone:    "Invalid mobile number.",
			Email:    "Invalid email address.",
			Valid:    "Valid",
		},
		Summary:        "Invalid Input Present",
		Success:        "Form Submitted Successfully",
		LiveValidation: true,
		Fields: []FieldDef{
			{Key: KeyFullName, Label: "Full Name", Type: "text", Size: 25, MaxLength: 30, Target: "name"},
			{Key: KeyPhone, Label: "Phone Number", Type: "tel", Size: 10, MaxLength: 10, Pattern: validation.PhoneDisplayPattern, Target: "phone"},
			{Key: KeyEmail, Label: "Email ID", Type: "email", Size: 30, Target: "email"},
			{Key: KeyGender, Label: "Gender", Type: "radios", Options: genderChoices},
		},
	}
}

// Builtin returns the standard and live forms.
func Builtin() []Definition {
	return []Definition{Standard(), Live()}
}
