// Package forms binds the field validator to the two employee settings
// forms and saves accepted submissions to the configuration store.
package forms

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/customform/configstore"
	"github.com/dalemusser/customform/logging"
	"github.com/dalemusser/customform/metrics"
	"github.com/dalemusser/customform/validation"
	"go.uber.org/zap"
)

var (
	// ErrUnknownForm is returned for a form id that is not registered.
	ErrUnknownForm = errors.New("forms: unknown form")

	// ErrUnknownField is returned by CheckField for a field that is not
	// validated.
	ErrUnknownField = errors.New("forms: unknown field")

	// ErrInvalidGender is returned when gender is neither empty nor one of
	// the offered options.
	ErrInvalidGender = errors.New("forms: invalid gender")
)

// LiveResult is the answer to one live field check. Target is the id of
// the element the message is written into.
type LiveResult struct {
	Target  string `json:"target"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type form struct {
	def Definition
	v   *validation.Validator
}

// Service validates and saves form submissions. It is safe for concurrent
// use; concurrent saves to the same form are last-writer-wins.
type Service struct {
	store  configstore.Store
	logger *zap.Logger
	forms  map[string]*form
	order  []string
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	defs    []Definition
	domains *validation.DomainSet
}

// WithDefinitions replaces the builtin forms.
func WithDefinitions(defs ...Definition) Option {
	return func(o *serviceOptions) { o.defs = defs }
}

// WithDomains replaces the allowed email domains for every form.
func WithDomains(d validation.DomainSet) Option {
	return func(o *serviceOptions) { o.domains = &d }
}

// NewService returns a Service saving to store.
func NewService(store configstore.Store, logger *zap.Logger, opts ...Option) *Service {
	o := serviceOptions{defs: Builtin()}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  store,
		logger: logger,
		forms:  make(map[string]*form, len(o.defs)),
	}
	for _, d := range o.defs {
		vopts := []validation.Option{validation.WithMessages(d.Messages)}
		if o.domains != nil {
			vopts = append(vopts, validation.WithDomains(*o.domains))
		}
		if _, dup := s.forms[d.ID]; !dup {
			s.order = append(s.order, d.ID)
		}
		s.forms[d.ID] = &form{def: d, v: validation.New(d.NameRule, vopts...)}
	}
	return s
}

// Definition returns the definition of formID.
func (s *Service) Definition(formID string) (Definition, error) {
	f, err := s.lookup(formID)
	if err != nil {
		return Definition{}, err
	}
	return f.def, nil
}

// Definitions returns every registered form in registration order.
func (s *Service) Definitions() []Definition {
	out := make([]Definition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.forms[id].def)
	}
	return out
}

func (s *Service) lookup(formID string) (*form, error) {
	f, ok := s.forms[formID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownForm, formID)
	}
	return f, nil
}

// Check validates in without saving.
func (s *Service) Check(formID string, in validation.Input) (validation.Outcome, error) {
	f, err := s.lookup(formID)
	if err != nil {
		return validation.Outcome{}, err
	}
	return s.check(f, in), nil
}

func (s *Service) check(f *form, in validation.Input) validation.Outcome {
	out := f.v.Submission(in)
	observeOutcome(f.def.ID, out)

	if out.Valid || f.def.Summary == "" || out.HasKind(validation.KindEmptyField) {
		return out
	}
	// Forms with a summary report it alone; their fields are judged live.
	out.Errors = []validation.Result{{
		Field:   validation.FieldForm,
		Kind:    validation.KindFormat,
		Message: f.def.Summary,
	}}
	return out
}

func observeOutcome(formID string, out validation.Outcome) {
	if out.Valid {
		for _, fld := range validation.Fields {
			metrics.ObserveValidation(formID, string(fld), "valid")
		}
		return
	}
	for _, e := range out.Errors {
		metrics.ObserveValidation(formID, string(e.Field), string(e.Kind))
	}
}

// Submit validates in and, when it passes, saves the raw values under the
// form's configuration name. A rejected submission is not an error: the
// returned Outcome carries the reasons.
func (s *Service) Submit(ctx context.Context, formID string, in validation.Input) (validation.Outcome, error) {
	f, err := s.lookup(formID)
	if err != nil {
		return validation.Outcome{}, err
	}
	out := s.check(f, in)
	if !out.Valid {
		metrics.ObserveSubmission(formID, metrics.ResultRejected)
		s.logger.Debug("submission rejected",
			zap.String("form", formID),
			zap.Int("errors", len(out.Errors)))
		return out, nil
	}
	if in.Gender != "" && !in.Gender.Valid() {
		metrics.ObserveSubmission(formID, metrics.ResultRejected)
		return validation.Outcome{}, fmt.Errorf("%w: %q", ErrInvalidGender, in.Gender)
	}

	values := map[string]string{
		KeyFullName: in.FullName,
		KeyPhone:    in.Phone,
		KeyEmail:    in.Email,
		KeyGender:   string(in.Gender),
	}
	if err := s.store.Save(ctx, f.def.ConfigName, values); err != nil {
		metrics.ObserveSubmission(formID, metrics.ResultError)
		s.logger.Error("save settings failed",
			zap.String("form", formID),
			zap.String("config", f.def.ConfigName),
			zap.Error(err))
		return out, fmt.Errorf("forms: save %s: %w", f.def.ConfigName, err)
	}

	metrics.ObserveSubmission(formID, metrics.ResultSaved)
	s.logger.Info("settings saved",
		zap.String("form", formID),
		zap.String("config", f.def.ConfigName),
		logging.MaskEmail(in.Email))
	return out, nil
}

// CheckField validates a single field the way the live form does on each
// keystroke. Calls are independent; callers that issue several for the
// same field must order the answers themselves.
func (s *Service) CheckField(formID, field, value string) (LiveResult, error) {
	f, err := s.lookup(formID)
	if err != nil {
		return LiveResult{}, err
	}
	fld, ok := validation.ParseField(field)
	if !ok {
		return LiveResult{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	r := f.v.Field(fld, value)
	outcome := "valid"
	if !r.Valid {
		outcome = string(r.Kind)
	}
	metrics.ObserveValidation(formID, string(fld), outcome)

	target := field
	if fd, ok := f.def.Field(field); ok && fd.Target != "" {
		target = fd.Target
	}
	return LiveResult{Target: target, Valid: r.Valid, Message: f.def.liveMessage(r)}, nil
}

func (d Definition) liveMessage(r validation.Result) string {
	if r.Valid {
		if d.Live.Valid != "" {
			return d.Live.Valid
		}
		return "Valid"
	}
	var msg string
	switch r.Field {
	case validation.FieldFullName:
		msg = d.Live.FullName
	case validation.FieldPhone:
		msg = d.Live.Phone
	case validation.FieldEmail:
		msg = d.Live.Email
	}
	if msg == "" {
		msg = r.Message
	}
	return msg
}

// Saved returns the values last saved by formID. A form that has never been
// submitted yields an empty map.
func (s *Service) Saved(ctx context.Context, formID string) (map[string]string, error) {
	f, err := s.lookup(formID)
	if err != nil {
		return nil, err
	}
	values, err := s.store.Load(ctx, f.def.ConfigName)
	if errors.Is(err, configstore.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("forms: load %s: %w", f.def.ConfigName, err)
	}
	return values, nil
}

// Ping checks the configuration store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
