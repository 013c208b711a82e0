package forms

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/customform/configstore"
	"github.com/dalemusser/customform/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var good = validation.Input{
	FullName: "Jane Doe",
	Phone:    "9876543210",
	Email:    "jane@gmail.com",
	Gender:   validation.GenderFemale,
}

type failingStore struct{ *configstore.MemoryStore }

func (failingStore) Save(context.Context, string, map[string]string) error {
	return errors.New("disk full")
}

func TestSubmit_SavesUnderConfigName(t *testing.T) {
	store := configstore.NewMemoryStore()
	s := NewService(store, nil)
	ctx := context.Background()

	out, err := s.Submit(ctx, StandardFormID, good)
	require.NoError(t, err)
	assert.True(t, out.Valid)

	got, err := store.Load(ctx, StandardConfigName)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"fullname": "Jane Doe",
		"phone":    "9876543210",
		"email":    "jane@gmail.com",
		"gender":   "female",
	}, got)

	_, err = store.Load(ctx, LiveConfigName)
	assert.ErrorIs(t, err, configstore.ErrNotFound, "live form target must stay untouched")
}

func TestSubmit_StoresRawValues(t *testing.T) {
	store := configstore.NewMemoryStore()
	s := NewService(store, nil)

	in := good
	in.FullName = "  Jane Doe "
	_, err := s.Submit(context.Background(), StandardFormID, in)
	require.NoError(t, err)

	got, _ := s.Saved(context.Background(), StandardFormID)
	assert.Equal(t, "  Jane Doe ", got["fullname"])
}

func TestSubmit_RejectedIsNotSaved(t *testing.T) {
	store := configstore.NewMemoryStore()
	s := NewService(store, nil)

	in := good
	in.Email = "jane@hotmail.com"
	out, err := s.Submit(context.Background(), StandardFormID, in)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Domain name not allowed", out.Errors[0].Message)

	saved, err := s.Saved(context.Background(), StandardFormID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSubmit_EmptyFieldsOnly(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)
	for _, id := range []string{StandardFormID, LiveFormID} {
		out, err := s.Submit(context.Background(), id, validation.Input{FullName: "x1", Email: "bad"})
		require.NoError(t, err)
		require.Len(t, out.Errors, 1, id)
		assert.Equal(t, "Empty fields present", out.Errors[0].Message, id)
		assert.Equal(t, validation.KindEmptyField, out.Errors[0].Kind, id)
	}
}

func TestSubmit_LiveFormSummary(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	in := good
	in.FullName = "Al" // too short for the strict rule
	out, err := s.Submit(context.Background(), LiveFormID, in)
	require.NoError(t, err)
	require.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, validation.FieldForm, out.Errors[0].Field)
	assert.Equal(t, "Invalid Input Present", out.Errors[0].Message)
	assert.Empty(t, out.Failed())

	// Several bad fields still give the one summary.
	in.Phone = "12345"
	in.Email = "al@hotmail.com"
	out, err = s.Submit(context.Background(), LiveFormID, in)
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Invalid Input Present", out.Errors[0].Message)
	in = good
	in.FullName = "Al"

	// The same name passes the lenient standard form.
	out, err = s.Check(StandardFormID, in)
	require.NoError(t, err)
	assert.True(t, out.Valid)
}

func TestSubmit_Gender(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	in := good
	in.Gender = ""
	out, err := s.Submit(context.Background(), LiveFormID, in)
	require.NoError(t, err)
	assert.True(t, out.Valid)

	in.Gender = "other"
	_, err = s.Submit(context.Background(), LiveFormID, in)
	assert.ErrorIs(t, err, ErrInvalidGender)
}

func TestSubmit_FieldErrorsBeforeGender(t *testing.T) {
	store := configstore.NewMemoryStore()
	s := NewService(store, nil)

	out, err := s.Submit(context.Background(), StandardFormID, validation.Input{Gender: "other"})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, validation.KindEmptyField, out.Errors[0].Kind)

	in := good
	in.Email = "jane@hotmail.com"
	in.Gender = "other"
	out, err = s.Submit(context.Background(), StandardFormID, in)
	require.NoError(t, err)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "Domain name not allowed", out.Errors[0].Message)

	_, err = store.Load(context.Background(), StandardConfigName)
	assert.ErrorIs(t, err, configstore.ErrNotFound)
}

func TestSubmit_StoreError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := NewService(failingStore{configstore.NewMemoryStore()}, zap.New(core))

	_, err := s.Submit(context.Background(), StandardFormID, good)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StandardConfigName)
	assert.Equal(t, 1, logs.FilterMessage("save settings failed").Len())
}

func TestSubmit_LogMasksEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewService(configstore.NewMemoryStore(), zap.New(core))

	_, err := s.Submit(context.Background(), StandardFormID, good)
	require.NoError(t, err)

	entries := logs.FilterMessage("settings saved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "***@gmail.com", entries[0].ContextMap()["email"])
}

func TestUnknownForm(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	_, err := s.Check("nope", good)
	assert.ErrorIs(t, err, ErrUnknownForm)
	_, err = s.Submit(context.Background(), "nope", good)
	assert.ErrorIs(t, err, ErrUnknownForm)
	_, err = s.CheckField("nope", "phone", "9876543210")
	assert.ErrorIs(t, err, ErrUnknownForm)
	_, err = s.Saved(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownForm)
}

func TestCheckField_Live(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	tests := []struct {
		field, value string
		want         LiveResult
	}{
		{"fullname", "Alice Smith", LiveResult{Target: "name", Valid: true, Message: "Valid"}},
		{"fullname", "Al", LiveResult{Target: "name", Message: "Invalid Name."}},
		{"fullname", "", LiveResult{Target: "name", Message: "Invalid Name."}},
		{"phone", "9876543210", LiveResult{Target: "phone", Valid: true, Message: "Valid"}},
		{"phone", "0876543210", LiveResult{Target: "phone", Message: "Invalid mobile number."}},
		{"email", "a@yahoo.com", LiveResult{Target: "email", Valid: true, Message: "Valid"}},
		{"email", "a@example.com", LiveResult{Target: "email", Message: "Invalid email address."}},
		{"email", "not-an-email", LiveResult{Target: "email", Message: "Invalid email address."}},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.value, func(t *testing.T) {
			got, err := s.CheckField(LiveFormID, tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.CheckField(LiveFormID, "gender", "male")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestCheckField_StandardFallsBackToFormMessages(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	got, err := s.CheckField(StandardFormID, "email", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, LiveResult{Target: "email", Message: "Domain name not allowed"}, got)
}

func TestWithDomains(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil,
		WithDomains(validation.NewDomainSet("example.com")))

	got, err := s.CheckField(LiveFormID, "email", "a@example.com")
	require.NoError(t, err)
	assert.True(t, got.Valid)

	got, _ = s.CheckField(LiveFormID, "email", "a@gmail.com")
	assert.False(t, got.Valid)
}

func TestDefinitions(t *testing.T) {
	s := NewService(configstore.NewMemoryStore(), nil)

	defs := s.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, StandardFormID, defs[0].ID)
	assert.Equal(t, LiveFormID, defs[1].ID)

	live, err := s.Definition(LiveFormID)
	require.NoError(t, err)
	phone, ok := live.Field(KeyPhone)
	require.True(t, ok)
	assert.Equal(t, validation.PhoneDisplayPattern, phone.Pattern)

	custom := NewService(configstore.NewMemoryStore(), nil, WithDefinitions(Live()))
	_, err = custom.Definition(StandardFormID)
	assert.ErrorIs(t, err, ErrUnknownForm)
}
