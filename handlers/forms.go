// handlers/forms.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/dalemusser/customform/forms"
	"github.com/dalemusser/customform/httputil"
	"github.com/dalemusser/customform/session"
	"github.com/dalemusser/customform/validation"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type formData struct {
	Page
	Form   forms.Definition
	Values map[string]string
	Errors []validation.Result
}

func (h *Handler) definition(w http.ResponseWriter, r *http.Request) (forms.Definition, bool) {
	def, err := h.forms.Definition(chi.URLParam(r, "formID"))
	if err != nil {
		http.Error(w, "page not found", http.StatusNotFound)
		return forms.Definition{}, false
	}
	return def, true
}

// formPage renders an empty form.
func (h *Handler) formPage(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	h.views.Render(w, http.StatusOK, "form", formData{
		Page:   newPage(r, def.Title),
		Form:   def,
		Values: map[string]string{},
	})
}

func inputFromForm(r *http.Request) validation.Input {
	return validation.Input{
		FullName: r.PostFormValue(forms.KeyFullName),
		Phone:    r.PostFormValue(forms.KeyPhone),
		Email:    r.PostFormValue(forms.KeyEmail),
		Gender:   validation.Gender(r.PostFormValue(forms.KeyGender)),
	}
}

func inputValues(in validation.Input) map[string]string {
	return map[string]string{
		forms.KeyFullName: in.FullName,
		forms.KeyPhone:    in.Phone,
		forms.KeyEmail:    in.Email,
		forms.KeyGender:   string(in.Gender),
	}
}

// formSubmit handles a browser post. Rejected input is shown again with the
// errors; a saved submission redirects back to the empty form with a notice.
func (h *Handler) formSubmit(w http.ResponseWriter, r *http.Request) {
	def, ok := h.definition(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}
	in := inputFromForm(r)

	out, err := h.forms.Submit(r.Context(), def.ID, in)
	switch {
	case errors.Is(err, forms.ErrInvalidGender):
		http.Error(w, "invalid gender", http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("form submit failed", zap.String("form", def.ID), zap.Error(err))
		http.Error(w, "could not save settings", http.StatusInternalServerError)
		return
	}

	if !out.Valid {
		h.views.Render(w, http.StatusUnprocessableEntity, "form", formData{
			Page:   newPage(r, def.Title),
			Form:   def,
			Values: inputValues(in),
			Errors: out.Errors,
		})
		return
	}

	if s := session.FromContext(r.Context()); s != nil {
		s.AddMessage(session.LevelStatus, def.Success)
	}
	http.Redirect(w, r, "/forms/"+def.ID, http.StatusSeeOther)
}

func (h *Handler) apiForm(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "formID")
	if _, err := h.forms.Definition(id); err != nil {
		httputil.JSONError(w, http.StatusNotFound, "unknown_form", "no form with id "+id)
		return "", false
	}
	return id, true
}

// apiCheck validates a JSON submission without saving it.
func (h *Handler) apiCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apiForm(w, r)
	if !ok {
		return
	}
	var in validation.Input
	if err := httputil.BindJSON(r, &in); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := h.forms.Check(id, in)
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "validation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type submitResponse struct {
	validation.Outcome
	Message string `json:"message,omitempty"`
}

// apiSubmit validates and saves a JSON submission. Rejected input answers
// 422 with the errors.
func (h *Handler) apiSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apiForm(w, r)
	if !ok {
		return
	}
	var in validation.Input
	if err := httputil.BindJSON(r, &in); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	out, err := h.forms.Submit(r.Context(), id, in)
	switch {
	case errors.Is(err, forms.ErrInvalidGender):
		httputil.JSONError(w, http.StatusBadRequest, "invalid_gender", `gender must be "male", "female" or empty`)
		return
	case err != nil:
		h.logger.Error("api submit failed", zap.String("form", id), zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "save_failed", "could not save settings")
		return
	}

	if !out.Valid {
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, submitResponse{Outcome: out})
		return
	}
	def, _ := h.forms.Definition(id)
	httputil.WriteJSON(w, http.StatusOK, submitResponse{Outcome: out, Message: def.Success})
}

type fieldRequest struct {
	Value string `json:"value"`
}

// apiField checks one field the way the live form does.
func (h *Handler) apiField(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apiForm(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if err := httputil.BindJSON(r, &req); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	field := chi.URLParam(r, "field")
	res, err := h.forms.CheckField(id, field, req.Value)
	if errors.Is(err, forms.ErrUnknownField) {
		httputil.JSONError(w, http.StatusNotFound, "unknown_field", "field "+field+" is not validated")
		return
	}
	if err != nil {
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "validation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// apiConfig returns the values the form last saved.
func (h *Handler) apiConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := h.apiForm(w, r)
	if !ok {
		return
	}
	values, err := h.forms.Saved(r.Context(), id)
	if err != nil {
		h.logger.Error("load settings failed", zap.String("form", id), zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "load_failed", "could not load settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, values)
}
