// Package validator registers the request rules specific to client data on
// top of go-playground/validator.
package validator

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

// New returns a validator that also knows:
//   - siret: empty, or 14 digits once spaces are removed
//   - clienttype: empty, "company" or "individual"
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("siret", validSiret)
	_ = v.RegisterValidation("clienttype", validClientType)
	return &Validator{v: v}
}

func (val *Validator) Struct(s any) error { return val.v.Struct(s) }

func (val *Validator) Var(field any, tag string) error { return val.v.Var(field, tag) }

// FieldErrors maps each failing field to the tag it failed, for the details
// of a 400 response. Errors that are not validation errors give an empty map.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func validSiret(fl validator.FieldLevel) bool {
	digits := strings.ReplaceAll(strings.TrimSpace(fl.Field().String()), " ", "")
	if digits == "" {
		return true
	}
	if len(digits) != 14 {
		return false
	}
	return strings.Trim(digits, "0123456789") == ""
}

func validClientType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "", "company", "individual":
		return true
	}
	return false
}
