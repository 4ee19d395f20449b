package services

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// structValidator checks validate tags and reports failures by JSON field
// name with English messages.
type structValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newStructValidator() *structValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	// Registration only fails for malformed built-in templates.
	_ = entranslations.RegisterDefaultTranslations(validate, trans)

	return &structValidator{validate: validate, trans: trans}
}

// Struct validates v and returns a *ValidationError on failure.
func (sv *structValidator) Struct(v interface{}) error {
	err := sv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	fields := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		fields[fe.Field()] = fe.Translate(sv.trans)
	}
	return &ValidationError{Fields: fields}
}
