package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

type customValidation struct {
	tag  string
	text string
	fn   validator.Func
}

var (
	clockRegex = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$|^24:00$`)

	customValidations = []customValidation{
		{tag: "clock", text: "{0} must be a 24-hour time formatted as HH:MM", fn: clockValidation},
		{tag: "notblank", text: "{0} must not be blank", fn: notBlankValidation},
	}

	// texts replacing the default english ones
	overriddenTexts = map[string]string{
		"required":      "this field is required",
		"required_with": "this field is required",
		"oneof":         "{0} is not one of the allowed values",
	}
)

// InitValidators sets up validate and translator for the presence types.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, cv := range customValidations {
		_ = validate.RegisterValidation(cv.tag, cv.fn)
		RegisterCustomTranslation(validate, translator, cv.tag, cv.text)
	}
	for tag, text := range overriddenTexts {
		RegisterCustomTranslation(validate, translator, tag, text, true)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// FieldErrors converts validator errors into FieldErrors, translated when
// translator is set. Any other error yields nil.
func FieldErrors(err error, translator ut.Translator) []FieldError {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		msg := vErr.Error()
		if translator != nil {
			msg = vErr.Translate(translator)
		}
		flds = append(flds, FieldError{Field: vErr.Field(), Error: msg})
	}
	return flds
}

// clockValidation only allows HH:MM (24h) times; 24:00 marks the end of the day.
func clockValidation(fl validator.FieldLevel) bool {
	return clockRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
