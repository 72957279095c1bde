package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

var alphaNumUnderRegex = regexp.MustCompile(`^\w+$`)

// customTag is a validation tag with its english message.
// fn is nil for built-in tags whose default message is replaced.
type customTag struct {
	tag  string
	text string
	fn   validator.Func
}

var customTags = []customTag{
	{tag: "alphanum_", text: "only alphanumeric characters and underscores are allowed", fn: alphaNumUnderValidation},
	{tag: "required", text: requiredText},
	{tag: "required_with", text: requiredText},
	{tag: "uuid", text: "must be a valid identifier"},
}

func NewTranslator() ut.Translator {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	return translator
}

// NewValidator returns a validator set up with InitValidators.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// InitValidators registers the english messages, the JSON field names and the custom tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(jsonFieldName)

	for _, ct := range customTags {
		if ct.fn != nil {
			_ = validate.RegisterValidation(ct.tag, ct.fn)
		}
		RegisterCustomTranslation(validate, translator, ct.tag, ct.text, ct.fn == nil)
	}
}

// jsonFieldName names fields in errors after their JSON key.
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// RegisterCustomTranslation sets the message of tag. override must be set to replace an existing message.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}
