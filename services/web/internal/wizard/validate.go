package wizard

import (
	"strings"

	"github.com/diagnosis/fitkeeda-web/services/web/internal/window"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator

	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"
	slotTag      = "slot"
	slotText     = "enter a time like 06:30 AM or 18:30"
	requiredText = "this field is required"
	matchText    = "does not match"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	_ = validate.RegisterValidation(slotTag, slotValidation)

	registerTranslation(notBlankTag, notBlankText, false)
	registerTranslation(slotTag, slotText, false)
	registerTranslation("required", requiredText, true)
	registerTranslation("eqcsfield", matchText, true)
}

func registerTranslation(tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func slotValidation(fl validator.FieldLevel) bool {
	_, err := window.ParseSlot(fl.Field().String())
	return err == nil
}

// checkField validates one field's value against its rules and returns a
// user-facing message, or "" when the value passes.
func checkField(f Field, v Values) string {
	if f.Rules == "" && f.EqualTo == "" {
		return ""
	}

	var err error
	switch {
	case f.Kind == KindList:
		err = validate.Var(v.List(f.Name), f.Rules)
	case f.EqualTo != "":
		rules := "eqcsfield"
		if f.Rules != "" {
			rules = f.Rules + ",eqcsfield"
		}
		err = validate.VarWithValue(v.Get(f.Name), v.Get(f.EqualTo), rules)
	default:
		err = validate.Var(v.Get(f.Name), f.Rules)
	}
	if err == nil {
		return ""
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return strings.TrimSpace(errs[0].Translate(translator))
	}
	return err.Error()
}
