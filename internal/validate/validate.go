// Package validate checks request payloads with go-playground/validator and
// turns the first failure into an apperror with an English message.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
)

var (
	v          *validator.Validate
	translator ut.Translator

	phoneTag   = "phone10"
	phoneText  = "{0} must be a valid 10-digit number"
	phoneRegex = regexp.MustCompile(`^\d{10}$`)

	otpTag   = "otp6"
	otpText  = "{0} must be a 6-digit code"
	otpRegex = regexp.MustCompile(`^\d{6}$`)

	roleTag  = "role"
	roleText = "{0} must be student or tuition_owner"

	// max counts runes; bcrypt stops reading after 72 bytes.
	bcryptTag   = "bcrypt"
	bcryptText  = "{0} must be at most 72 bytes"
	bcryptBytes = 72
)

func init() {
	v = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Report JSON field names, not Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	register(phoneTag, phoneText, func(fl validator.FieldLevel) bool {
		return phoneRegex.MatchString(fl.Field().String())
	})
	register(otpTag, otpText, func(fl validator.FieldLevel) bool {
		return otpRegex.MatchString(fl.Field().String())
	})
	register(bcryptTag, bcryptText, func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= bcryptBytes
	})
	register(roleTag, roleText, func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
}

func register(tag, text string, fn validator.Func) {
	_ = v.RegisterValidation(tag, fn)
	_ = v.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates s. It returns nil or an *apperror.AppError for the first
// failing field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.ValidationFailed(fe.Field(), fe.Translate(translator))
	}
	return apperror.ValidationFailed("", err.Error())
}
