package user

import (
	"fmt"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"qugrow/core"
)

var (
	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"
)

// RegisterValidators registers user-specific validation tags.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(pwdMinLenTag, pwdMinLenValidation)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)

	_ = validate.RegisterValidation(pwdNotAllNumTag, pwdNotAllNumValidation)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
}

func pwdMinLenValidation(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) >= pwdMinLen
}

func pwdNotAllNumValidation(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
