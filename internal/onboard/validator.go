// Валидация тел запросов API.  Использует библиотеку go-playground/validator
// и дополнительные валидаторы для названий анкет, ключей справочников и слагов.
//
// Основные возможности:
//   - Валидация полей запросов по предопределенным правилам.
//   - Проверка формата ключей и слагов регулярными выражениями.
package onboard

import (
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator"
)

type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	if err := v.RegisterValidation("formTitle", formTitleValidator); err != nil {
		return nil
	}

	if err := v.RegisterValidation("fieldKey", fieldKeyValidator); err != nil {
		return nil
	}

	if err := v.RegisterValidation("slug", slugValidator); err != nil {
		return nil
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validator.Struct(i); err != nil {
		_, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil
		}
		return err
	}
	return nil
}

func formTitleValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if !isValidLatinCyrillicDigitWithSymbol(value) {
		return false
	}
	return lenStr >= 1 && lenStr <= 200
}

func fieldKeyValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if !isValidLatinLowerDigitUnderscore(value) {
		return false
	}
	return lenStr >= 1 && lenStr <= 100
}

func slugValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	lenStr := utf8.RuneCountInString(value)
	if !isValidLatinLowerDigitHyphen(value) {
		return false
	}
	return lenStr >= 3 && lenStr <= 50
}

// Validate
func isValidLatinCyrillicDigitWithSymbol(str string) bool {
	pt := `^[A-Za-zА-Яа-яёЁ0-9 ._\/\-\\!#\$%&'\"\(\)\*\+,\-.:;№<=>?@\[\\\]\^_\{\|\}~]+$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}

func isValidLatinLowerDigitUnderscore(str string) bool {
	pt := `^[a-z0-9_]+$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}

func isValidLatinLowerDigitHyphen(str string) bool {
	pt := `^[a-z0-9-]+$`
	re := regexp.MustCompile(pt)
	return re.MatchString(str)
}
