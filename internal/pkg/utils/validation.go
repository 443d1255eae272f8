package utils

import (
	"regexp"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// RegisterValidators adds the custom binding tags used by request payloads.
func RegisterValidators() {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		log.Warn().Msg("Gin validator engine is not go-playground, custom tags not registered")
		return
	}
	RegisterValidatorsOn(engine)
}

func RegisterValidatorsOn(v *validator.Validate) {
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidPassword(fl.Field().String())
	})
}

func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidPassword requires eight characters with at least one letter and one digit.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// BindingProblem turns a gin binding error into a problem listing the failed fields.
func BindingProblem(err error) reject.Problem {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return reject.BodyParseProblem()
	}
	details := make([]reject.ProblemDetail, 0, len(errs))
	for _, fe := range errs {
		details = append(details, reject.ProblemDetail{
			Property: fe.Field(),
			Info:     fe.Error(),
			Code:     "error.validation." + fe.Tag(),
		})
	}
	return reject.ViolationProblem("Invalid request payload", details)
}
