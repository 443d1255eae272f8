package reject

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Kind classifies a problem for both HTTP and real-time clients.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not-found"
	KindTransientStore Kind = "transient-store"
	KindTransport      Kind = "transport"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindConflict       Kind = "conflict"
	KindRateLimited    Kind = "rate-limited"
	KindUnexpected     Kind = "unexpected"
)

const (
	genericUnexpectedError string = "error.generic.unexpected"
	cannotParseParams      string = "error.generic.cannot-parse-params"
	invalidRequest         string = "error.generic.invalid-request-payload"
	cannotParseBody        string = "error.generic.cannot-parse-payload"
	genericNotFound        string = "error.generic.not-found"
	genericForbidden       string = "error.generic.forbidden"
	dataAccess             string = "error.data.access"
	tooManyRequests        string = "error.generic.too-many-requests"
	unauthorized           string = "error.auth.unauthorized"
	conflict               string = "error.generic.conflict"
)

func RequestValidationProblem() Problem {
	return NewProblem().
		WithTitle("Invalid request payload").
		WithStatus(http.StatusBadRequest).
		WithCode(invalidRequest).
		WithKind(KindValidation).
		Build()
}

func RequestParamsProblem() Problem {
	return NewProblem().
		WithTitle("Invalid request parameters").
		WithStatus(http.StatusBadRequest).
		WithCode(cannotParseParams).
		WithKind(KindValidation).
		Build()
}

func BodyParseProblem() Problem {
	return NewProblem().
		WithTitle("Cannot read payload").
		WithStatus(http.StatusBadRequest).
		WithCode(cannotParseBody).
		WithKind(KindValidation).
		Build()
}

func NotFoundProblem() Problem {
	return NewProblem().
		WithTitle("Record not found").
		WithStatus(http.StatusNotFound).
		WithCode(genericNotFound).
		WithKind(KindNotFound).
		Build()
}

func ForbiddenProblem() Problem {
	return NewProblem().
		WithTitle("Not allowed to modify this resource").
		WithStatus(http.StatusForbidden).
		WithCode(genericForbidden).
		WithKind(KindForbidden).
		Build()
}

func TooManyRequestsProblem() Problem {
	return NewProblem().
		WithTitle("Too many requests").
		WithStatus(http.StatusTooManyRequests).
		WithCode(tooManyRequests).
		WithKind(KindRateLimited).
		Build()
}

func StoreProblem(err error) *ProblemWithTrace {
	log.Warn().Err(err).Msg("Data access failed")
	return NewProblem().
		WithTitle("Trouble accessing the database").
		WithStatus(http.StatusServiceUnavailable).
		WithCode(dataAccess).
		WithKind(KindTransientStore).
		Trace(err)
}

func UnexpectedProblem(err error) Problem {
	log.Warn().Err(err).Msg("Unexpected error while handling request: " + err.Error())
	return NewProblem().
		WithTitle("Unexpected error").
		WithStatus(http.StatusInternalServerError).
		WithCode(genericUnexpectedError).
		WithKind(KindUnexpected).
		Build()
}

func UnauthorizedProblem() Problem {
	return NewProblem().
		WithTitle("Authentication required").
		WithStatus(http.StatusUnauthorized).
		WithCode(unauthorized).
		WithKind(KindUnauthorized).
		Build()
}

func ConflictProblem(title string) Problem {
	return NewProblem().
		WithTitle(title).
		WithStatus(http.StatusConflict).
		WithCode(conflict).
		WithKind(KindConflict).
		Build()
}

// ViolationProblem reports domain validation failures field by field.
func ViolationProblem(title string, details []ProblemDetail) Problem {
	return NewProblem().
		WithTitle(title).
		WithStatus(http.StatusBadRequest).
		WithCode(invalidRequest).
		WithKind(KindValidation).
		WithErrors(details).
		Build()
}
