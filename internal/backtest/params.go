package backtest

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"equity-momentum-lab/internal/domain"
)

// ErrInvalidParams is returned when run parameters fail boundary validation.
var ErrInvalidParams = errors.New("invalid backtest parameters")

// FieldError describes one rejected parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every rejected parameter of a request.
// It matches ErrInvalidParams under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return fmt.Sprintf("%s: %s", ErrInvalidParams, strings.Join(msgs, "; "))
}

// Is reports whether target is ErrInvalidParams.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidParams
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	if err := v.RegisterValidation("finite", isFinite); err != nil {
		panic(fmt.Sprintf("register finite validation: %v", err))
	}

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

func isFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		v := f.Float()
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	default:
		return true
	}
}

// Validate checks strategy parameters:
// mom_win > 0, gap >= 0, quantile in (0, 0.5], max_pos > 0, tc_bps >= 0.
func Validate(p domain.StrategyParams) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return out
}

// ValidateRequest validates the strategy parameters and the date window.
func ValidateRequest(req domain.RunRequest) error {
	err := Validate(req.StrategyParams)
	werr := ValidateWindow(req.Start, req.End)
	if werr == nil {
		return err
	}
	if err == nil {
		return werr
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		verr.Fields = append(verr.Fields, werr.(*ValidationError).Fields...)
		return verr
	}
	return err
}

// ValidateWindow rejects a window whose start is after its end.
// Either bound may be nil.
func ValidateWindow(start, end *time.Time) error {
	if start == nil || end == nil || !start.After(*end) {
		return nil
	}
	return &ValidationError{Fields: []FieldError{{Field: "start", Message: "start must not be after end"}}}
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "finite":
		return fmt.Sprintf("%s must be a finite number", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
