package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/kkkkikiki/portal/internal/apperr"
)

// UsedAtHeader carries the original consumption time of an already-used code
const UsedAtHeader = "Used-At"

// toConnectError maps application errors onto connect codes
func toConnectError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return connect.NewError(connect.CodeNotFound, err)
	case apperr.KindAlreadyUsed:
		cerr := connect.NewError(connect.CodeFailedPrecondition, err)
		if usedAt, ok := apperr.UsedAtOf(err); ok {
			cerr.Meta().Set(UsedAtHeader, usedAt.UTC().Format(time.RFC3339Nano))
		}
		return cerr
	case apperr.KindValidation:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case apperr.KindUnavailable:
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// validationError turns validator output into an InvalidArgument error naming the fields
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return toConnectError(apperr.Validation(op, "invalid fields: %s", strings.Join(fields, ", ")))
	}
	return toConnectError(apperr.Validation(op, "%v", err))
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
