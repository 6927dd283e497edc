package rpc

import (
	"errors"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/misu-units/misu/internal/store"
	"github.com/misu-units/misu/pkg/category"
	"github.com/misu-units/misu/pkg/parser"
	"github.com/misu-units/misu/pkg/protocol"
	"github.com/misu-units/misu/pkg/quantity"
	"github.com/misu-units/misu/pkg/represent"
	"github.com/misu-units/misu/pkg/signature"
	"github.com/misu-units/misu/pkg/units"
)

var ErrNoWorksheet = errors.New("worksheet storage is disabled")

type paramsError struct {
	msg string
}

func (e *paramsError) Error() string { return e.msg }

func invalidParams(format string, args ...any) error {
	return &paramsError{msg: fmt.Sprintf(format, args...)}
}

// codeFor maps engine errors onto the protocol's error codes. Unknown units
// are checked before parse errors because the parser wraps them.
func codeFor(err error) int64 {
	var pe *paramsError
	switch {
	case errors.As(err, &pe):
		return protocol.CodeInvalidParams
	case errors.Is(err, quantity.ErrIncompatibleUnits):
		return protocol.CodeIncompatibleUnits
	case errors.Is(err, category.ErrUncategorized):
		return protocol.CodeUncategorized
	case errors.Is(err, units.ErrUnknownUnit):
		return protocol.CodeUnknownUnit
	case errors.Is(err, parser.ErrParse):
		return protocol.CodeParse
	case errors.Is(err, store.ErrNotFound):
		return protocol.CodeNotFound
	case errors.Is(err, signature.ErrValidation),
		errors.Is(err, quantity.ErrInvalidExponent),
		errors.Is(err, quantity.ErrShapeMismatch),
		errors.Is(err, quantity.ErrNotDimensionless),
		errors.Is(err, quantity.ErrNotScalar),
		errors.Is(err, represent.ErrNoRepresentTarget):
		return protocol.CodeInvalidParams
	default:
		return protocol.CodeInternal
	}
}

func toRPCError(err error) *jsonrpc2.Error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &jsonrpc2.Error{Code: codeFor(err), Message: err.Error()}
}

// IsCode reports whether err is a JSON-RPC error with the given code.
func IsCode(err error, code int64) bool {
	var rpcErr *jsonrpc2.Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
