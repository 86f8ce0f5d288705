package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/warp/finance-engine/ledger"
)

// CodeInsufficientFunds marks a 400 caused by a balance shortage.
const CodeInsufficientFunds = "insufficient_funds"

// Failure is a structured Gateway failure. Status is 0 when the request never
// got an HTTP response (network error, timeout).
type Failure struct {
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
	Err     error
}

func (f *Failure) Error() string {
	class := f.class().Error()
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if msg == "" {
		msg = defaultMessage(f.Status)
	}
	if strings.HasPrefix(msg, class) {
		return msg
	}
	return class + ": " + msg
}

// Unwrap exposes the matching ledger sentinel and the underlying cause.
func (f *Failure) Unwrap() []error {
	if f.Err != nil {
		return []error{f.class(), f.Err}
	}
	return []error{f.class()}
}

func (f *Failure) class() error {
	switch f.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if f.Code == CodeInsufficientFunds {
			return ledger.ErrInsufficientFunds
		}
		return ledger.ErrValidation
	case http.StatusNotFound:
		return ledger.ErrNotFound
	case http.StatusConflict:
		return ledger.ErrConflict
	default:
		return ledger.ErrTransport
	}
}

// FieldErrors flattens field-level detail into "field: message" lines, ordered by field.
func (f *Failure) FieldErrors() []string {
	keys := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		for _, msg := range f.Fields[k] {
			out = append(out, fmt.Sprintf("%s: %s", k, msg))
		}
	}
	return out
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func defaultMessage(status int) string {
	switch status {
	case 0:
		return "connection error, check your network"
	case http.StatusUnauthorized:
		return "not authorized to perform this action"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusInternalServerError:
		return "internal server error, try again later"
	default:
		return fmt.Sprintf("unexpected response (HTTP %d)", status)
	}
}
