package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/finance-engine/ledger"
)

func TestFailure_Class(t *testing.T) {
	tests := []struct {
		name    string
		failure Failure
		want    error
	}{
		{"400", Failure{Status: http.StatusBadRequest}, ledger.ErrValidation},
		{"422", Failure{Status: http.StatusUnprocessableEntity}, ledger.ErrValidation},
		{"400 insufficient", Failure{Status: http.StatusBadRequest, Code: CodeInsufficientFunds}, ledger.ErrInsufficientFunds},
		{"404", Failure{Status: http.StatusNotFound}, ledger.ErrNotFound},
		{"409", Failure{Status: http.StatusConflict}, ledger.ErrConflict},
		{"401", Failure{Status: http.StatusUnauthorized}, ledger.ErrTransport},
		{"403", Failure{Status: http.StatusForbidden}, ledger.ErrTransport},
		{"503", Failure{Status: http.StatusServiceUnavailable}, ledger.ErrTransport},
		{"network", Failure{Err: errors.New("dial tcp: refused")}, ledger.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.failure
			assert.ErrorIs(t, &f, tt.want)
		})
	}
}

func TestFailure_Message(t *testing.T) {
	// Backend message wins
	f := &Failure{Status: 400, Message: "amount must be positive"}
	assert.Equal(t, "validation failed: amount must be positive", f.Error())

	// No duplicate class prefix
	f = &Failure{Status: 404, Message: "not found: account 3"}
	assert.Equal(t, "not found: account 3", f.Error())

	// Status default
	f = &Failure{Status: 500}
	assert.Equal(t, "network or server failure: internal server error, try again later", f.Error())
	f = &Failure{Status: 401}
	assert.Equal(t, "network or server failure: not authorized to perform this action", f.Error())

	// Network cause
	f = &Failure{Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "network or server failure: dial tcp: refused", f.Error())
}

func TestFailure_FieldErrorsSorted(t *testing.T) {
	f := &Failure{Fields: map[string][]string{
		"date":   {"is required"},
		"amount": {"must be positive", "must have two decimals"},
	}}
	assert.Equal(t, []string{
		"amount: must be positive",
		"amount: must have two decimals",
		"date: is required",
	}, f.FieldErrors())
}
