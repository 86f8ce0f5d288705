package main

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/ledger"
)

func TestPrintSummary(t *testing.T) {
	book := ledger.NewBook()
	acc, err := book.CreateAccount(ledger.AccountInput{Name: "Bank", Type: ledger.AccountBank, Balance: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	_, err = book.OpenInstrument(ledger.InstrumentInput{
		AccountID: acc.ID, Kind: ledger.InstrumentCredit, Beneficiary: "Ana",
		Principal: decimal.NewFromInt(500), Rate: decimal.NewFromInt(10), InvestedAt: ledger.NewDate(2025, 1, 1),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, book))

	out := buf.String()
	assert.Contains(t, out, "Bank")
	assert.Contains(t, out, "$1,000.00")
	assert.Contains(t, out, "credito / Ana")
	assert.Contains(t, out, "$500.00")
	assert.Contains(t, out, "$50.00")
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	configPath, portFlag, dbFlag = "", 3000, ":memory:"
	defer func() { configPath, portFlag, dbFlag = "finance.toml", 0, "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Server.DB)
}
