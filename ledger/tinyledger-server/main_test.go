package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *ledger.Ledger {
	l := ledger.New(storage.NewMemStorage(), &config.NewTestConfig().Ledger)
	require.Nil(t, l.Open(context.Background()))
	return l
}

func TestRunDemo(t *testing.T) {
	l := newTestLedger(t)
	var buf bytes.Buffer
	require.Nil(t, runDemo(context.Background(), &buf, l, 4, 20, 1))

	out := buf.String()
	assert.Contains(t, out, "Transferred 100 from Alice to Bob")
	assert.Contains(t, out, "Concurrent round:")
	assert.Contains(t, out, "insufficient funds in account 1")
	assert.Equal(t, int64(800), l.TotalBalance())
}

func TestRunDemoNeedsTwoAccounts(t *testing.T) {
	conf := config.NewTestConfig().Ledger
	conf.Seed = conf.Seed[:1]
	l := ledger.New(storage.NewMemStorage(), &conf)
	require.Nil(t, l.Open(context.Background()))
	assert.NotNil(t, runDemo(context.Background(), &bytes.Buffer{}, l, 1, 1, 1))
}

func TestRenderAccounts(t *testing.T) {
	var buf bytes.Buffer
	renderAccounts(&buf, newTestLedger(t).ListAccounts())
	out := buf.String()
	assert.Contains(t, out, "BALANCE")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "500")
	assert.Contains(t, out, "Bob")
}

func TestShellCommands(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	run := func(line string) string {
		var buf bytes.Buffer
		runShellCommand(ctx, l, &buf, strings.Fields(line))
		return buf.String()
	}

	assert.Contains(t, run("transfer 1 2 100"), "Transferred 100 from 1 to 2")
	assert.Contains(t, run("balance 1"), "Alice (1): 400")
	assert.Contains(t, run("transfer 1 2 600"), "insufficient funds")
	assert.Contains(t, run("transfer 1 x 1"), "invalid account id")
	assert.Contains(t, run("create Carol 7"), "Created account 3 for Carol with 7")
	assert.Contains(t, run("total"), "Total: 807")
	assert.Contains(t, run("accounts"), "Carol")
	assert.Contains(t, run("balance"), "Error:")
	assert.Contains(t, run("transfer --retries 2 2 1 1"), "Transferred 1 from 2 to 1")
}

func TestDoTransferPreconditions(t *testing.T) {
	l := newTestLedger(t)
	var buf bytes.Buffer
	assert.Equal(t, ledger.ErrSameAccount, doTransfer(context.Background(), &buf, l, []string{"1", "1", "5"}, 0))
	assert.Equal(t, ledger.ErrInvalidAmount, doTransfer(context.Background(), &buf, l, []string{"1", "2", "-5"}, 0))
	assert.NotNil(t, doTransfer(context.Background(), &buf, l, []string{"1", "2", "ten"}, 0))
	assert.Equal(t, "", buf.String())
}
