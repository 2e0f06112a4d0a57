package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
)

var transferRetries uint64

func newAccountsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			initialGlobal(nil)
			renderAccounts(cmd.OutOrStdout(), globalLedger.ListAccounts())
		},
	}
}

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance id",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialGlobal(nil)
			return doBalance(cmd.OutOrStdout(), globalLedger, args)
		},
	}
}

func newTransferCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "transfer from to amount",
		Short: "Move funds from one account to another",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialGlobal(nil)
			return doTransfer(globalContext, cmd.OutOrStdout(), globalLedger, args, transferRetries)
		},
	}
	m.Flags().Uint64Var(&transferRetries, "retries", 0, "retry a failed commit this many times")
	return m
}

func newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create name balance",
		Short: "Create an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialGlobal(nil)
			return doCreate(globalContext, cmd.OutOrStdout(), globalLedger, args)
		},
	}
}

// renderAccounts writes accounts as a table.
func renderAccounts(w io.Writer, accounts []ledger.Account) {
	tb := tablewriter.NewWriter(w)
	tb.SetHeader([]string{"ID", "Name", "Balance"})
	for _, acc := range accounts {
		tb.Append([]string{
			strconv.FormatUint(acc.ID, 10),
			acc.Name,
			strconv.FormatInt(acc.Balance, 10),
		})
	}
	tb.Render()
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid account id %q", s)
	}
	return id, nil
}

func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func doBalance(w io.Writer, l *ledger.Ledger, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	acc, err := l.GetAccount(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s (%d): %d\n", acc.Name, acc.ID, acc.Balance)
	return nil
}

func doTransfer(ctx context.Context, w io.Writer, l *ledger.Ledger, args []string, retries uint64) error {
	from, err := parseID(args[0])
	if err != nil {
		return err
	}
	to, err := parseID(args[1])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	if retries > 0 {
		err = ledger.RetryTransfer(ctx, l, ledger.NewBackOff(retries), from, to, amount)
	} else {
		err = l.Transfer(ctx, from, to, amount)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Transferred %d from %d to %d\n", amount, from, to)
	return nil
}

func doCreate(ctx context.Context, w io.Writer, l *ledger.Ledger, args []string) error {
	balance, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	acc, err := l.CreateAccount(ctx, args[0], balance)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Created account %d for %s with %d\n", acc.ID, acc.Name, acc.Balance)
	return nil
}
