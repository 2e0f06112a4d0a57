package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-shellwords"
	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive ledger shell",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			initialGlobal(nil)
			shellLoop(globalContext, globalLedger, cmd.OutOrStdout())
		},
	}
}

func runShellCommand(ctx context.Context, l *ledger.Ledger, w io.Writer, args []string) {
	cmd := &cobra.Command{
		Use:           "shell",
		Short:         "Ledger shell command",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(w)
	cmd.SetErr(w)
	cmd.SetArgs(args)

	var retries uint64
	transferCmd := &cobra.Command{
		Use:   "transfer from to amount",
		Short: "Move funds from one account to another",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doTransfer(ctx, w, l, args, retries)
		},
		DisableFlagsInUseLine: true,
	}
	transferCmd.Flags().Uint64Var(&retries, "retries", 0, "retry a failed commit this many times")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "accounts",
			Short: "List all accounts",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				renderAccounts(w, l.ListAccounts())
			},
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:   "balance id",
			Short: "Print the balance of an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return doBalance(w, l, args)
			},
			DisableFlagsInUseLine: true,
		},
		transferCmd,
		&cobra.Command{
			Use:   "create name balance",
			Short: "Create an account",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return doCreate(ctx, w, l, args)
			},
			DisableFlagsInUseLine: true,
		},
		&cobra.Command{
			Use:   "total",
			Short: "Print the sum of all balances",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(w, "Total: %d\n", l.TotalBalance())
			},
			DisableFlagsInUseLine: true,
		},
	)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

func shellLoop(ctx context.Context, l *ledger.Ledger, w io.Writer) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[32mledger»\033[0m ",
		HistoryFile:       "/tmp/tinyledger_readline.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		log.Fatal("init readline failed", zap.Error(err))
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				return
			} else if err == io.EOF {
				return
			}
			continue
		}
		line = strings.TrimSpace(line)
		if line == "exit" {
			return
		}
		if line == "" {
			continue
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			continue
		}
		runShellCommand(ctx, l, w, args)
		if ctx.Err() != nil {
			return
		}
	}
}
