package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
)

var (
	demoWorkers  int
	demoRounds   int
	demoUseStore bool
)

func newDemoCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "demo",
		Short: "Run transfers between the first two accounts, concurrently and over the limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initialGlobal(func(conf *config.Config) {
				if !demoUseStore {
					conf.Storage.Engine = "memory"
				}
			})
			return runDemo(globalContext, cmd.OutOrStdout(), globalLedger, demoWorkers, demoRounds, time.Now().UnixNano())
		},
	}
	m.Flags().IntVar(&demoWorkers, "workers", 5, "concurrent transfer goroutines")
	m.Flags().IntVar(&demoRounds, "rounds", 10, "transfers per goroutine")
	m.Flags().BoolVar(&demoUseStore, "use-store", false, "run against the configured store instead of memory")
	return m
}

type demoStats struct {
	committed    atomic.Int64
	insufficient atomic.Int64
	failed       atomic.Int64
}

// runDemo walks through a fixed transfer, a round of racing transfers and a transfer the sender cannot cover,
// checking after each step that no money appeared or vanished.
func runDemo(ctx context.Context, w io.Writer, l *ledger.Ledger, workers, rounds int, seed int64) error {
	accounts := l.ListAccounts()
	if len(accounts) < 2 {
		return errors.New("demo needs at least two accounts")
	}
	a, b := accounts[0], accounts[1]
	total := l.TotalBalance()

	printBalances := func(step string) error {
		fmt.Fprintf(w, "== %s\n", step)
		renderAccounts(w, l.ListAccounts())
		if got := l.TotalBalance(); got != total {
			return errors.Errorf("total balance changed from %d to %d", total, got)
		}
		return nil
	}
	if err := printBalances("initial balances"); err != nil {
		return err
	}

	if err := l.Transfer(ctx, a.ID, b.ID, 100); err != nil {
		fmt.Fprintf(w, "Transfer 100 from %s to %s failed: %v\n", a.Name, b.Name, err)
	} else {
		fmt.Fprintf(w, "Transferred 100 from %s to %s\n", a.Name, b.Name)
	}
	if err := printBalances("after single transfer"); err != nil {
		return err
	}

	var (
		wg    sync.WaitGroup
		stats demoStats
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(r *rand.Rand) {
			defer wg.Done()
			for j := 0; j < rounds && ctx.Err() == nil; j++ {
				from, to := a.ID, b.ID
				if r.Intn(2) == 1 {
					from, to = to, from
				}
				err := l.Transfer(ctx, from, to, r.Int63n(100)+1)
				switch errors.Cause(err).(type) {
				case nil:
					stats.committed.Inc()
				case *ledger.ErrInsufficientFunds:
					stats.insufficient.Inc()
				default:
					stats.failed.Inc()
				}
			}
		}(rand.New(rand.NewSource(seed + int64(i))))
	}
	wg.Wait()
	fmt.Fprintf(w, "Concurrent round: %d committed, %d insufficient funds, %d failed\n",
		stats.committed.Load(), stats.insufficient.Load(), stats.failed.Load())
	if err := printBalances("after concurrent transfers"); err != nil {
		return err
	}

	sender, err := l.GetAccount(a.ID)
	if err != nil {
		return err
	}
	amount := int64(600)
	if sender.Balance >= amount {
		amount = sender.Balance + 1
	}
	before := l.ListAccounts()
	err = l.Transfer(ctx, a.ID, b.ID, amount)
	if _, ok := errors.Cause(err).(*ledger.ErrInsufficientFunds); !ok {
		return errors.Errorf("transfer of %d from %s should be rejected, got %v", amount, a.Name, err)
	}
	fmt.Fprintf(w, "Transfer %d from %s to %s rejected: %v\n", amount, a.Name, b.Name, err)
	if err := printBalances("after rejected transfer"); err != nil {
		return err
	}
	after := l.ListAccounts()
	for i := range before {
		if before[i] != after[i] {
			return errors.Errorf("account %d changed by a rejected transfer", before[i].ID)
		}
	}
	return nil
}
