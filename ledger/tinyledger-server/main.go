package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Register badger storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/badger_storage"
	// Register bolt storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/bolt_storage"
	// Register etcd storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/etcd_storage"
	// Register leveldb storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/leveldb_storage"
	// Register mongodb storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/mongo_storage"
	// Register redis storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/redis_storage"
	// Register sqlite, mysql and postgres storage
	_ "github.com/pingcap-incubator/tinyledger/ledger/storage/sql_storage"
)

var (
	configPath     string
	propertyValues []string
	logLevel       string

	globalContext context.Context
	globalCancel  context.CancelFunc

	globalConfig *config.Config
	globalLedger *ledger.Ledger
)

func loadConfig() (*config.Config, error) {
	conf := config.NewDefaultConfig()
	if configPath != "" {
		conf = &config.Config{}
		if err := conf.Load(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		conf.Log.Level = logLevel
	}
	return conf, nil
}

// initialGlobal loads the config, lets onConfig adjust it, then opens the store and the ledger.
func initialGlobal(onConfig func(conf *config.Config)) {
	conf, err := loadConfig()
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}
	if onConfig != nil {
		onConfig(conf)
	}
	if err := conf.SetupLogger(); err != nil {
		log.Fatal("init logger failed", zap.Error(err))
	}
	for _, msg := range conf.WarningMsgs {
		log.Warn(msg)
	}
	log.Info("load config", zap.Stringer("config", conf))

	props, err := conf.StorageProperties(propertyValues)
	if err != nil {
		log.Fatal("bad storage property", zap.Error(err))
	}
	store, err := storage.Open(conf.Storage.Engine, props)
	if err != nil {
		log.Fatal("open storage failed", zap.String("engine", conf.Storage.Engine), zap.Error(err))
	}
	l := ledger.New(store, &conf.Ledger)
	if err := l.Open(globalContext); err != nil {
		store.Stop()
		log.Fatal("open ledger failed", zap.Error(err))
	}
	globalConfig, globalLedger = conf, l
}

func handleSignal(closeDone <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Info("got signal to exit", zap.Stringer("signal", sig))
		globalCancel()

		select {
		case <-sigCh:
			log.Warn("got signal again, exit now", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(10 * time.Second):
			log.Warn("wait 10s for closed, force exit")
			os.Exit(1)
		case <-closeDone:
		}
	}()
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "tinyledger",
		Short:        "In-memory account ledger with a durable store",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path, TOML or YAML")
	rootCmd.PersistentFlags().StringSliceVarP(&propertyValues, "prop", "p", nil, "storage property with name=value")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "log level: debug, info, warn, error, fatal")

	rootCmd.AddCommand(
		newServeCommand(),
		newAccountsCommand(),
		newBalanceCommand(),
		newTransferCommand(),
		newCreateCommand(),
		newDemoCommand(),
		newShellCommand(),
	)
	return rootCmd
}

func main() {
	globalContext, globalCancel = context.WithCancel(context.Background())
	closeDone := make(chan struct{})
	handleSignal(closeDone)

	rootCmd := newRootCommand()
	cobra.EnablePrefixMatching = true
	exitCode := 0
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitCode = 1
	}

	globalCancel()
	if globalLedger != nil {
		if err := globalLedger.Close(); err != nil {
			log.Error("close ledger failed", zap.Error(err))
		}
	}
	close(closeDone)
	log.Sync()
	os.Exit(exitCode)
}
