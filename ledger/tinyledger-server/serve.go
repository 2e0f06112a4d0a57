package main

import (
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/ledger/server"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

func newServeCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCommandFunc,
	}
	m.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides [server] addr")
	return m
}

func runServeCommandFunc(cmd *cobra.Command, args []string) error {
	initialGlobal(func(conf *config.Config) {
		if serveAddr != "" {
			conf.Server.Addr = serveAddr
		}
	})

	svr := server.NewServer(&globalConfig.Server, globalLedger)
	go func() {
		<-globalContext.Done()
		if err := svr.Stop(); err != nil {
			log.Error("stop server failed", zap.Error(err))
		}
	}()
	if err := svr.ListenAndServe(); err != nil {
		return err
	}
	log.Info("Server stopped.")
	return nil
}
