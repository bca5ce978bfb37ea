package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/corra-ai/corra-ai/app/core"
	"github.com/corra-ai/corra-ai/app/logic/v1/process"
	"github.com/corra-ai/corra-ai/pkg/metrics"
)

type Options struct {
	ConfigPath string
}

func (o *Options) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&o.ConfigPath, "config", "c", "", "init service by given config")
}

func NewCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "service",
		Short: "knowledge service with metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func Run(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	stop := process.StartIngestProcess(app, app.Cfg().Knowledge.ProcessConcurrency)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.DefaultExportHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	slog.Info("Service started", slog.String("addr", app.Cfg().Addr))
	return http.ListenAndServe(app.Cfg().Addr, mux)
}

func NewProcessCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "process",
		Short: "background ingestion process only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunProcess(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func RunProcess(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	stop := process.StartIngestProcess(app, app.Cfg().Knowledge.ProcessConcurrency)
	defer stop()

	fmt.Println("Process starting...")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	return nil
}

func NewInstallCommand() *cobra.Command {
	opts := &Options{}
	cmd := &cobra.Command{
		Use:   "install",
		Short: "create or migrate database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunInstall(opts)
		},
	}
	opts.AddFlags(cmd.Flags())
	return cmd
}

func RunInstall(opts *Options) error {
	app := core.MustSetupCore(core.MustLoadBaseConfig(opts.ConfigPath))
	if err := app.InstallStore(); err != nil {
		return err
	}
	fmt.Println("Install finished")
	return nil
}
