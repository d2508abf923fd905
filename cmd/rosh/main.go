package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rosh/internal/config"
)

var (
	// Version is set at build time with -ldflags.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(run).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rosh:", err)
		return 1
	}
	return 0
}

// runner starts the kernel with a resolved configuration.
type runner func(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error

// flagValues mirrors the config fields that can be set on the command line.
type flagValues struct {
	configPath string
	envFile    string
	cfg        config.Config
}

func newRootCmd(start runner) *cobra.Command {
	fv := &flagValues{cfg: config.Default()}

	root := &cobra.Command{
		Use:   "rosh",
		Short: "A cooperative micro-kernel with a shell and a persistent virtual filesystem",
		Long: `rosh runs a tick-driven process table with a FIFO message bus.
The shell reads commands from stdin; the filesystem is stored in sqlite3,
mysql, postgres or memory.

Examples:
  rosh                                  start with ./rosh.db
  rosh --driver memory --tick 50ms      throwaway session
  echo "mkdir /docs" | rosh             run a script and exit when idle
  rosh --control-addr 127.0.0.1:8080    expose the HTTP control plane`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := fv.resolve(cmd)
			if err != nil {
				return err
			}
			return start(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := root.Flags()
	f.StringVarP(&fv.configPath, "config", "c", "", "TOML config file")
	f.StringVar(&fv.envFile, "env-file", ".env", "dotenv file with ROSH_* variables (ignored when missing)")
	f.DurationVar(&fv.cfg.TickInterval, "tick", fv.cfg.TickInterval, "interval between kernel ticks")
	f.IntVar(&fv.cfg.MaxTasks, "max-tasks", fv.cfg.MaxTasks, "maximum concurrent shell tasks")
	f.IntVar(&fv.cfg.DeliveryBudget, "delivery-budget", fv.cfg.DeliveryBudget, "maximum messages delivered per tick")
	f.IntVar(&fv.cfg.DemoLifetime, "demo-lifetime", fv.cfg.DemoLifetime, "ticks a demo process lives")
	f.StringVar(&fv.cfg.Driver, "driver", fv.cfg.Driver, "storage driver: sqlite3, mysql, postgres or memory")
	f.StringVar(&fv.cfg.DSN, "dsn", fv.cfg.DSN, "storage data source name")
	f.DurationVar(&fv.cfg.StoreLatency, "store-latency", fv.cfg.StoreLatency, "simulated latency for the memory driver")
	f.StringVar(&fv.cfg.ControlAddr, "control-addr", fv.cfg.ControlAddr, "listen address for the HTTP control plane")
	f.StringVar(&fv.cfg.LogLevel, "log-level", fv.cfg.LogLevel, "log level: debug, info, warn, error")
	f.StringVar(&fv.cfg.LogFormat, "log-format", fv.cfg.LogFormat, "log format: text or json")
	f.StringVar(&fv.cfg.LogFile, "log-file", fv.cfg.LogFile, "log file path (if not set, logs to stderr)")

	root.AddCommand(newVersionCmd())
	return root
}

// resolve loads file and environment configuration, then applies the flags
// that were set explicitly.
func (fv *flagValues) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(fv.configPath, fv.envFile)
	if err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("tick", func() { cfg.TickInterval = fv.cfg.TickInterval })
	set("max-tasks", func() { cfg.MaxTasks = fv.cfg.MaxTasks })
	set("delivery-budget", func() { cfg.DeliveryBudget = fv.cfg.DeliveryBudget })
	set("demo-lifetime", func() { cfg.DemoLifetime = fv.cfg.DemoLifetime })
	set("driver", func() { cfg.Driver = fv.cfg.Driver })
	set("dsn", func() { cfg.DSN = fv.cfg.DSN })
	set("store-latency", func() { cfg.StoreLatency = fv.cfg.StoreLatency })
	set("control-addr", func() { cfg.ControlAddr = fv.cfg.ControlAddr })
	set("log-level", func() { cfg.LogLevel = fv.cfg.LogLevel })
	set("log-format", func() { cfg.LogFormat = fv.cfg.LogFormat })
	set("log-file", func() { cfg.LogFile = fv.cfg.LogFile })

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rosh version 'v%s' %s %s\n", Version, BuildDate, Commit)
		},
	}
}
