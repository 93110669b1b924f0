package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yanet-platform/kniagent/agent"
	"github.com/yanet-platform/kniagent/agent/internal/eal"
	"github.com/yanet-platform/kniagent/agent/internal/topology"
	"github.com/yanet-platform/kniagent/common/go/logging"
	"github.com/yanet-platform/kniagent/common/go/portmask"
)

var cmd Cmd

// Cmd is the command line arguments.
type Cmd struct {
	// RuntimeArgs are the runtime environment options preceding "--".
	RuntimeArgs []string
	// PortMask is the hexadecimal mask of enabled ports.
	PortMask string
	// Promiscuous enables promiscuous mode on all ports.
	Promiscuous bool
	// Topology is the port to core assignment in the
	// "(port,rx_core,tx_core[,kthread_core...])[,...]" form.
	Topology string
	// SettingsPath is the path to the YAML settings file.
	SettingsPath string
	// LogLevel overrides the logging level from settings.
	LogLevel string
	// MetricsAddr overrides the metrics endpoint from settings.
	MetricsAddr string
}

var rootCmd = newRootCmd(&cmd)

func newRootCmd(cmd *Cmd) *cobra.Command {
	c := &cobra.Command{
		Use:   "kni-agent [RUNTIME OPTIONS --] -p PORTMASK [-P] --config \"(port,rx_core,tx_core[,kthread_core,...])[,...]\"",
		Short: "KNI agent bridging physical ports to the host network stack",
		Long: `KNI agent bridging physical ports to the host network stack.

Runtime options (-l, -c, --main-lcore, -n, --file-prefix) go before "--".

Signals:
  SIGUSR1            print port statistics
  SIGUSR2            reset port statistics
  SIGINT, SIGTERM,
  SIGRTMIN           stop`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		Run: func(rawCmd *cobra.Command, _ []string) {
			if err := run(*cmd); err != nil {
				fail(rawCmd, err)
			}
		},
	}

	c.Flags().StringVarP(&cmd.PortMask, "portmask", "p", "", "Hexadecimal bitmask of ports to configure")
	c.Flags().BoolVarP(&cmd.Promiscuous, "promiscuous", "P", false, "Enable promiscuous mode on all ports")
	c.Flags().StringVar(&cmd.Topology, "config", "", "Port to core assignment (required)")
	c.Flags().StringVar(&cmd.SettingsPath, "settings", "", "Path to the YAML settings file")
	c.Flags().StringVar(&cmd.LogLevel, "log-level", "", "Logging level, overrides settings")
	c.Flags().StringVar(&cmd.MetricsAddr, "metrics-addr", "", "Prometheus endpoint address, overrides settings")
	c.MarkFlagRequired("config")

	return c
}

func main() {
	runtimeArgs, appArgs, err := splitArgs(os.Args[1:])
	if err != nil {
		fail(rootCmd, fmt.Errorf("invalid runtime options: %w", err))
	}

	cmd.RuntimeArgs = runtimeArgs
	rootCmd.SetArgs(appArgs)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// fail prints the error followed by the usage and exits with status 1.
func fail(c *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	if err := c.Usage(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: failed to print usage: %v\n", err)
	}
	os.Exit(1)
}

// splitArgs separates runtime options, which end with "--", from the
// application arguments. Without "--" every argument belongs to the
// application.
func splitArgs(args []string) ([]string, []string, error) {
	sep := slices.Index(args, "--")
	if sep < 0 {
		return nil, args, nil
	}

	_, consumed, err := eal.ParseArgs(args[:sep+1])
	if err != nil {
		return nil, nil, err
	}
	if consumed != sep+1 {
		return nil, nil, fmt.Errorf("unexpected argument %q before \"--\"", args[consumed])
	}

	return args[:sep+1], args[sep+1:], nil
}

func run(cmd Cmd) error {
	cfg := agent.DefaultConfig()
	if cmd.SettingsPath != "" {
		loaded, err := agent.LoadConfig(cmd.SettingsPath)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		cfg = loaded
	}
	if cmd.LogLevel != "" {
		level, err := zapcore.ParseLevel(cmd.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg.Logging.Level = level
	}
	if cmd.MetricsAddr != "" {
		cfg.MetricsAddr = cmd.MetricsAddr
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	runtime, _, err := eal.Init(cmd.RuntimeArgs,
		eal.WithLog(log),
		eal.WithPinning(cfg.PinWorkers),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime environment: %w", err)
	}

	mask := portmask.PortMask(0)
	if cmd.PortMask != "" {
		mask, err = portmask.Parse(cmd.PortMask)
		if err != nil {
			return fmt.Errorf("invalid portmask: %w", err)
		}
	}

	table, err := topology.Parse(cmd.Topology, cfg.Limits)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := table.Validate(mask, runtime.Enabled()); err != nil {
		return fmt.Errorf("invalid config for portmask %s: %w", mask, err)
	}
	if unmasked := table.Unmasked(mask); len(unmasked) > 0 {
		log.Warnw("ignoring configured ports outside of the portmask",
			zap.Stringer("portmask", mask),
			zap.Uint32s("ports", unmasked),
		)
	}

	dump := &bytes.Buffer{}
	if err := table.Dump(dump); err != nil {
		return fmt.Errorf("failed to dump port topology: %w", err)
	}
	log.Infof("port topology:\n%s", dump)
	log.Infow("port settings",
		zap.Stringer("portmask", mask),
		zap.Bool("promiscuous", cmd.Promiscuous),
		zap.Int("ports", table.Len()),
	)

	a, err := agent.NewAgent(cfg, table, runtime, agent.WithLog(log))
	if err != nil {
		return fmt.Errorf("failed to initialize agent: %w", err)
	}

	return a.Run(context.Background())
}
