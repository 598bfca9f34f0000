package main

import (
	"github.com/spf13/cobra"

	"github.com/stella/l2switch/pkg/node"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile       string
	switchConfigFile string
	logLevel         string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "stella-switch",
		Short: "Stella - software L2 switch with VLANs and spanning tree",
		Long: `Stella is a software Ethernet switch. It learns MAC addresses, keeps
access ports of different VLANs apart, tags frames crossing trunk links and
runs a simplified spanning tree so that redundant trunks do not loop.

Ports are attached through a transport: host interfaces (raw), UDP virtual
cables between switch processes (udp) or in-process links (memory).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "",
		"runtime config file (YAML); defaults apply when empty")
	rootCmd.PersistentFlags().StringVarP(&flags.switchConfigFile, "switch-config", "s", "",
		"switch config file (bridge priority and port VLANs), overrides switch.config_file")
	rootCmd.PersistentFlags().StringVarP(&flags.logLevel, "log-level", "l", "",
		"log level (trace, debug, info, warn, error), overrides log.level")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newValidateCmd(flags))
	rootCmd.AddCommand(newConfigCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads the runtime config and applies command-line overrides
func (f *globalFlags) loadConfig() (*node.Config, error) {
	cfg, err := node.LoadConfig(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.switchConfigFile != "" {
		cfg.Switch.ConfigFile = f.switchConfigFile
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
