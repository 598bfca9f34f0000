package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stella/l2switch/pkg/node"
	"github.com/stella/l2switch/pkg/switcher"
)

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the runtime and switch configuration",
		Long: `Validate the runtime config and the switch config without opening any port.

Examples:
  stella-switch validate -c stella.yaml
  stella-switch validate -s configs/switch0.cfg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("INVALID: %w", err)
			}
			sc, err := node.LoadSwitchConfig(cfg.Switch.ConfigFile)
			if err != nil {
				return fmt.Errorf("INVALID: %w", err)
			}

			names := make([]string, len(sc.Entries))
			for i, e := range sc.Entries {
				names[i] = e.Name
			}
			ports, err := sc.Ports(names)
			if err != nil {
				return fmt.Errorf("INVALID: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "VALID: switch %q bridge id %s, %d port(s), transport %s\n",
				cfg.Switch.Name, sc.BridgeID, len(ports), cfg.Transport.Type)

			members := switcher.VlanMembers(ports)
			vlans := make([]int, 0, len(members))
			for v := range members {
				vlans = append(vlans, int(v))
			}
			sort.Ints(vlans)
			for _, v := range vlans {
				fmt.Fprintf(out, "  vlan %d:", v)
				for _, idx := range members[uint16(v)] {
					fmt.Fprintf(out, " %s", ports[idx])
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
