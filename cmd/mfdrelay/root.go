package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mfdrelay",
		Short: "Streams cockpit MFD/MFCD displays to browsers over WebRTC and relays DCS-BIOS controls",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to mfdrelay.yaml (defaults to the platform config directory)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relay version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version)
			return nil
		},
	}
}
