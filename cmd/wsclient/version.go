package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/resilient-ws/internal/version"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, version.Version)
				return
			}

			info := version.Get()
			fmt.Fprintf(w, "Version:    %s\n", info.Version)
			fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(w, "Built:      %s\n", info.BuildTime)
			fmt.Fprintf(w, "Go version: %s\n", info.GoVersion)
			fmt.Fprintf(w, "OS/Arch:    %s\n", info.Platform)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")

	return cmd
}
