package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/latentscope"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of latentscope",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "latentscope version %s\n", strings.TrimSpace(latentscope.Version))
		},
	}
}
