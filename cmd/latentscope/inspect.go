package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/latentscope/internal/cli"
	"github.com/aretw0/latentscope/internal/presentation/graph"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect [model.json]",
		Short: "Summarise the decoder layers",
		Long:  `Loads the decoder and prints its layers, or a Mermaid diagram (graph LR) of the layer chain with --mermaid.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			explorer, err := cli.StartExplorer(context.Background(), cli.ExplorerOptions{Config: cfg})
			if err != nil {
				return err
			}
			defer explorer.Close()

			info, ok := explorer.Info()
			if !ok {
				return fmt.Errorf("model not ready (%s)", explorer.Status().State)
			}

			out := cmd.OutOrStdout()
			if mermaid, _ := cmd.Flags().GetBool("mermaid"); mermaid {
				fmt.Fprint(out, graph.GenerateMermaid(info, nil))
				return nil
			}

			fmt.Fprintf(out, "Model:   %s\n", info.Name)
			if info.GeneratedBy != "" {
				fmt.Fprintf(out, "Source:  %s\n", info.GeneratedBy)
			}
			fmt.Fprintf(out, "Digest:  %s\n", info.Digest)
			fmt.Fprintf(out, "Input:   %d\n", info.InputDim)
			fmt.Fprintf(out, "Output:  %s\n", info.OutputShape)
			fmt.Fprintf(out, "Params:  %d\n\n", info.Params())

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LAYER\tCLASS\tACTIVATION\tOUTPUT\tPARAMS")
			for _, l := range info.Layers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%d\n", l.Name, l.Class, l.Activation, l.OutputShape, l.Params)
			}
			return tw.Flush()
		},
	}

	inspectCmd.Flags().Bool("mermaid", false, "Print a Mermaid diagram instead of the table")
	return inspectCmd
}
