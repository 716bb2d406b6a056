package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect <journal>",
	Aliases: []string{"i"},
	Short:   "Prints the last routing table recorded in a node journal",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) == 0 || lines[0] == "" {
			return fmt.Errorf("%s has no recorded table", args[0])
		}
		if all, _ := cmd.Flags().GetBool("all"); !all {
			lines = lines[len(lines)-1:]
		}
		for i, line := range lines {
			if i != 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			err = printTable(cmd.OutOrStdout(), line)
			if err != nil {
				return err
			}
		}
		return nil
	},
	GroupID: "tools",
}

func printTable(out io.Writer, line string) error {
	routes, err := state.ParseRoutes(line)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEST\tCOST\tVIA")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%d\t%s\n", r.Dest, r.Cost, r.NextHop)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolP("all", "a", false, "print every recorded table, oldest first")
}
