package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Shopify/ghostrouter"
	"github.com/Shopify/ghostrouter/routerd"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print the routing table",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := requireConfig(); err != nil {
		return err
	}

	config, err := routerd.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.ValidateConfig(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	actions, err := routerd.BuildActions(config.Actions)
	if err != nil {
		return err
	}
	defer routerd.CloseActions(actions)

	index, err := routerd.CompileRules(config.Schemas, actions)
	if err != nil {
		return err
	}

	return printIndex(cmd.OutOrStdout(), index)
}

func printIndex(out io.Writer, index ghostrouter.Index) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCHEMA\tTABLE\tACTION\tCOLUMNS\tFORBID\tCONDITION")

	for _, schema := range index.Schemas() {
		for _, table := range schema.Tables() {
			columns := "*"
			if table.HasColumnFilter() {
				columns = strings.Join(table.Columns(), ",")
			}

			forbid := make([]string, 0)
			for _, eventType := range table.ForbiddenMask().Types() {
				forbid = append(forbid, eventType.String())
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
				schema.Name(),
				table.Name(),
				table.Action(),
				columns,
				strings.Join(forbid, ","),
				table.Condition() != nil,
			)
		}
	}

	return w.Flush()
}
