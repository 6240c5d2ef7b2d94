package cmd

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// suppliersCmd lists the configured supplier adapters.
var suppliersCmd = &cobra.Command{
	Use:   "suppliers",
	Short: "List configured suppliers",
	Long: `List the suppliers configured in suppliers.yaml in query order.
Disabled or misconfigured suppliers are omitted, matching exactly what
an import run would use.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		table := tablewriter.NewTable(os.Stdout)
		table.Header("ID", "NAME", "CURRENCY")
		for _, s := range env.registry.All() {
			if err := table.Append(s.ID(), s.Name(), env.sup.CurrencyFor(s.ID(), env.cfg.Currency)); err != nil {
				return err
			}
		}
		return table.Render()
	},
}

func init() {
	rootCmd.AddCommand(suppliersCmd)
}
