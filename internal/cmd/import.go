package cmd

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/partsync/partsync/pkg/catalog/sqlite"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/importer"
	"github.com/partsync/partsync/pkg/report"
)

var (
	importFile    string
	importFormat  string
	importDryRun  bool
	importForce   bool
	importWorkers int
	onlySuppliers []string
)

// importCmd imports one batch of identifiers.
var importCmd = &cobra.Command{
	Use:   "import [identifier...]",
	Short: "Import parts from supplier APIs into the catalog",
	Long: `Import searches the configured suppliers for each identifier
(manufacturer or supplier part number), merges the results into one
canonical record per part, and applies the minimal set of catalog
mutations. Identifiers can be given as arguments or read from a file
with --file, one per line; lines starting with # are ignored. A line
may carry a stock quantity after a comma or tab ("RC0603FR-0710KL, 500")
which overrides the supplier-reported stock for that part.`,
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	items, err := collectItems(args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.New("nothing to import: give identifiers or --file")
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	if importForce {
		env.cfg.ForceOverwrite = true
	}
	if importWorkers > 0 {
		env.cfg.Workers = importWorkers
	}

	cat, err := sqlite.Open(catalogPath)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	opts := []importer.Option{importer.WithDryRun(importDryRun)}
	if len(onlySuppliers) > 0 {
		subset, err := env.registry.Only(onlySuppliers)
		if err != nil {
			return err
		}
		opts = append(opts, importer.WithSuppliers(subset))
	}

	imp := importer.New(env.cfg, env.registry, env.taxonomy, cat, opts...)
	outcomes, err := imp.RunItems(cmd.Context(), items)
	if err != nil {
		return err
	}

	if err := report.New(report.Format(importFormat)).Render(os.Stdout, outcomes); err != nil {
		return err
	}

	summary := report.Summarize(outcomes)
	if summary.Failed > 0 {
		return errors.New("import finished with failures")
	}
	return nil
}

// collectItems merges command line identifiers with the rows from
// --file, preserving order.
func collectItems(args []string) ([]importer.Item, error) {
	items := make([]importer.Item, 0, len(args))
	for _, arg := range args {
		items = append(items, importer.Item{Identifier: arg})
	}
	if importFile == "" {
		return items, nil
	}

	f, err := os.Open(importFile)
	if err != nil {
		return nil, &errors.ConfigError{Component: "import file", Message: "cannot open", Err: err}
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		items = append(items, parseRow(line))
	}
	return items, scanner.Err()
}

// parseRow splits one batch row into an identifier and an optional stock
// quantity separated by a comma or tab.
func parseRow(line string) importer.Item {
	sep := strings.IndexAny(line, ",\t")
	if sep < 0 {
		return importer.Item{Identifier: line}
	}
	identifier := strings.TrimSpace(line[:sep])
	qty, err := strconv.Atoi(strings.TrimSpace(line[sep+1:]))
	if err != nil || identifier == "" {
		return importer.Item{Identifier: line}
	}
	return importer.Item{Identifier: identifier, Stock: qty}
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "read identifiers from a file")
	importCmd.Flags().StringVarP(&importFormat, "format", "o", "table", "output format (table, json)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "plan every item but apply nothing")
	importCmd.Flags().BoolVar(&importForce, "force", false, "overwrite non-empty catalog fields")
	importCmd.Flags().IntVar(&importWorkers, "workers", 0, "override the configured worker count")
	importCmd.Flags().StringSliceVar(&onlySuppliers, "supplier", nil, "restrict the run to these suppliers")

	rootCmd.AddCommand(importCmd)
}
