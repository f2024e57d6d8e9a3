package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/GoPolymarket/attestgate/internal/importer"
	"github.com/GoPolymarket/attestgate/internal/repository"
	"github.com/spf13/cobra"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load historical trades from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if importFile == "" {
			return errors.New("--file is required")
		}
		if cfg.Database.AutoMigrate && cfg.Database.DSN != "" {
			if err := repository.RunMigrations(cfg.Database.DSN); err != nil {
				return err
			}
		}

		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()

		db, err := repository.NewGormDB(cfg.Database.DSN)
		if err != nil {
			return err
		}
		writer := repository.NewGormTransactionWriter(db, cfg.Database.ImportBatchSize)

		n, err := importer.New(writer, cfg.Database.ImportBatchSize).Import(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("import aborted after %d rows: %w", n, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions\n", n)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "CSV file with transaction_id,timestamp,token,amount[,protocol] columns")
}

// ExecuteImporter runs the import command as a standalone program.
func ExecuteImporter() {
	rootCmd.SetArgs(append([]string{"import"}, os.Args[1:]...))
	Execute()
}
