package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/spf13/cobra"
)

func newImportIngredientsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import-ingredients <file>",
		Short: "Load ingredients from a CSV (name,measurement_unit) or JSON file",
		Long: `Loads ingredients into the catalog. Rows already present, matched on
name and measurement unit, are skipped, so the command can be re-run safely.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readIngredientFile(args[0], format)
			if err != nil {
				return err
			}

			db, err := migratedDB()
			if err != nil {
				return err
			}
			result, err := services.NewCatalogService(db).ImportIngredients(cmd.Context(), rows)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Ingredients loaded: %d created, %d skipped\n", result.Created, result.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv or json (default: from the file extension)")
	return cmd
}

func readIngredientFile(path, format string) ([]services.IngredientInput, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case "csv":
		return parseIngredientCSV(f)
	case "json":
		return parseIngredientJSON(f)
	default:
		return nil, fmt.Errorf("unsupported ingredient file format %q (supported: csv, json)", format)
	}
}

// parseIngredientCSV reads headerless name,measurement_unit records
func parseIngredientCSV(r io.Reader) ([]services.IngredientInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	var rows []services.IngredientInput
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read ingredients csv: %w", err)
		}
		rows = append(rows, services.IngredientInput{Name: record[0], MeasurementUnit: record[1]})
	}
}

// parseIngredientJSON reads [{"name": ..., "measurement_unit": ...}]
func parseIngredientJSON(r io.Reader) ([]services.IngredientInput, error) {
	var rows []services.IngredientInput
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to read ingredients json: %w", err)
	}
	return rows, nil
}
