package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davidroman0O/gowizard"
	"github.com/davidroman0O/gowizard/store"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of sequence definition files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := gowizard.SequenceDefSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return err
		},
	}
}

func newCheckCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Validate a sequence definition file",
		Long: `Loads FILE, resolves every validator and prints the steps.
With --data, the form data file is loaded too and every value is listed
with the JSON Schema type it was stored as.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := gowizard.LoadSequenceDef(args[0])
			if err != nil {
				return err
			}
			data := store.NewKVStore()
			if dataPath != "" {
				if err := loadData(dataPath, data); err != nil {
					return err
				}
			}
			seq, err := def.Build(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, successMsg("%s: %d steps", args[0], seq.Len()))

			rows := make([][]string, 0, seq.Len())
			for i, step := range def.Steps {
				validator := muted("-")
				if step.Validator != nil {
					validator = step.Validator.ID
				}
				rows = append(rows, []string{
					fmt.Sprint(i),
					step.ID,
					step.Label,
					flags(step),
					validator,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "ID", "LABEL", "FLAGS", "VALIDATOR"}, rows))

			if dataPath == "" {
				return nil
			}
			table, err := describeData(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, infoMsg("%s: %d values", dataPath, data.Count()))
			fmt.Fprintln(out, table)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "YAML file with form data to describe")
	return cmd
}

// describeData lists every value of data with its schema type.
func describeData(data *store.KVStore) (string, error) {
	values := data.Snapshot()
	rows := [][]string{}
	for _, key := range data.ListKeys() {
		schema, err := data.GetTypeSchema(key)
		if err != nil {
			return "", fmt.Errorf("describe %q: %w", key, err)
		}
		rows = append(rows, []string{key, fmt.Sprint(schema["type"]), fmt.Sprint(values[key])})
	}
	return renderTable([]string{"KEY", "TYPE", "VALUE"}, rows), nil
}

func flags(step gowizard.StepDef) string {
	var f []string
	if step.Optional {
		f = append(f, "optional")
	}
	if step.Skippable {
		f = append(f, "skippable")
	}
	if len(f) == 0 {
		return muted("-")
	}
	return strings.Join(f, ",")
}
