package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kbind/internal/schema"
)

// CheckResult is the outcome of checking one value against a schema.
type CheckResult struct {
	Pass       bool               `json:"pass"`
	Violations []schema.Violation `json:"violations"`
}

// NewSchemaCommand creates the schema command and its subcommands.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Compile CUE table schemas and check tables against them",
		Long: `A schema is a CUE file naming a table's columns and their types:

  columns: [
    {name: "time", type: "timestamp"},
    {name: "sym", type: "enum", source: "sym"},
    {name: "px", type: "float"},
  ]
  rows: {min: 1}`,
	}

	cmd.AddCommand(newSchemaValidateCommand(rootOpts))
	cmd.AddCommand(newSchemaCheckCommand(rootOpts))

	return cmd
}

func loadSchema(path string) (*schema.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read schema", err)
	}
	s, err := schema.Compile(path, src)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "invalid schema", err)
	}
	return s, nil
}

func newSchemaValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Compile a schema and print its columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(args[0])
			if err != nil {
				var ce *schema.CompileError
				if errors.As(err, &ce) && opts.Format == "json" {
					opts.formatter(cmd).Error("E200", ce.Message, map[string]string{
						"field":    ce.Field,
						"location": ce.Error(),
					})
				}
				return err
			}

			f := opts.formatter(cmd)
			if opts.Format == "json" {
				return f.Success(s)
			}
			for _, c := range s.Columns {
				if c.Source != "" {
					f.Text("%-16s %s over %s", c.Name, c.Type, c.Source)
				} else {
					f.Text("%-16s %s", c.Name, c.Type)
				}
			}
			return nil
		},
	}
}

func newSchemaCheckCommand(opts *RootOptions) *cobra.Command {
	var enumSource string

	cmd := &cobra.Command{
		Use:   "check <schema.cue> <table-file>",
		Short: "Check a table against a schema",
		Long: `Check the table in a descriptor or IPC file against a schema and report
every violation.

Exit codes:
  0 - The table conforms
  1 - Violations found or the schema does not compile
  2 - Command error (unreadable files, etc.)`,
		Example: `  kbind schema check trades.cue trades.yaml
  kbind schema check trades.cue trades.ipc --enum-source sym --format json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSchema(args[0])
			if err != nil {
				return err
			}

			rt := opts.runtime(cmd)
			defer rt.Close()

			v, _, err := readValue(rt, args[1], enumSource)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read value", err)
			}

			violations := s.CheckValue(v)
			result := CheckResult{Pass: len(violations) == 0, Violations: violations}
			if result.Violations == nil {
				result.Violations = []schema.Violation{}
			}

			f := opts.formatter(cmd)
			if opts.Format == "json" {
				if err := f.Success(result); err != nil {
					return err
				}
			} else {
				for _, v := range violations {
					f.Text("%s", v.Error())
				}
				if result.Pass {
					f.Text("ok: %s conforms to %s", args[1], args[0])
				}
			}

			if !result.Pass {
				return NewExitError(ExitFailure, fmt.Sprintf("%d schema violation(s)", len(violations)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&enumSource, "enum-source", "", "enum domain for values read from IPC")
	return cmd
}
