package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/kbind/internal/kval"
)

// EncodeOptions holds flags for the encode command.
type EncodeOptions struct {
	*RootOptions
	Output string
	Enums  []string
}

// EncodeResult is the JSON payload of a successful encode.
type EncodeResult struct {
	Path  string    `json:"path"`
	Bytes int       `json:"bytes"`
	Value ValueInfo `json:"value"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EncodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encode <descriptor>",
		Short: "Write a descriptor as a q IPC message",
		Long: `Build the value a descriptor describes in a fresh runtime and write its
q IPC serialization, the bytes -9! reads back in q.

Enum atoms need their domain: pass --enum name=sym1,sym2 for each.`,
		Example: `  kbind encode trades.yaml -o trades.ipc
  kbind encode side.yaml -o side.ipc --enum side=buy,sell`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (required)")
	cmd.Flags().StringArrayVar(&opts.Enums, "enum", nil, "enum domain as name=sym1,sym2 (repeatable)")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runEncode(cmd *cobra.Command, opts *EncodeOptions, path string) error {
	rt := opts.runtime(cmd)
	defer rt.Close()

	if _, err := defineEnums(rt, opts.Enums); err != nil {
		return WrapExitError(ExitCommandError, "invalid --enum", err)
	}

	v, _, err := readValue(rt, path, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read value", err)
	}

	raw, err := kval.ToK(rt, v)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build value", err)
	}
	data, err := rt.Serialize(raw)
	rt.Unref(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to serialize value", err)
	}

	if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	f := opts.formatter(cmd)
	f.VerboseLog("wrote %s", opts.Output)
	if opts.Format == "json" {
		return f.Success(EncodeResult{Path: opts.Output, Bytes: len(data), Value: describe(v)})
	}
	f.Text("wrote %d bytes to %s (%s)", len(data), opts.Output, describe(v).Type)
	return nil
}
