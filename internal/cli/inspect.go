package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/kbind/internal/codec"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	EnumSource string
	Descriptor bool
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the type, length, q text and hash of a value",
		Long: `Read a value from a descriptor (YAML or JSON) or from a q IPC message
such as the bytes written by -8! or 'kbind encode', and describe it.

IPC messages do not record enum domains; pass --enum-source to name one.`,
		Example: `  kbind inspect trades.yaml
  kbind inspect trades.ipc --format json
  kbind inspect syms.ipc --enum-source sym --descriptor`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.EnumSource, "enum-source", "", "enum domain for values read from IPC")
	cmd.Flags().BoolVar(&opts.Descriptor, "descriptor", false, "print the value as a YAML descriptor")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *InspectOptions, path string) error {
	rt := opts.runtime(cmd)
	defer rt.Close()

	f := opts.formatter(cmd)
	v, input, err := readValue(rt, path, opts.EnumSource)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read value", err)
	}
	f.VerboseLog("read %s (%s)", path, input)

	info := describe(v)
	info.Input = input

	if opts.Descriptor {
		d, err := codec.Encode(v)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode descriptor", err)
		}
		if opts.Format == "json" {
			return f.Success(d)
		}
		data, err := codec.Marshal(d)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode descriptor", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if opts.Format == "json" {
		return f.Success(info)
	}
	f.Text("type:  %s (%d)", info.Type, info.QType)
	f.Text("len:   %d", info.Len)
	if info.Source != "" {
		f.Text("enum:  %s", info.Source)
	}
	f.Text("hash:  %s", info.Hash)
	f.Text("%s", info.Q)
	return nil
}
