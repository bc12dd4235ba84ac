package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/kbind/internal/codec"
	"github.com/roach88/kbind/internal/store"
)

// StoreOptions holds flags shared by the store subcommands.
type StoreOptions struct {
	*RootOptions
	DBPath string
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage a catalog of named values",
		Long: `Keep named values in a SQLite catalog. Values are stored as q IPC
messages together with their type, length, q text and content hash.`,
		Example: `  kbind store put trades trades.yaml --db ./values.db
  kbind store list --db ./values.db
  kbind store get trades --db ./values.db --descriptor`,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite catalog (required)")
	cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newStorePutCommand(opts))
	cmd.AddCommand(newStoreGetCommand(opts))
	cmd.AddCommand(newStoreListCommand(opts))
	cmd.AddCommand(newStoreDeleteCommand(opts))
	cmd.AddCommand(newStoreFindCommand(opts))
	cmd.AddCommand(newStoreEnumCommand(opts))

	return cmd
}

func (o *StoreOptions) open() (*store.Store, error) {
	st, err := store.Open(o.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	return st, nil
}

// storeError maps a catalog error onto an exit error.
func storeError(message string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func newStorePutCommand(opts *StoreOptions) *cobra.Command {
	var enumSource string

	cmd := &cobra.Command{
		Use:   "put <name> <file>",
		Short: "Store the value in a descriptor or IPC file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := opts.runtime(cmd)
			defer rt.Close()

			f := opts.formatter(cmd)
			v, input, err := readValue(rt, args[1], enumSource)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read value", err)
			}
			f.VerboseLog("read %s (%s)", args[1], input)

			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			e, err := st.Put(cmd.Context(), args[0], v)
			if err != nil {
				return storeError("failed to store value", err)
			}
			f.VerboseLog("stored %s in %s", e.Name, opts.DBPath)

			if opts.Format == "json" {
				return f.Success(e)
			}
			f.Text("%s: %s, %d bytes (seq %d)", e.Name, e.Type, e.Size, e.Seq)
			return nil
		},
	}
	cmd.Flags().StringVar(&enumSource, "enum-source", "", "enum domain for values read from IPC")
	return cmd
}

func newStoreGetCommand(opts *StoreOptions) *cobra.Command {
	var descriptor bool

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			v, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return storeError("failed to read value", err)
			}
			f := opts.formatter(cmd)
			f.VerboseLog("loaded %s from %s", args[0], opts.DBPath)
			if descriptor {
				d, err := codec.Encode(v)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to encode descriptor", err)
				}
				if opts.Format == "json" {
					return f.Success(d)
				}
				data, err := codec.Marshal(d)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to encode descriptor", err)
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			info := describe(v)
			info.Name = args[0]
			if opts.Format == "json" {
				return f.Success(info)
			}
			f.Text("%s", info.Q)
			return nil
		},
	}
	cmd.Flags().BoolVar(&descriptor, "descriptor", false, "print the value as a YAML descriptor")
	return cmd
}

func newStoreListCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored values in write order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.List(cmd.Context())
			if err != nil {
				return storeError("failed to list values", err)
			}
			return printEntries(opts.formatter(cmd), entries)
		},
	}
}

func newStoreFindCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "find <hash>",
		Short: "List stored values with a content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.FindByHash(cmd.Context(), args[0])
			if err != nil {
				return storeError("failed to search values", err)
			}
			return printEntries(opts.formatter(cmd), entries)
		},
	}
}

func printEntries(f *OutputFormatter, entries []store.Entry) error {
	if f.Format == "json" {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		f.Text("No values stored.")
		return nil
	}
	for _, e := range entries {
		f.Text("%-4d %-16s %-10s %6d  %s", e.Seq, e.Name, e.Type, e.Len, e.Hash[:12])
	}
	return nil
}

func newStoreDeleteCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return storeError("failed to delete value", err)
			}

			f := opts.formatter(cmd)
			if opts.Format == "json" {
				return f.Success(map[string]string{"deleted": args[0]})
			}
			f.Text("deleted %s", args[0])
			return nil
		},
	}
}

func newStoreEnumCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enum <name> [symbol...]",
		Short: "Define an enum domain",
		Long: `Store an enum domain so enum values over it can be stored and read back.
Defining an existing domain replaces it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			name, syms := args[0], args[1:]
			if err := st.DefineEnum(cmd.Context(), name, syms); err != nil {
				return storeError("failed to define enum", err)
			}

			f := opts.formatter(cmd)
			if opts.Format == "json" {
				return f.Success(map[string]any{"enum": name, "symbols": syms})
			}
			f.Text("enum %s: %d symbols", name, len(syms))
			return nil
		},
	}
}

