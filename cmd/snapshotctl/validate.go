package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that both documents decode and pass validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("backend")
			b, closeFn, err := sourceFromFlags(cmd, kind).open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			var errs []error
			for _, name := range documents {
				data, err := readDoc(cmd.Context(), b, name)
				switch {
				case err != nil:
					errs = append(errs, err)
					fprintf(out, "✗ %s: %v\n", name, err)
				case data == nil:
					fprintf(out, "- %s: missing (defaults apply)\n", name)
				default:
					if err := decodeDoc(name, data); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", name, err))
						fprintf(out, "✗ %s: %v\n", name, err)
						continue
					}
					fprintf(out, "✓ %s\n", name)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().String("backend", "file", "backend to read: file or postgres")
	return cmd
}
