package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy both documents from one backend to another",
		Long: `Copy the settings and state documents between backends.

Documents are validated before writing and copied byte for byte, so keys
owned by other features survive. Missing source documents are skipped.

Examples:
  snapshotctl copy --from file --to postgres --dir ./data
  snapshotctl copy --from postgres --to file --dir ./backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			toDir, _ := cmd.Flags().GetString("to-dir")
			if from == to && (from != "file" || toDir == "") {
				return errors.New("--from and --to point at the same place")
			}

			src, closeSrc, err := sourceFromFlags(cmd, from).open(cmd.Context())
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			defer closeSrc()

			dstSource := sourceFromFlags(cmd, to)
			if toDir != "" {
				dstSource.dir = toDir
			}
			dst, closeDst, err := dstSource.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("destination: %w", err)
			}
			defer closeDst()

			out := cmd.OutOrStdout()
			copied := 0
			for _, name := range documents {
				data, err := readDoc(cmd.Context(), src, name)
				if err != nil {
					return err
				}
				if data == nil {
					fprintf(out, "- %s: missing in source, skipped\n", name)
					continue
				}
				if err := decodeDoc(name, data); err != nil {
					return fmt.Errorf("%s is invalid, nothing written for it: %w", name, err)
				}
				if err := dst.Put(cmd.Context(), name, data); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
				copied++
				fprintf(out, "✓ %s (%d bytes)\n", name, len(data))
			}
			fprintf(out, "%d document(s) copied %s → %s\n", copied, from, to)
			return nil
		},
	}
	cmd.Flags().String("from", "file", "source backend: file or postgres")
	cmd.Flags().String("to", "postgres", "destination backend: file or postgres")
	cmd.Flags().String("to-dir", "", "destination directory when --to=file (defaults to --dir)")
	return cmd
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
