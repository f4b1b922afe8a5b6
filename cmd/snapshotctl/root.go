package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jose-valero/guild-keeper-bot/internal/infra/config"
	"github.com/jose-valero/guild-keeper-bot/internal/infra/storage"
)

var documents = []string{storage.DocSettings, storage.DocState}

// source describe de dónde leer o escribir documentos.
type source struct {
	kind        string
	dir         string
	databaseURL string
}

// open devuelve el backend y su close.
func (s source) open(ctx context.Context) (storage.Backend, func(), error) {
	switch s.kind {
	case config.BackendFile:
		return storage.NewFileBackend(s.dir), func() {}, nil
	case config.BackendPostgres:
		if s.databaseURL == "" {
			return nil, nil, errors.New("postgres backend needs --database-url or DATABASE_URL")
		}
		repo, db, err := storage.OpenSnapshotRepo(ctx, s.databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q (want file or postgres)", s.kind)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapshotctl",
		Short:         "Inspect, validate and copy guild bot snapshot documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("dir", envOr("STATE_DIR", "."), "directory of the file backend")
	cmd.PersistentFlags().String("database-url", os.Getenv("DATABASE_URL"), "Postgres DSN for the postgres backend")

	cmd.AddCommand(newInspectCmd(), newValidateCmd(), newCopyCmd(), newPruneCmd())
	return cmd
}

func sourceFromFlags(cmd *cobra.Command, kind string) source {
	dir, _ := cmd.Flags().GetString("dir")
	dsn, _ := cmd.Flags().GetString("database-url")
	return source{kind: kind, dir: dir, databaseURL: dsn}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// readDoc devuelve (nil, nil) si el documento no existe.
func readDoc(ctx context.Context, b storage.Backend, name string) ([]byte, error) {
	data, err := b.Get(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func decodeDoc(name string, data []byte) error {
	var err error
	switch name {
	case storage.DocSettings:
		_, _, err = storage.DecodeSettings(data)
	case storage.DocState:
		_, _, err = storage.DecodeState(data)
	}
	return err
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
