package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jose-valero/guild-keeper-bot/internal/domain"
)

// Nombres lógicos de los dos documentos.
const (
	DocSettings = "bot_settings"
	DocState    = "bot_state"
)

// Backend guarda documentos JSON completos por nombre.
// Get devuelve un error que cumple errors.Is(err, domain.ErrNotFound) si el documento no existe.
type Backend interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
}

// BatchGetter lo implementan los backends que leen varios documentos en una
// sola consulta. Los ausentes no aparecen en el map.
type BatchGetter interface {
	GetMany(ctx context.Context, names []string) (map[string][]byte, error)
}

// FileBackend: un archivo <name>.json por documento dentro de Dir.
type FileBackend struct {
	Dir string
}

func NewFileBackend(dir string) *FileBackend { return &FileBackend{Dir: dir} }

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.Dir, name+".json")
}

func (b *FileBackend) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Put escribe a un temporal en el mismo dir y renombra: nunca queda un documento a medias.
func (b *FileBackend) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.Dir, "."+name+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path(name))
}
