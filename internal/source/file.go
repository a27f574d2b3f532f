package source

import (
	"context"
	"fmt"
	"os"

	"github.com/pianotech/tournee/internal/domain"
	"gopkg.in/yaml.v3"
)

type snapshotFile struct {
	Pianos []unitDTO `yaml:"pianos"`
}

// FileSource reads a YAML inventory snapshot. The file is re-read on every
// listing so edits show up on the next refresh.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) ListUnits(ctx context.Context, f Filter) ([]domain.PianoRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory snapshot: %w", err)
	}

	var snap snapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing inventory snapshot %s: %w", s.path, err)
	}
	records, err := convertUnits(snap.Pianos)
	if err != nil {
		return nil, fmt.Errorf("parsing inventory snapshot %s: %w", s.path, err)
	}
	return applyFilter(records, f), nil
}
