package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-perfsim/pkg/metrics"
)

// FileSource reads artifacts from a local directory
type FileSource struct {
	Dir     string
	Metrics *metrics.Registry
}

// NewFileSource creates a source for dir
func NewFileSource(dir string) *FileSource {
	return &FileSource{Dir: dir}
}

// Load reads trace.json and network.json (or their .sz forms) from the directory
func (s *FileSource) Load(ctx context.Context) (*Artifacts, error) {
	return load(ctx, s)
}

func (s *FileSource) fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if s.Metrics != nil {
		s.Metrics.RecordArtifactRead("file", len(data))
	}
	return data, nil
}

func (s *FileSource) String() string {
	return s.Dir
}
