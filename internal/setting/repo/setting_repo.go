package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ovaphlow/pitchfork/service-fusion-go/internal/setting/entity"
)

// FileRepo reads and writes the application config file. The format is
// chosen by extension: .yaml/.yml is YAML, anything else JSON.
type FileRepo struct {
	path string
}

// NewFileRepo constructs a FileRepo for the given path.
func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Path() string { return r.path }

func (r *FileRepo) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(r.path))
	return ext == ".yaml" || ext == ".yml"
}

// Load returns the parsed config, or (nil, nil) when the file does not exist.
func (r *FileRepo) Load() (*entity.AppConfig, error) {
	if r.path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	var cfg entity.AppConfig
	if r.isYAML() {
		err = yaml.Unmarshal(b, &cfg)
	} else {
		err = json.Unmarshal(b, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.path, err)
	}
	return &cfg, nil
}

// Save writes the config, creating parent directories as needed.
func (r *FileRepo) Save(cfg *entity.AppConfig) error {
	var (
		b   []byte
		err error
	)
	if r.isYAML() {
		b, err = yaml.Marshal(cfg)
	} else {
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(r.path, append(b, '\n'), 0o644)
}
