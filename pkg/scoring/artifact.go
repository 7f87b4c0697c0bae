package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/admoderation/platform/pkg/common/logger"
	"gopkg.in/yaml.v3"
)

// Loader serves the model artifact at path, reloading it when the file's
// modification time changes.
type Loader struct {
	path           string
	trainIfMissing bool

	mu      sync.RWMutex
	model   *Model
	modTime int64
}

func NewLoader(path string, trainIfMissing bool) *Loader {
	return &Loader{path: path, trainIfMissing: trainIfMissing}
}

func (l *Loader) Model() (*Model, error) {
	info, err := os.Stat(l.path)
	switch {
	case err == nil:
		return l.loadIfChanged(info.ModTime().UnixNano())
	case errors.Is(err, fs.ErrNotExist):
		l.mu.RLock()
		cached := l.model
		l.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		if !l.trainIfMissing {
			return nil, fmt.Errorf("%w: artifact %s not found", ErrModelUnavailable, l.path)
		}
		return l.trainAndSave()
	default:
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
}

func (l *Loader) loadIfChanged(mod int64) (*Model, error) {
	l.mu.RLock()
	cached, cachedMod := l.model, l.modTime
	l.mu.RUnlock()
	if cached != nil && cachedMod == mod {
		return cached, nil
	}

	model, err := ReadArtifact(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	l.mu.Lock()
	l.model, l.modTime = model, mod
	l.mu.Unlock()

	logger.Log.WithFields(map[string]interface{}{
		"path":     l.path,
		"accuracy": model.Metrics.Accuracy,
	}).Info("Moderation model loaded")
	return model, nil
}

func (l *Loader) trainAndSave() (*Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}

	logger.Log.WithField("path", l.path).Warn("Model artifact not found, training a new model")
	model := TrainDefault()
	if err := WriteArtifact(l.path, model); err != nil {
		logger.Log.WithError(err).Warn("Model was trained but could not be saved")
	} else if info, err := os.Stat(l.path); err == nil {
		l.modTime = info.ModTime().UnixNano()
	}
	l.model = model
	return model, nil
}

func ReadArtifact(path string) (*Model, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var model Model
	if isYAML(path) {
		err = yaml.Unmarshal(content, &model)
	} else {
		err = json.Unmarshal(content, &model)
	}
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &model, nil
}

func WriteArtifact(path string, model *Model) error {
	var (
		content []byte
		err     error
	)
	if isYAML(path) {
		content, err = yaml.Marshal(model)
	} else {
		content, err = json.MarshalIndent(model, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
