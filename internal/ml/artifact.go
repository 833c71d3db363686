package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArtifactVersion guards against loading artifacts written by an
// incompatible booster.
const ArtifactVersion = 1

// Artifact is the serialized form of a fitted classifier. Consumers must not
// depend on anything beyond "fixed-order feature vector in, score out"; the
// JSON layout may change between versions.
type Artifact struct {
	Version   int       `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Model     Classifier `json:"model"`
}

// Save writes the classifier artifact to path, creating parent directories
// as needed. The write goes through a temp file and rename so a crashed run
// never leaves a half-written artifact behind.
func Save(path string, c *Classifier, trainedAt time.Time) error {
	art := Artifact{Version: ArtifactVersion, TrainedAt: trainedAt, Model: *c}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize model artifact: %w", err)
	}
	return nil
}

// Load reads a classifier artifact from path. Any failure (missing file,
// malformed JSON, version mismatch, empty ensemble) is fatal to the caller:
// no recommendation can be produced without a model.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model artifact: %w", err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("load model artifact %s: %w", path, err)
	}
	if art.Version != ArtifactVersion {
		return nil, fmt.Errorf("load model artifact %s: unsupported version %d", path, art.Version)
	}
	if len(art.Model.Trees) == 0 || len(art.Model.FeatureNames) == 0 {
		return nil, fmt.Errorf("load model artifact %s: empty model", path)
	}
	return &art.Model, nil
}
