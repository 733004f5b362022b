// Package definition loads YAML model documents, validates them, builds
// inheritance-resolved snapshots, and serves them per version key with an
// atomic pointer swap.
package definition

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tessera-io/tessera/model"
)

// Source supplies named model documents. A source is either a filesystem
// directory or an in-memory name→content map (used for ad-hoc version
// publishing).
type Source interface {
	// Documents returns document contents keyed by name, e.g. file path.
	Documents() (map[string][]byte, error)
}

// DirSource reads every *.yaml / *.yml file under one or more directories.
type DirSource struct {
	Directories []string
}

// Documents implements Source.
func (s DirSource) Documents() (map[string][]byte, error) {
	docs := make(map[string][]byte)
	for _, dir := range s.Directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			docs[path] = data
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}
	return docs, nil
}

// MapSource serves documents from memory.
type MapSource map[string]string

// Documents implements Source.
func (s MapSource) Documents() (map[string][]byte, error) {
	docs := make(map[string][]byte, len(s))
	for name, content := range s {
		docs[name] = []byte(content)
	}
	return docs, nil
}

// Loader parses model sources into documents, computing per-document SHA-256
// checksums.
type Loader struct{}

// NewLoader creates a new model Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads all documents from the source, in name order for determinism.
func (l *Loader) Load(src Source) ([]model.ModelDocument, error) {
	raw, err := src.Documents()
	if err != nil {
		return nil, model.NewModelParseError(err.Error(), "").WithCause(err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]model.ModelDocument, 0, len(names))
	for _, name := range names {
		doc, err := l.parse(name, raw[name])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// parse unmarshals a single document and records its checksum and origin.
func (l *Loader) parse(name string, data []byte) (model.ModelDocument, error) {
	var doc model.ModelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.ModelDocument{}, model.NewModelParseError(
			fmt.Sprintf("parsing %s: %v", name, err), name,
		).WithCause(err)
	}

	doc.Checksum = fmt.Sprintf("%x", sha256.Sum256(data))
	doc.SourceName = name
	return doc, nil
}
