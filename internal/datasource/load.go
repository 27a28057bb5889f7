package datasource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/aopview/pkg/model"
)

// LoadElements performs multi-source detection and loading for a data
// directory. It discovers JSON exports and the SQLite cache, validates them,
// and loads from the freshest valid source. JSON exports win ties because
// they are the authoritative network, the cache is derived.
func LoadElements(dataDir string) ([]model.Element, DataSource, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		DataDir:                dataDir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         false,
	})
	if err != nil {
		return nil, DataSource{}, err
	}
	if len(sources) == 0 {
		return nil, DataSource{}, fmt.Errorf("no valid sources in %s", dataDir)
	}

	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}

	els, err := LoadFromSource(best)
	if err != nil {
		return nil, DataSource{}, err
	}
	return els, best, nil
}

// LoadFromSource loads elements from a specific DataSource, dispatching on
// the source type.
func LoadFromSource(source DataSource) ([]model.Element, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadElements()

	case SourceTypeJSON:
		return LoadElementsFromFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}

// LoadElementsFromFile reads a Cytoscape-style JSON element export.
func LoadElementsFromFile(path string) ([]model.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	els, err := model.UnmarshalElements(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return els, nil
}

// VerifyCacheConsistency compares the freshest valid JSON export against the
// SQLite cache. It returns nil when the directory does not hold both, since
// there is nothing to drift apart.
func VerifyCacheConsistency(dataDir string) (*SourceDiff, error) {
	sources, err := DiscoverSources(DiscoveryOptions{
		DataDir:                dataDir,
		ValidateAfterDiscovery: true,
		IncludeInvalid:         false,
	})
	if err != nil {
		return nil, err
	}

	var jsonSrc, cacheSrc *DataSource
	for i := range sources {
		switch {
		case sources[i].Type == SourceTypeJSON && jsonSrc == nil:
			jsonSrc = &sources[i]
		case sources[i].Type == SourceTypeSQLite && cacheSrc == nil:
			cacheSrc = &sources[i]
		}
	}
	if jsonSrc == nil || cacheSrc == nil {
		return nil, nil
	}
	return CompareSources(*jsonSrc, *cacheSrc)
}

// WriteCache replaces the SQLite cache at the directory's standard location
// with the given elements.
func WriteCache(dataDir string, els []model.Element) error {
	w, err := NewSQLiteWriter(cachePath(dataDir))
	if err != nil {
		return err
	}
	defer w.Close()
	return w.SaveElements(els)
}

func cachePath(dataDir string) string {
	return filepath.Join(dataDir, CacheFileName)
}
