// Package datasource discovers and selects network data for the viewer.
// A data directory can hold Cytoscape-style JSON exports and an aopview.db
// SQLite cache; discovery finds both, validates them, and picks the freshest
// valid one.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/aopview/pkg/model"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeJSON is a Cytoscape-style JSON element export
	SourceTypeJSON SourceType = "json"
	// SourceTypeSQLite is the aopview.db element cache
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher = more authoritative)
const (
	PriorityJSON   = 100
	PrioritySQLite = 80
)

// CacheFileName is the element cache database name inside the data directory.
const CacheFileName = "aopview.db"

// DataSource represents a potential source of network elements
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source file
	Path string `json:"path"`
	// Priority determines preference when timestamps are equal (higher = preferred)
	Priority int `json:"priority"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Valid indicates whether the source passed validation
	Valid bool `json:"valid"`
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string `json:"validation_error,omitempty"`
	// ElementCount is the number of elements in the source (set during validation)
	ElementCount int `json:"element_count"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, elements=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.ElementCount, status)
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// DataDir is the directory holding network exports and the cache
	DataDir string
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

// DiscoverSources finds all potential data sources in the data directory
func DiscoverSources(opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		if envDir := os.Getenv("AV_DATA_DIR"); envDir != "" {
			dataDir = envDir
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			dataDir = cwd
		}
	}

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering sources in: %s", dataDir))
	}

	var sources []DataSource

	cacheSources, err := discoverCacheSources(dataDir, opts)
	if err != nil && opts.Verbose {
		opts.Logger(fmt.Sprintf("Cache discovery warning: %v", err))
	}
	sources = append(sources, cacheSources...)

	jsonSources, err := discoverJSONSources(dataDir, opts)
	if err != nil && opts.Verbose {
		opts.Logger(fmt.Sprintf("JSON discovery warning: %v", err))
	}
	sources = append(sources, jsonSources...)

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i]); err != nil && opts.Verbose {
				opts.Logger(fmt.Sprintf("Validation failed for %s: %v", sources[i].Path, err))
			}
		}
	}

	if opts.ValidateAfterDiscovery && !opts.IncludeInvalid {
		var validSources []DataSource
		for _, s := range sources {
			if s.Valid {
				validSources = append(validSources, s)
			}
		}
		sources = validSources
	}

	// Freshest first; priority breaks ties.
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}

	return sources, nil
}

// discoverCacheSources finds the SQLite element cache in the data directory
func discoverCacheSources(dataDir string, opts DiscoveryOptions) ([]DataSource, error) {
	var sources []DataSource

	dbPath := filepath.Join(dataDir, CacheFileName)
	info, err := os.Stat(dbPath)
	if err == nil {
		sources = append(sources, DataSource{
			Type:     SourceTypeSQLite,
			Path:     dbPath,
			Priority: PrioritySQLite,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})
		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found cache: %s (mod=%s)", dbPath, info.ModTime().Format(time.RFC3339)))
		}
	}

	return sources, nil
}

// discoverJSONSources finds network JSON files in the data directory
func discoverJSONSources(dataDir string, opts DiscoveryOptions) ([]DataSource, error) {
	var sources []DataSource

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()

		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// Skip backups and merge artifacts
		if strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") ||
			strings.Contains(name, ".merge") {
			continue
		}

		path := filepath.Join(dataDir, name)
		info, err := e.Info()
		if err != nil {
			continue
		}

		sources = append(sources, DataSource{
			Type:     SourceTypeJSON,
			Path:     path,
			Priority: PriorityJSON,
			ModTime:  info.ModTime(),
			Size:     info.Size(),
		})

		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found JSON: %s (mod=%s)", path, info.ModTime().Format(time.RFC3339)))
		}
	}

	return sources, nil
}

// ValidateSource checks that a source can be opened and holds at least one
// well-formed element, recording the result on the source itself.
func ValidateSource(s *DataSource) error {
	fail := func(err error) error {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}

	switch s.Type {
	case SourceTypeJSON:
		data, err := os.ReadFile(s.Path)
		if err != nil {
			return fail(fmt.Errorf("cannot read file: %w", err))
		}
		els, err := model.UnmarshalElements(data)
		if err != nil {
			return fail(fmt.Errorf("cannot parse elements: %w", err))
		}
		if len(els) == 0 {
			return fail(fmt.Errorf("no elements in file"))
		}
		s.ElementCount = len(els)

	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(*s)
		if err != nil {
			return fail(err)
		}
		defer reader.Close()
		count, err := reader.CountElements()
		if err != nil {
			return fail(fmt.Errorf("cannot count elements: %w", err))
		}
		if count == 0 {
			return fail(fmt.Errorf("cache is empty"))
		}
		s.ElementCount = count

	default:
		return fail(fmt.Errorf("unknown source type: %s", s.Type))
	}

	s.Valid = true
	s.ValidationError = ""
	return nil
}

// SelectBestSource picks the freshest valid source from an already sorted
// discovery result.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, fmt.Errorf("no valid source among %d candidates", len(sources))
}
