package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/rs/zerolog/log"
)

// Persistence handles the disk I/O for the MemStore: one JSON file per
// collection holding its documents in order.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	written map[string]uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, written: make(map[string]uint64)}, nil
}

// SaveCollection writes a collection snapshot atomically. Snapshots older
// than the last one written for the collection are dropped, so background
// saves finishing out of order never roll the file back.
func (p *Persistence) SaveCollection(name string, version uint64, entries []schema.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if version != 0 && version <= p.written[name] {
		return nil
	}

	filePath := filepath.Join(p.DataDir, name+".json")
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}

	// Write to a temporary file first, then swap it in with a rename:
	// a crash leaves either the old file or the new one.
	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return err
	}
	p.written[name] = version
	return nil
}

// LoadAll returns all collections found in the data directory.
func (p *Persistence) LoadAll() (map[string][]schema.Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string][]schema.Entry)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("Could not read collection file")
			continue // Skip unreadable files
		}

		var entries []schema.Entry
		if err := json.Unmarshal(content, &entries); err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("Could not decode collection file")
			continue
		}
		allData[name] = entries
	}
	return allData, nil
}
