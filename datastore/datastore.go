// Package datastore is a JSON-file document collection: documents are opaque
// JSON values addressed by (kind, id). Writes are atomic (temp file plus
// rename), saves are skipped when the checksum is unchanged, and a small set
// of timestamped backups is kept.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds datastore options.
type Config struct {
	FilePath         string
	AutoSaveInterval time.Duration
	BackupCount      int
	Logger           zerolog.Logger
}

// DefaultConfig returns the configuration used when only a path is given.
func DefaultConfig(filePath string) *Config {
	return &Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		BackupCount:      3,
		Logger:           zerolog.Nop(),
	}
}

// ErrExists is returned by Insert when the document is already present.
var ErrExists = fmt.Errorf("datastore: document already exists")

// Store is the in-memory collection with file persistence. Kind buckets map
// document ids to raw JSON payloads.
type Store struct {
	mu           sync.RWMutex
	data         map[string]map[string]json.RawMessage
	lastChecksum string

	file   string
	config *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeMu sync.Mutex
	closed  bool
}

// New opens (or creates) a store at filePath with default configuration.
func New(filePath string) (*Store, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig opens (or creates) a store with the given configuration and
// starts the autosave routine.
func NewWithConfig(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("datastore: config cannot be nil")
	}
	if config.FilePath == "" {
		return nil, fmt.Errorf("datastore: file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("datastore: create directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		data:   make(map[string]map[string]json.RawMessage),
		file:   config.FilePath,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := os.Stat(config.FilePath); os.IsNotExist(err) {
		if err := s.writeFileAtomic([]byte("{}")); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: create empty file: %w", err)
		}
	} else if err == nil {
		if err := s.loadFromFile(); err != nil {
			cancel()
			return nil, fmt.Errorf("datastore: load: %w", err)
		}
	} else {
		cancel()
		return nil, fmt.Errorf("datastore: stat: %w", err)
	}

	if config.AutoSaveInterval > 0 {
		s.wg.Add(1)
		go s.autoSave()
	}
	return s, nil
}

// Find returns the raw document for (kind, id), if present.
func (s *Store) Find(kind, id string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[kind][id]
	return raw, ok, nil
}

// Insert adds a new document; it fails with ErrExists when (kind, id) is
// already present.
func (s *Store) Insert(kind, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("datastore: marshal %s/%s: %w", kind, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[kind][id]; ok {
		return ErrExists
	}
	s.put(kind, id, raw)
	return nil
}

// Upsert inserts or fully replaces the document at (kind, id). No
// partial-field updates happen at this layer; the caller owns the whole
// document.
func (s *Store) Upsert(kind, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("datastore: marshal %s/%s: %w", kind, id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(kind, id, raw)
	return nil
}

// Delete removes the document at (kind, id), if present.
func (s *Store) Delete(kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.data[kind]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(s.data, kind)
		}
	}
	return nil
}

// IDs returns the ids of every document of a kind, sorted.
func (s *Store) IDs(kind string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data[kind]))
	for id := range s.data[kind] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) put(kind, id string, raw json.RawMessage) {
	bucket := s.data[kind]
	if bucket == nil {
		bucket = make(map[string]json.RawMessage)
		s.data[kind] = bucket
	}
	bucket[id] = raw
}

// Save forces an immediate save to disk.
func (s *Store) Save() error {
	return s.saveToFile()
}

// Close stops the autosave routine and performs a final save.
func (s *Store) Close() error {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		return nil
	}
	s.closed = true
	s.closeMu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.saveToFile()
}

func (s *Store) saveToFile() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("datastore: marshal: %w", err)
	}

	sum := checksum(data)
	if sum == s.lastChecksum {
		return nil
	}

	if s.config.BackupCount > 0 {
		if err := s.createBackup(); err != nil {
			s.config.Logger.Warn().Err(err).Msg("backup failed")
		}
	}
	if err := s.writeFileAtomic(data); err != nil {
		return err
	}
	s.lastChecksum = sum
	return nil
}

func (s *Store) loadFromFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	var loaded map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if loaded == nil {
		loaded = make(map[string]map[string]json.RawMessage)
	}
	s.data = loaded
	s.lastChecksum = checksum(data)
	return nil
}

func (s *Store) writeFileAtomic(data []byte) error {
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	f, err := os.OpenFile(tmp, os.O_RDWR, 0644)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("open temp file for sync: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmp, s.file); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) createBackup() error {
	if _, err := os.Stat(s.file); os.IsNotExist(err) {
		return nil
	}
	backup := fmt.Sprintf("%s.backup.%s", s.file, time.Now().Format("20060102_150405"))

	src, err := os.Open(s.file)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(backup)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	s.cleanupOldBackups()
	return nil
}

func (s *Store) cleanupOldBackups() {
	matches, err := filepath.Glob(s.file + ".backup.*")
	if err != nil || len(matches) <= s.config.BackupCount {
		return
	}
	type backupFile struct {
		path    string
		modTime time.Time
	}
	var files []backupFile
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			files = append(files, backupFile{m, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	for i := 0; i < len(files)-s.config.BackupCount; i++ {
		os.Remove(files[i].path)
	}
}

func (s *Store) autoSave() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.AutoSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.saveToFile(); err != nil {
				s.config.Logger.Error().Err(err).Msg("autosave failed")
			}
		}
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
