package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoAnalyses is returned by Latest when no call has been analyzed yet.
var ErrNoAnalyses = errors.New("no analyses recorded")

const latestFile = "latest.json"

// RecordStore persists analysis artifacts. SaveLatest must only be called
// after SaveRecord for the same call has succeeded.
type RecordStore interface {
	SaveRecord(rec Record) error
	SaveLatest(p Pointer) error
}

// FileStore keeps one JSON file per call plus a latest.json pointer under a
// single directory, created on demand.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) SaveRecord(rec Record) error {
	if err := validCallSid(rec.CallSid); err != nil {
		return err
	}
	return s.writeJSON(rec.CallSid+".json", rec)
}

func (s *FileStore) SaveLatest(p Pointer) error {
	if err := validCallSid(p.CallSid); err != nil {
		return err
	}
	return s.writeJSON(latestFile, p)
}

// Latest resolves the most recent record by reading the pointer artifact
// first, then the per-call artifact it names.
func (s *FileStore) Latest() (Record, error) {
	var p Pointer
	if err := s.readJSON(latestFile, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNoAnalyses
		}
		return Record{}, err
	}
	if err := validCallSid(p.CallSid); err != nil {
		return Record{}, err
	}
	var rec Record
	if err := s.readJSON(p.CallSid+".json", &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("latest pointer names missing record %s: %w", p.CallSid, err)
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create analyses dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// validCallSid rejects call identifiers that would escape the artifact
// directory when used as a filename.
func validCallSid(callSid string) error {
	if callSid == "" {
		return fmt.Errorf("empty call sid")
	}
	if callSid != filepath.Base(callSid) || callSid == "." || callSid == ".." {
		return fmt.Errorf("invalid call sid %q", callSid)
	}
	return nil
}
