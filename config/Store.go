package config

import (
	"fmt"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/tidwall/wal"
	lock "github.com/viney-shih/go-lock"
)

// ParameterFile is the name of the parameter journal inside the data
// directory
const ParameterFile = "learner-parameters"

// Record is a persisted learner configuration
type Record struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ParameterStore is an append-only journal of learner configurations.
// Every Save appends a Record and truncates the ones before it, so the
// journal holds the latest Record once the write completes.
type ParameterStore struct {
	latch lock.Mutex
	log   *wal.Log
	path  string
}

// OpenParameterStore opens, creating if needed, the parameter journal in
// dirData
func OpenParameterStore(dirData string) (*ParameterStore, error) {
	path := filepath.Join(dirData, ParameterFile)

	log, err := wal.Open(path, nil)
	if err != nil {
		return nil, fmt.Errorf("config: openParameterStore: %w", err)
	}

	return &ParameterStore{
		latch: lock.NewCASMutex(),
		log:   log,
		path:  path,
	}, nil
}

// Load returns the latest Record. If nothing was ever saved, Load
// returns false.
func (s *ParameterStore) Load() (Record, bool, error) {
	s.latch.Lock()
	defer s.latch.Unlock()

	last, err := s.log.LastIndex()
	if err != nil {
		return Record{}, false, fmt.Errorf("config: load: %w", err)
	}
	if last == 0 {
		return Record{}, false, nil
	}

	data, err := s.log.Read(last)
	if err != nil {
		return Record{}, false, fmt.Errorf("config: load: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, false, fmt.Errorf("config: load: record %d: %w",
			last, err)
	}
	return r, true, nil
}

// Save appends r to the journal and drops older Records
func (s *ParameterStore) Save(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}

	s.latch.Lock()
	defer s.latch.Unlock()

	last, err := s.log.LastIndex()
	if err != nil {
		return fmt.Errorf("config: save: %w", err)
	}

	index := last + 1
	if err := s.log.Write(index, data); err != nil {
		return fmt.Errorf("config: save: %w", err)
	}
	if index > 1 {
		if err := s.log.TruncateFront(index); err != nil {
			return fmt.Errorf("config: save: %w", err)
		}
	}
	return nil
}

// Path returns the location of the journal
func (s *ParameterStore) Path() string {
	return s.path
}

// Close closes the journal
func (s *ParameterStore) Close() error {
	return s.log.Close()
}
