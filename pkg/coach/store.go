package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ReportStore persists feedback reports. Saved reports are never modified.
type ReportStore interface {
	Save(ctx context.Context, report *FeedbackReport) error
	List(ctx context.Context) ([]*FeedbackReport, error)
	Get(ctx context.Context, id string) (*FeedbackReport, error)
	Close() error
}

// OpenStore picks the backend configured in cfg
func OpenStore(cfg *Config) (ReportStore, error) {
	switch cfg.StoreBackend {
	case StoreBackendFile, "":
		return NewFileStore(cfg.StorePath)
	case StoreBackendSQLite:
		return NewSQLiteStore(cfg.StorePath)
	default:
		return nil, NewConfigError(fmt.Sprintf("unknown store backend %q", cfg.StoreBackend))
	}
}

func notFound(id string) *CoachError {
	return NewCoachError(fmt.Sprintf("report %s not found", id), ErrCodeNotFound).AddDetail("id", id)
}

func checkReport(report *FeedbackReport) error {
	if report == nil || report.ID == "" {
		return NewStorageError("report needs an id")
	}
	return nil
}

// FileStore keeps all reports as one JSON array in a single file.
// Each Save rewrites the file atomically with the new report appended.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, NewConfigError("file store needs a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, Wrapf(err, ErrCodeStorage, "create report directory")
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() ([]*FeedbackReport, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*FeedbackReport{}, nil
	}
	if err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "read reports")
	}
	if len(data) == 0 {
		return []*FeedbackReport{}, nil
	}
	var reports []*FeedbackReport
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, Wrapf(err, ErrCodeStorage, "reports file %s is corrupt", s.path)
	}
	return reports, nil
}

func (s *FileStore) Save(ctx context.Context, report *FeedbackReport) error {
	if err := checkReport(report); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.load()
	if err != nil {
		return err
	}
	for _, r := range reports {
		if r.ID == report.ID {
			return NewStorageError(fmt.Sprintf("report %s already saved", report.ID)).AddDetail("id", report.ID)
		}
	}
	reports = append(reports, report)

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return Wrapf(err, ErrCodeStorage, "encode reports")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".reports-*.tmp")
	if err != nil {
		return Wrapf(err, ErrCodeStorage, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Wrapf(err, ErrCodeStorage, "write reports")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Wrapf(err, ErrCodeStorage, "sync reports")
	}
	if err := tmp.Close(); err != nil {
		return Wrapf(err, ErrCodeStorage, "close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return Wrapf(err, ErrCodeStorage, "replace reports file")
	}
	return nil
}

// List returns reports newest first
func (s *FileStore) List(ctx context.Context) ([]*FeedbackReport, error) {
	s.mu.Lock()
	reports, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	return reports, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*FeedbackReport, error) {
	s.mu.Lock()
	reports, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, notFound(id)
}

func (s *FileStore) Close() error {
	return nil
}
