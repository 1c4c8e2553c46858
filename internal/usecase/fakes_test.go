package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	headDelta int64
	uploadErr error
	panicOn   string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Download(_ context.Context, key, destPath string) error {
	if s.panicOn == "download" {
		panic("storage exploded")
	}
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return entity.ErrObjectNotFound
	}
	return os.WriteFile(destPath, data, 0644)
}

func (s *memoryStore) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Head(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, entity.ErrObjectNotFound
	}
	return int64(len(data)) + s.headDelta, nil
}

func (s *memoryStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

type failureReport struct {
	token string
	code  entity.ErrorCode
	cause string
}

type recordingReporter struct {
	mu         sync.Mutex
	successes  []entity.SceneSuccessPayload
	failures   []failureReport
	successErr error
}

func (r *recordingReporter) ReportSuccess(_ context.Context, _ string, payload entity.SceneSuccessPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, payload)
	return r.successErr
}

func (r *recordingReporter) ReportFailure(_ context.Context, token string, code entity.ErrorCode, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, failureReport{token: token, code: code, cause: cause})
	return nil
}

func (r *recordingReporter) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes) + len(r.failures)
}

type memoryRepo struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]entity.SceneRun
	statuses []entity.SceneStatus
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{runs: make(map[uuid.UUID]entity.SceneRun)}
}

func (r *memoryRepo) Create(_ context.Context, run *entity.SceneRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	r.statuses = append(r.statuses, run.Status)
	return nil
}

func (r *memoryRepo) Update(_ context.Context, run *entity.SceneRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return errors.New("run not found")
	}
	r.runs[run.ID] = *run
	r.statuses = append(r.statuses, run.Status)
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.SceneRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	return &run, nil
}

type recordingNotifier struct {
	codes []string
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, _, _, code, _ string) error {
	n.codes = append(n.codes, code)
	return nil
}
