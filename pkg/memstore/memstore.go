package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-writer/pkg/research"
)

// MemoryStore is a research.Store kept in process memory. It backs the CLI
// when no database is configured and the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]research.Job
	pending  map[string]bool
	states   map[string]research.GenerationState
	sessions map[string]research.ChatSession
	messages map[string][]research.HistoryTurn
	now      func() time.Time
}

func New() *MemoryStore {
	return &MemoryStore{
		jobs:     map[string]research.Job{},
		pending:  map[string]bool{},
		states:   map[string]research.GenerationState{},
		sessions: map[string]research.ChatSession{},
		messages: map[string][]research.HistoryTurn{},
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateJob(ctx context.Context, job research.Job) (research.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if _, ok := m.jobs[job.ID]; ok {
		return research.Job{}, fmt.Errorf("job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = research.StatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = m.now()
	}
	job.UpdatedAt = job.CreatedAt
	m.jobs[job.ID] = job
	m.pending[job.ID] = true
	return job, nil
}

func (m *MemoryStore) GetJob(ctx context.Context, id string) (research.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return research.Job{}, research.ErrJobNotFound
	}
	return job, nil
}

func (m *MemoryStore) ClaimJob(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return false, research.ErrJobNotFound
	}
	if job.Status != research.StatusPending {
		return false, nil
	}
	job.Status = research.StatusGenerating
	job.UpdatedAt = m.now()
	m.jobs[id] = job
	return true, nil
}

func (m *MemoryStore) FinishJob(ctx context.Context, id string, status research.JobStatus, artifact *research.Artifact, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return research.ErrJobNotFound
	}
	job.Status = status
	job.Artifact = artifact
	job.Error = errMsg
	job.UpdatedAt = m.now()
	m.jobs[id] = job
	delete(m.pending, id)
	return nil
}

// Pending reports whether the job still has its pending marker.
func (m *MemoryStore) Pending(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pending[id]
}

func (m *MemoryStore) SaveState(ctx context.Context, st research.GenerationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.states[st.JobID]
	if ok && prev.IsCompleted {
		return nil
	}
	if ok {
		st.CreatedAt = prev.CreatedAt
	}
	m.states[st.JobID] = st
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context, jobID string) (research.GenerationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[jobID]
	if !ok {
		return research.GenerationState{}, research.ErrJobNotFound
	}
	return st, nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, userID string) (research.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	s := research.ChatSession{ID: uuid.NewString(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) AppendChatMessage(ctx context.Context, chatID, query, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return fmt.Errorf("chat session %s not found", chatID)
	}
	now := m.now()
	m.messages[chatID] = append(m.messages[chatID], research.HistoryTurn{Query: query, Response: response, CreatedAt: now})
	s.UpdatedAt = now
	m.sessions[chatID] = s
	return nil
}

func (m *MemoryStore) ChatHistory(ctx context.Context, chatID string) ([]research.HistoryTurn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := append([]research.HistoryTurn(nil), m.messages[chatID]...)
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].CreatedAt.Before(turns[j].CreatedAt) })
	return turns, nil
}
