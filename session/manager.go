package session

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kikitori/ai"
	"kikitori/models"
)

// Session одна сессия транскрипции. Владеет собственным менеджером движка:
// загруженная модель одной сессии не видна другим и умирает вместе с ней.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Language  string    `json:"language"`

	engines *ai.EngineManager
	results []*TranscriptionResult
	mu      sync.RWMutex
}

// Engines возвращает менеджер движка сессии
func (s *Session) Engines() *ai.EngineManager {
	return s.engines
}

// AddResult добавляет результат в историю сессии
func (s *Session) AddResult(result *TranscriptionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

// Results возвращает копию списка результатов сессии
func (s *Session) Results() []*TranscriptionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TranscriptionResult, len(s.results))
	copy(out, s.results)
	return out
}

// Result возвращает результат по ID
func (s *Session) Result(id string) (*TranscriptionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// close выгружает модель сессии
func (s *Session) close() {
	s.engines.Close()
}

// Manager управляет жизненным циклом сессий
type Manager struct {
	sessions map[string]*Session
	factory  ai.EngineFactory
	policy   *models.Policy
	mu       sync.RWMutex
}

// NewManager создаёт менеджер сессий с общей фабрикой движков
func NewManager(factory ai.EngineFactory, policy *models.Policy) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		policy:   policy,
	}
}

// Create создаёт новую сессию
func (m *Manager) Create(language string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Language:  language,
		engines:   ai.NewEngineManager(m.factory, m.policy),
	}
	m.sessions[session.ID] = session

	log.Printf("Session created: %s (language=%q)", session.ID, language)
	return session
}

// Get возвращает сессию по ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return session, nil
}

// List возвращает сессии, новые первыми
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions
}

// Delete завершает сессию и выгружает её модель
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	session.close()
	delete(m.sessions, id)
	log.Printf("Session deleted: %s", id)
	return nil
}

// Close завершает все сессии
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		session.close()
		delete(m.sessions, id)
	}
}
