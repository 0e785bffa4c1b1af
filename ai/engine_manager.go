// Package ai предоставляет EngineManager для управления жизненным циклом модели
package ai

import (
	"log"
	"runtime"
	"sync"
	"time"

	"kikitori/models"
)

// EngineFactory создаёт движок распознавания для размерного класса
type EngineFactory func(tier models.Tier) (RecognitionEngine, error)

// ModelHandle владеет одним загруженным экземпляром движка
type ModelHandle struct {
	Tier     models.Tier
	LoadedAt time.Time
	Engine   RecognitionEngine
}

// EngineManager амортизирует стоимость загрузки модели, ограничивая память
// одним экземпляром. Каждая сессия владеет независимым менеджером:
// зависшая или сломанная модель не затрагивает другие сессии.
type EngineManager struct {
	factory EngineFactory
	policy  *models.Policy
	handle  *ModelHandle
	mu      sync.Mutex
}

// NewEngineManager создаёт менеджер с фабрикой движков и политикой развёртывания
func NewEngineManager(factory EngineFactory, policy *models.Policy) *EngineManager {
	return &EngineManager{
		factory: factory,
		policy:  policy,
	}
}

// Load возвращает handle для размерного класса.
// Тот же класс - handle возвращается без перезагрузки. Другой класс -
// сначала вытесняется текущий, затем создаётся новый. Запрещённый политикой
// класс отклоняется до любой загрузки, текущий handle не затрагивается.
func (m *EngineManager) Load(tier models.Tier) (*ModelHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.policy.Allowed(tier) {
		return nil, &UnsupportedTierError{Tier: tier}
	}

	if m.handle != nil && m.handle.Tier == tier {
		return m.handle, nil
	}

	if m.handle != nil {
		m.evictLocked()
	}

	engine, err := m.factory(tier)
	if err != nil {
		// Частичное состояние уже вытеснено, сессия остаётся без модели
		return nil, &ModelLoadError{Tier: tier, Err: err}
	}

	m.handle = &ModelHandle{
		Tier:     tier,
		LoadedAt: time.Now(),
		Engine:   engine,
	}
	log.Printf("EngineManager: loaded tier %s (engine: %s)", tier, engine.Name())
	return m.handle, nil
}

// Evict выгружает текущую модель. Безопасно вызывать всегда, no-op если пусто.
func (m *EngineManager) Evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
}

func (m *EngineManager) evictLocked() {
	if m.handle == nil {
		return
	}
	tier := m.handle.Tier
	m.handle.Engine.Close()
	m.handle = nil
	// Просим вернуть память движка немедленно, а не при следующем цикле GC
	runtime.GC()
	log.Printf("EngineManager: evicted tier %s", tier)
}

// Handle возвращает текущий handle или nil
func (m *EngineManager) Handle() *ModelHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Close выгружает модель при завершении сессии
func (m *EngineManager) Close() {
	m.Evict()
}
