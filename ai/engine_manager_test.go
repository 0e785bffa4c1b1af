package ai

import (
	"errors"
	"fmt"
	"testing"

	"kikitori/models"
)

// fakeEngine фиксирует порядок создания и закрытия для проверки вытеснения
type fakeEngine struct {
	tier   models.Tier
	closed bool
	log    *[]string
}

func (e *fakeEngine) Transcribe(samples []float32, opts DecodingOptions) (*RawResult, error) {
	return &RawResult{Text: "ok"}, nil
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Close() {
	e.closed = true
	if e.log != nil {
		*e.log = append(*e.log, "close:"+string(e.tier))
	}
}

func fakeFactory(log *[]string) EngineFactory {
	return func(tier models.Tier) (RecognitionEngine, error) {
		if log != nil {
			*log = append(*log, "create:"+string(tier))
		}
		return &fakeEngine{tier: tier, log: log}, nil
	}
}

func TestEngineManagerLoad(t *testing.T) {
	m := NewEngineManager(fakeFactory(nil), models.DefaultPolicy())
	defer m.Close()

	handle, err := m.Load(models.TierBase)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if handle.Tier != models.TierBase {
		t.Errorf("handle tier = %s, want base", handle.Tier)
	}
	if handle.Engine == nil {
		t.Error("handle has no engine")
	}
	if handle.LoadedAt.IsZero() {
		t.Error("LoadedAt not set")
	}
}

// Повторная загрузка того же класса обязана вернуть живой handle без пересоздания
func TestEngineManagerSameTierReuse(t *testing.T) {
	var log []string
	m := NewEngineManager(fakeFactory(&log), models.DefaultPolicy())
	defer m.Close()

	first, _ := m.Load(models.TierSmall)
	second, err := m.Load(models.TierSmall)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if first != second {
		t.Error("same tier must return the same handle")
	}
	if len(log) != 1 {
		t.Errorf("factory called %d times, want 1: %v", len(log), log)
	}
}

// Смена класса: старый движок закрывается до создания нового
func TestEngineManagerEvictBeforeLoad(t *testing.T) {
	var log []string
	m := NewEngineManager(fakeFactory(&log), models.DefaultPolicy())
	defer m.Close()

	m.Load(models.TierTiny)
	m.Load(models.TierBase)

	want := []string{"create:tiny", "close:tiny", "create:base"}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("event order = %v, want %v", log, want)
	}
}

// Запрещённый политикой класс отклоняется до вытеснения текущей модели
func TestEngineManagerPolicyCheckFirst(t *testing.T) {
	var log []string
	m := NewEngineManager(fakeFactory(&log), models.DefaultPolicy())
	defer m.Close()

	loaded, _ := m.Load(models.TierBase)

	_, err := m.Load(models.TierLarge)
	var unsupported *UnsupportedTierError
	if !errors.As(err, &unsupported) {
		t.Fatalf("want UnsupportedTierError, got %v", err)
	}
	if unsupported.Tier != models.TierLarge {
		t.Errorf("error tier = %s, want large", unsupported.Tier)
	}

	// Текущий handle не должен быть затронут
	if m.Handle() != loaded {
		t.Error("loaded handle must survive a rejected request")
	}
	for _, event := range log {
		if event == "close:base" {
			t.Error("current engine was evicted on policy rejection")
		}
	}
}

// Сбой фабрики оставляет сессию без модели, не с частичным состоянием
func TestEngineManagerLoadFailure(t *testing.T) {
	failing := func(tier models.Tier) (RecognitionEngine, error) {
		if tier == models.TierMedium {
			return nil, errors.New("model files corrupted")
		}
		return &fakeEngine{tier: tier}, nil
	}
	m := NewEngineManager(failing, models.DefaultPolicy())
	defer m.Close()

	m.Load(models.TierBase)

	_, err := m.Load(models.TierMedium)
	var loadErr *ModelLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("want ModelLoadError, got %v", err)
	}
	if m.Handle() != nil {
		t.Error("handle must be nil after load failure")
	}

	// Следующая загрузка должна работать
	if _, err := m.Load(models.TierBase); err != nil {
		t.Errorf("recovery load failed: %v", err)
	}
}

func TestEngineManagerEvict(t *testing.T) {
	m := NewEngineManager(fakeFactory(nil), models.DefaultPolicy())

	// Evict без загрузки - no-op
	m.Evict()

	handle, _ := m.Load(models.TierTiny)
	engine := handle.Engine.(*fakeEngine)

	m.Evict()
	if !engine.closed {
		t.Error("engine not closed on evict")
	}
	if m.Handle() != nil {
		t.Error("handle must be nil after evict")
	}

	// Повторный Evict безопасен
	m.Evict()
}

func TestEngineManagerNilPolicy(t *testing.T) {
	m := NewEngineManager(fakeFactory(nil), nil)
	defer m.Close()

	// Без политики разрешены все классы, включая large
	if _, err := m.Load(models.TierLarge); err != nil {
		t.Errorf("nil policy must allow any tier: %v", err)
	}
}
