package models

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// ProgressCallback функция обратного вызова для прогресса загрузки
type ProgressCallback func(tier Tier, progress float64, err error)

// TierPaths пути к файлам модели одного размерного класса
type TierPaths struct {
	Encoder string
	Decoder string
	Tokens  string
}

// Manager управляет локальным хранилищем файлов моделей
type Manager struct {
	modelsDir  string
	mu         sync.RWMutex
	onProgress ProgressCallback
}

// NewManager создаёт менеджер файлов моделей
func NewManager(modelsDir string) (*Manager, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &Manager{modelsDir: modelsDir}, nil
}

// SetProgressCallback устанавливает callback для прогресса
func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = cb
}

// ModelsDir возвращает путь к директории моделей
func (m *Manager) ModelsDir() string {
	return m.modelsDir
}

// TierPaths возвращает пути к файлам модели для размерного класса
func (m *Manager) TierPaths(tier Tier) (TierPaths, error) {
	info := GetTierInfo(tier)
	if info == nil {
		return TierPaths{}, fmt.Errorf("unknown model tier: %q", tier)
	}
	dir := filepath.Join(m.modelsDir, info.ModelName)
	return TierPaths{
		Encoder: filepath.Join(dir, info.ModelName+"-encoder.int8.onnx"),
		Decoder: filepath.Join(dir, info.ModelName+"-decoder.int8.onnx"),
		Tokens:  filepath.Join(dir, info.ModelName+"-tokens.txt"),
	}, nil
}

// IsTierDownloaded проверяет что все файлы модели скачаны
func (m *Manager) IsTierDownloaded(tier Tier) bool {
	paths, err := m.TierPaths(tier)
	if err != nil {
		return false
	}
	for _, p := range []string{paths.Encoder, paths.Decoder, paths.Tokens} {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// EnsureTier скачивает файлы модели если их ещё нет
func (m *Manager) EnsureTier(ctx context.Context, tier Tier) error {
	if m.IsTierDownloaded(tier) {
		return nil
	}

	info := GetTierInfo(tier)
	if info == nil {
		return fmt.Errorf("unknown model tier: %q", tier)
	}
	paths, err := m.TierPaths(tier)
	if err != nil {
		return err
	}

	log.Printf("Models: downloading tier %s (%s)", tier, info.Size)

	// Encoder - самый большой файл, прогресс считаем по нему
	files := []struct {
		url  string
		dest string
	}{
		{info.EncoderURL, paths.Encoder},
		{info.DecoderURL, paths.Decoder},
		{info.TokensURL, paths.Tokens},
	}

	for _, f := range files {
		err := DownloadFile(ctx, f.url, f.dest, info.SizeBytes, func(progress float64) {
			m.reportProgress(tier, progress, nil)
		})
		if err != nil {
			m.reportProgress(tier, 0, err)
			return fmt.Errorf("failed to download %s: %w", filepath.Base(f.dest), err)
		}
	}

	m.reportProgress(tier, 100, nil)
	log.Printf("Models: tier %s downloaded to %s", tier, filepath.Dir(paths.Encoder))
	return nil
}

func (m *Manager) reportProgress(tier Tier, progress float64, err error) {
	m.mu.RLock()
	cb := m.onProgress
	m.mu.RUnlock()
	if cb != nil {
		cb(tier, progress, err)
	}
}
