// Package config загружает конфигурацию демона из TOML с дефолтами
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"kikitori/models"
)

// Server настройки HTTP/gRPC сервера
type Server struct {
	Port     string `toml:"port"`
	PipeName string `toml:"pipe_name"` // gRPC: unix socket или windows named pipe
}

// Models настройки каталога моделей
type Models struct {
	Dir           string   `toml:"dir"`
	DefaultTier   string   `toml:"default_tier"`
	ExcludedTiers []string `toml:"excluded_tiers"`
	VADModelPath  string   `toml:"vad_model_path"` // Silero VAD, пусто = энергетическая эвристика
}

// Audio настройки улучшения аудио
type Audio struct {
	EnhanceEnabled    bool    `toml:"enhance_enabled"`
	SuppressionFactor float64 `toml:"suppression_factor"`
	TargetPeak        float64 `toml:"target_peak"`
	CaptureDevice     string  `toml:"capture_device"`
}

// Transcribe настройки распознавания по умолчанию
type Transcribe struct {
	Language       string `toml:"language"` // "auto" = автоопределение
	WordTimestamps bool   `toml:"word_timestamps"`
}

// History настройки хранения истории результатов
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // путь к sqlite базе
}

// Config конфигурация демона
type Config struct {
	DataDir    string     `toml:"data_dir"`
	Server     Server     `toml:"server"`
	Models     Models     `toml:"models"`
	Audio      Audio      `toml:"audio"`
	Transcribe Transcribe `toml:"transcribe"`
	History    History    `toml:"history"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		DataDir: "data",
		Server: Server{
			Port:     "8090",
			PipeName: defaultPipeName(),
		},
		Models: Models{
			Dir:           "", // пусто = DataDir/models
			DefaultTier:   string(models.RecommendedTier()),
			ExcludedTiers: []string{string(models.TierLarge)},
		},
		Audio: Audio{
			EnhanceEnabled:    true,
			SuppressionFactor: 1.0,
			TargetPeak:        0.9,
		},
		Transcribe: Transcribe{
			Language:       "auto",
			WordTimestamps: true,
		},
		History: History{
			Enabled: true,
			Path:    "", // пусто = DataDir/history.db
		},
	}
}

// Load читает конфигурацию. Пустой path - ищем kikitori.toml рядом
// с рабочей директорией, при отсутствии работаем на дефолтах.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := path
	if resolved == "" {
		resolved = "kikitori.toml"
	}

	file, err := os.Open(resolved)
	switch {
	case err == nil:
		defer file.Close()
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if path != "" {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		// Явный путь не задан - дефолты допустимы
	default:
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize заполняет производные пути
func (c *Config) normalize() {
	if c.Models.Dir == "" {
		c.Models.Dir = filepath.Join(c.DataDir, "models")
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.DataDir, "history.db")
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if _, err := models.ParseTier(c.Models.DefaultTier); err != nil {
		return fmt.Errorf("models.default_tier: %w", err)
	}
	for _, t := range c.Models.ExcludedTiers {
		if _, err := models.ParseTier(t); err != nil {
			return fmt.Errorf("models.excluded_tiers: %w", err)
		}
	}
	if c.Audio.SuppressionFactor < 0 {
		return fmt.Errorf("audio.suppression_factor must be >= 0")
	}
	if c.Audio.TargetPeak <= 0 || c.Audio.TargetPeak > 1 {
		return fmt.Errorf("audio.target_peak must be in (0, 1]")
	}
	return nil
}

// Policy строит политику развёртывания из списка исключённых классов
func (c *Config) Policy() *models.Policy {
	excluded := make([]models.Tier, 0, len(c.Models.ExcludedTiers))
	for _, t := range c.Models.ExcludedTiers {
		tier, err := models.ParseTier(t)
		if err != nil {
			continue // Validate уже отловил, сюда не попадём
		}
		excluded = append(excluded, tier)
	}
	return models.NewPolicy(excluded...)
}

// DefaultTier возвращает размерный класс по умолчанию
func (c *Config) DefaultTier() models.Tier {
	tier, err := models.ParseTier(c.Models.DefaultTier)
	if err != nil {
		return models.RecommendedTier()
	}
	return tier
}

// EnsureDirectories создаёт рабочие директории демона
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.DataDir, c.Models.Dir, filepath.Dir(c.History.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}
