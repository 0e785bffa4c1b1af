package main

import (
	"fmt"
	"log"

	"kikitori/ai"
	"kikitori/internal/config"
	"kikitori/internal/history"
	"kikitori/internal/service"
	"kikitori/models"
	"kikitori/session"
)

// commandContext лениво собирает локальный конвейер для CLI команд
type commandContext struct {
	configFlag *string

	cfg      *config.Config
	modelMgr *models.Manager
	sessions *session.Manager
	store    *history.Store
	svc      *service.TranscriptionService
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig загружает конфигурацию один раз
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	cfg, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// ensureModelManager создаёт менеджер файлов моделей
func (c *commandContext) ensureModelManager() (*models.Manager, error) {
	if c.modelMgr != nil {
		return c.modelMgr, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	mgr, err := models.NewManager(cfg.Models.Dir)
	if err != nil {
		return nil, fmt.Errorf("create model manager: %w", err)
	}
	c.modelMgr = mgr
	return mgr, nil
}

// ensureService собирает полный конвейер транскрипции
func (c *commandContext) ensureService() (*service.TranscriptionService, *session.Manager, error) {
	if c.svc != nil {
		return c.svc, c.sessions, nil
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	modelMgr, err := c.ensureModelManager()
	if err != nil {
		return nil, nil, err
	}

	factory := func(tier models.Tier) (ai.RecognitionEngine, error) {
		paths, err := modelMgr.TierPaths(tier)
		if err != nil {
			return nil, err
		}

		var estimator ai.SpeechEstimator
		if cfg.Models.VADModelPath != "" {
			vad, err := ai.NewSileroVAD(ai.DefaultSileroVADConfig(cfg.Models.VADModelPath))
			if err != nil {
				log.Printf("Silero VAD unavailable, using energy estimator: %v", err)
			} else {
				estimator = vad
			}
		}

		return ai.NewWhisperEngine(paths, estimator)
	}

	c.sessions = session.NewManager(factory, cfg.Policy())

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open history store: %w", err)
		}
		c.store = store
	}

	svc := service.NewTranscriptionService(c.sessions, c.store)
	svc.EnhanceEnabled = cfg.Audio.EnhanceEnabled
	svc.EnhanceConfig.SuppressionFactor = cfg.Audio.SuppressionFactor
	svc.EnhanceConfig.TargetPeakLevel = float32(cfg.Audio.TargetPeak)
	c.svc = svc

	return svc, c.sessions, nil
}

// close освобождает собранные ресурсы
func (c *commandContext) close() {
	if c.sessions != nil {
		c.sessions.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}
