package main

import (
	"flag"
	"log"

	"kikitori/ai"
	"kikitori/internal/api"
	"kikitori/internal/config"
	"kikitori/internal/history"
	"kikitori/internal/service"
	"kikitori/models"
	"kikitori/session"
)

func main() {
	log.Println("Kikitori backend starting...")

	configPath := flag.String("config", "", "Path to TOML config (default: kikitori.toml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to prepare directories: %v", err)
	}

	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Models directory: %s", cfg.Models.Dir)

	modelMgr, err := models.NewManager(cfg.Models.Dir)
	if err != nil {
		log.Fatalf("Failed to create model manager: %v", err)
	}

	factory := engineFactory(modelMgr, cfg.Models.VADModelPath)
	sessions := session.NewManager(factory, cfg.Policy())
	defer sessions.Close()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open history store: %v", err)
		}
		defer store.Close()
		log.Printf("History store: %s", cfg.History.Path)
	}

	svc := service.NewTranscriptionService(sessions, store)
	svc.EnhanceEnabled = cfg.Audio.EnhanceEnabled
	svc.EnhanceConfig.SuppressionFactor = cfg.Audio.SuppressionFactor
	svc.EnhanceConfig.TargetPeakLevel = float32(cfg.Audio.TargetPeak)

	server := api.NewServer(cfg, sessions, modelMgr, svc, store)
	server.Start()
}

// engineFactory создаёт фабрику движков. Каждый движок получает собственный
// оценщик речи: Silero VAD если модель задана, иначе энергетическая эвристика.
func engineFactory(modelMgr *models.Manager, vadModelPath string) ai.EngineFactory {
	return func(tier models.Tier) (ai.RecognitionEngine, error) {
		paths, err := modelMgr.TierPaths(tier)
		if err != nil {
			return nil, err
		}

		var estimator ai.SpeechEstimator
		if vadModelPath != "" {
			vad, err := ai.NewSileroVAD(ai.DefaultSileroVADConfig(vadModelPath))
			if err != nil {
				log.Printf("Silero VAD unavailable, using energy estimator: %v", err)
			} else {
				estimator = vad
			}
		}

		return ai.NewWhisperEngine(paths, estimator)
	}
}
