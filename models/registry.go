// Package models предоставляет каталог размерных классов модели распознавания
package models

import "fmt"

// Tier размерный класс модели Whisper
type Tier string

const (
	TierTiny   Tier = "tiny"
	TierBase   Tier = "base"
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// TierInfo статические метаданные размерного класса
type TierInfo struct {
	Tier        Tier   `json:"tier"`
	ModelName   string `json:"modelName"` // имя модели в репозитории sherpa-onnx
	Size        string `json:"size"`      // приблизительный footprint
	SizeBytes   int64  `json:"sizeBytes"`
	Speed       string `json:"speed"`    // скоростной класс относительно large
	Accuracy    string `json:"accuracy"` // класс точности
	Description string `json:"description"`
	Recommended bool   `json:"recommended,omitempty"`

	// Файлы модели (sherpa-onnx whisper: encoder + decoder + tokens)
	EncoderURL string `json:"encoderUrl,omitempty"`
	DecoderURL string `json:"decoderUrl,omitempty"`
	TokensURL  string `json:"tokensUrl,omitempty"`
}

const whisperRepoBase = "https://huggingface.co/csukuangfj/sherpa-onnx-whisper-"

func whisperTier(tier Tier, modelName, size string, sizeBytes int64, speed, accuracy, description string, recommended bool) TierInfo {
	base := whisperRepoBase + modelName + "/resolve/main/" + modelName
	return TierInfo{
		Tier:        tier,
		ModelName:   modelName,
		Size:        size,
		SizeBytes:   sizeBytes,
		Speed:       speed,
		Accuracy:    accuracy,
		Description: description,
		Recommended: recommended,
		EncoderURL:  base + "-encoder.int8.onnx",
		DecoderURL:  base + "-decoder.int8.onnx",
		TokensURL:   base + "-tokens.txt",
	}
}

// Registry каталог доступных размерных классов.
// Footprint и скоростные классы соответствуют оригинальным моделям Whisper.
var Registry = []TierInfo{
	whisperTier(TierTiny, "tiny", "39 MB", 39_000_000, "~10x", "basic",
		"Самая быстрая модель, базовое качество", false),
	whisperTier(TierBase, "base", "74 MB", 74_000_000, "~7x", "standard",
		"Баланс скорости и качества", true),
	whisperTier(TierSmall, "small", "244 MB", 244_000_000, "~4x", "good",
		"Хорошее качество, средняя скорость", false),
	whisperTier(TierMedium, "medium", "769 MB", 769_000_000, "~2x", "high",
		"Высокое качество, медленнее", false),
	whisperTier(TierLarge, "large-v3", "1.5 GB", 1_550_000_000, "~1x", "highest",
		"Максимальное качество, самая медленная", false),
}

// GetTierInfo возвращает метаданные размерного класса
func GetTierInfo(tier Tier) *TierInfo {
	for i := range Registry {
		if Registry[i].Tier == tier {
			info := Registry[i]
			return &info
		}
	}
	return nil
}

// AllTiers возвращает размерные классы в порядке возрастания размера
func AllTiers() []Tier {
	tiers := make([]Tier, len(Registry))
	for i, info := range Registry {
		tiers[i] = info.Tier
	}
	return tiers
}

// RecommendedTier возвращает рекомендуемый размерный класс
func RecommendedTier() Tier {
	for _, info := range Registry {
		if info.Recommended {
			return info.Tier
		}
	}
	return TierBase
}

// ParseTier валидирует строковое значение размерного класса
func ParseTier(s string) (Tier, error) {
	tier := Tier(s)
	if GetTierInfo(tier) == nil {
		return "", fmt.Errorf("unknown model tier: %q", s)
	}
	return tier, nil
}
