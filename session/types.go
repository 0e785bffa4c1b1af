// Package session управляет сессиями транскрипции и их артефактами
package session

import (
	"strings"
	"time"

	"kikitori/ai"
	"kikitori/models"
)

// AssetSource происхождение аудио
type AssetSource string

const (
	SourceUploaded AssetSource = "uploaded"
	SourceRecorded AssetSource = "recorded"
)

// Поддерживаемые расширения входного аудио
var knownExtensions = map[string]bool{
	"wav": true,
	"mp3": true,
}

// AudioAsset исходное аудио как его прислал клиент. Неизменяемо:
// данные копируются при создании, дальше по конвейеру идут только чтения.
type AudioAsset struct {
	data      []byte
	extension string
	source    AssetSource
	createdAt time.Time
}

// NewAudioAsset создаёт asset. Пустое или неизвестное расширение
// трактуется как wav.
func NewAudioAsset(data []byte, extension string, source AssetSource) *AudioAsset {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(extension), "."))
	if !knownExtensions[ext] {
		ext = "wav"
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	return &AudioAsset{
		data:      owned,
		extension: ext,
		source:    source,
		createdAt: time.Now(),
	}
}

// Data возвращает байты аудио (копию не делаем, вызывающий не должен менять)
func (a *AudioAsset) Data() []byte { return a.data }

// Extension возвращает нормализованное расширение
func (a *AudioAsset) Extension() string { return a.extension }

// Source возвращает происхождение аудио
func (a *AudioAsset) Source() AssetSource { return a.source }

// CreatedAt возвращает время создания asset
func (a *AudioAsset) CreatedAt() time.Time { return a.createdAt }

// PreprocessedAudio результат препроцессинга.
// При неудаче декодирования Waveform пуст, а исходные байты asset
// остаются нетронутыми.
type PreprocessedAudio struct {
	Waveform   []float32 // моно, 16 kHz
	SampleRate int
	Enhanced   bool // улучшение реально применено
	Asset      *AudioAsset
}

// Duration длительность декодированного сигнала в секундах
func (p *PreprocessedAudio) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Waveform)) / float64(p.SampleRate)
}

// TranscriptionResult агрегированный результат одного запроса транскрипции
type TranscriptionResult struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`

	Text     string       `json:"text"`    // после пост-обработки
	RawText  string       `json:"rawText"` // как отдал движок
	Language string       `json:"language"`
	Segments []ai.Segment `json:"segments,omitempty"`

	Tier          models.Tier `json:"modelTier"`
	Enhanced      bool        `json:"enhanced"`      // пост-обработка изменила текст
	AudioEnhanced bool        `json:"audioEnhanced"` // улучшение сигнала реально применено

	Duration     float64 `json:"duration"` // секунды
	NoSpeechProb float64 `json:"noSpeechProb"`
	Confidence   float64 `json:"confidence"`   // 1 - NoSpeechProb
	QualityScore float64 `json:"qualityScore"` // [0, 100]

	CharCount int `json:"charCount"` // руны, не байты
	WordCount int `json:"wordCount"`

	Warnings []string `json:"warnings,omitempty"`
}
