// Package service содержит оркестратор конвейера транскрипции
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"kikitori/ai"
	"kikitori/audio"
	"kikitori/internal/history"
	"kikitori/models"
	"kikitori/session"
)

// Stage этапы конвейера для прогресс-уведомлений
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageLoadModel   Stage = "load_model"
	StageTranscribe  Stage = "transcribe"
	StagePostprocess Stage = "postprocess"
	StageDone        Stage = "done"
)

// ProgressFunc уведомление о смене этапа конвейера
type ProgressFunc func(sessionID string, stage Stage)

// TranscriptionService оркестрирует полный конвейер:
// препроцессинг -> загрузка модели -> распознавание -> пост-обработка -> оценка
type TranscriptionService struct {
	Sessions *session.Manager
	History  *history.Store // nil = история отключена

	EnhanceEnabled bool
	EnhanceConfig  audio.EnhanceConfig

	PostProcessor *ai.PostProcessor

	// Callback для UI обновлений (websocket broadcast)
	OnProgress ProgressFunc
}

// NewTranscriptionService создаёт сервис с пост-процессором по умолчанию
func NewTranscriptionService(sessions *session.Manager, store *history.Store) *TranscriptionService {
	return &TranscriptionService{
		Sessions:       sessions,
		History:        store,
		EnhanceEnabled: true,
		EnhanceConfig:  audio.DefaultEnhanceConfig(),
		PostProcessor:  ai.NewPostProcessor(),
	}
}

// TranscribeRequest один запрос транскрипции
type TranscribeRequest struct {
	SessionID      string
	Asset          *session.AudioAsset
	Tier           models.Tier
	Language       string // "auto" или код языка
	WordTimestamps bool
}

// Transcribe прогоняет аудио через весь конвейер и возвращает
// агрегированный результат
func (s *TranscriptionService) Transcribe(ctx context.Context, req TranscribeRequest) (*session.TranscriptionResult, error) {
	sess, err := s.Sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	start := time.Now()

	// 1. Препроцессинг: декодирование + best-effort улучшение
	s.progress(sess.ID, StagePreprocess)
	audioData, decodeWarnings, err := s.Preprocess(req.Asset)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, decodeWarnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. Загрузка модели (кэш-хит если класс не менялся)
	s.progress(sess.ID, StageLoadModel)
	handle, err := sess.Engines().Load(req.Tier)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. Распознавание с детерминированными опциями декодирования
	s.progress(sess.ID, StageTranscribe)
	opts := ai.BuildDecodingOptions(req.Language, req.WordTimestamps)
	raw, err := handle.Engine.Transcribe(audioData.Waveform, opts)
	if err != nil {
		return nil, &ai.TranscriptionError{Err: err}
	}

	// 4. Пост-обработка и оценка
	s.progress(sess.ID, StagePostprocess)
	result := s.aggregate(req, audioData, raw, warnings)

	sess.AddResult(result)
	s.saveHistory(ctx, result)

	s.progress(sess.ID, StageDone)
	log.Printf("Transcription completed: session=%s result=%s quality=%.0f elapsed=%v",
		sess.ID, result.ID, result.QualityScore, time.Since(start).Round(time.Millisecond))
	return result, nil
}

// Preprocess декодирует asset и применяет улучшение.
// Сбой разбора контейнера не фатален: одна повторная попытка как raw PCM.
// Исходные байты asset в любом случае остаются нетронутыми.
func (s *TranscriptionService) Preprocess(asset *session.AudioAsset) (*session.PreprocessedAudio, []string, error) {
	var warnings []string

	waveform, err := audio.Decode(asset.Data(), asset.Extension())
	if err != nil {
		var decodeErr *audio.DecodeError
		if !errors.As(err, &decodeErr) {
			return nil, nil, err
		}

		log.Printf("Audio decode failed, retrying as raw PCM: %v", err)
		waveform, err = audio.DecodeLenient(asset.Data())
		if err != nil {
			return nil, nil, fmt.Errorf("audio is not decodable: %w", err)
		}
		warnings = append(warnings, "container parse failed, audio decoded as raw PCM")
	}

	enhanced := false
	if s.EnhanceEnabled {
		waveform, enhanced = audio.Enhance(waveform, s.EnhanceConfig)
		if !enhanced {
			warnings = append(warnings, "audio enhancement skipped, using original signal")
		}
	}

	return &session.PreprocessedAudio{
		Waveform:   waveform,
		SampleRate: audio.TargetSampleRate,
		Enhanced:   enhanced,
		Asset:      asset,
	}, warnings, nil
}

// aggregate собирает единый результат из сырого вывода движка
func (s *TranscriptionService) aggregate(req TranscribeRequest, audioData *session.PreprocessedAudio, raw *ai.RawResult, warnings []string) *session.TranscriptionResult {
	text := s.PostProcessor.Apply(raw.Text)

	// Пустой результат - предупреждение, не ошибка: тишина это валидный вход
	if strings.TrimSpace(text) == "" {
		warnings = append(warnings, "no speech recognized in audio")
	}

	confidence := 1 - raw.NoSpeechProb

	// Таймстемпы отдаются только если клиент их запросил
	var segments []ai.Segment
	if req.WordTimestamps {
		segments = raw.Segments
	}

	return &session.TranscriptionResult{
		ID:            uuid.New().String(),
		SessionID:     req.SessionID,
		CreatedAt:     time.Now(),
		Text:          text,
		RawText:       raw.Text,
		Language:      raw.Language,
		Segments:      segments,
		Tier:          req.Tier,
		Enhanced:      text != raw.Text,
		AudioEnhanced: audioData.Enhanced,
		Duration:      audioData.Duration(),
		NoSpeechProb:  raw.NoSpeechProb,
		Confidence:    confidence,
		QualityScore:  ai.QualityScore(raw.NoSpeechProb, text),
		CharCount:     utf8.RuneCountInString(text),
		WordCount:     len(strings.Fields(text)),
		Warnings:      warnings,
	}
}

// saveHistory сохраняет результат best-effort: сбой хранилища не роняет запрос
func (s *TranscriptionService) saveHistory(ctx context.Context, result *session.TranscriptionResult) {
	if s.History == nil {
		return
	}
	if err := s.History.Save(ctx, result); err != nil {
		log.Printf("Warning: failed to save result to history: %v", err)
	}
}

func (s *TranscriptionService) progress(sessionID string, stage Stage) {
	if s.OnProgress != nil {
		s.OnProgress(sessionID, stage)
	}
}
