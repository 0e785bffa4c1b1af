// Package ai предоставляет Whisper движок на базе sherpa-onnx
package ai

import (
	"bytes"
	"compress/flate"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"kikitori/models"
)

// Пауза между токенами, после которой начинается новый сегмент
const segmentGapSec = 0.8

// Хвост последнего токена сегмента, если следующего токена нет
const tokenTailSec = 0.2

// WhisperEngine движок распознавания на базе offline Whisper моделей sherpa-onnx
type WhisperEngine struct {
	recognizer *sherpa.OfflineRecognizer
	paths      models.TierPaths
	language   string // язык, с которым собран recognizer ("" = авто)
	numThreads int
	speech     SpeechEstimator // оценка вероятности отсутствия речи
	mu         sync.Mutex
}

// NewWhisperEngine создаёт движок для файлов модели одного размерного класса.
// estimator может быть nil - тогда используется энергетическая эвристика.
func NewWhisperEngine(paths models.TierPaths, estimator SpeechEstimator) (*WhisperEngine, error) {
	for _, p := range []string{paths.Encoder, paths.Decoder, paths.Tokens} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	if estimator == nil {
		estimator = NewEnergyEstimator()
	}

	e := &WhisperEngine{
		paths:      paths,
		numThreads: 4,
		speech:     estimator,
	}
	if err := e.rebuildLocked(""); err != nil {
		return nil, err
	}

	log.Printf("WhisperEngine init: encoder=%s threads=%d", paths.Encoder, e.numThreads)
	return e, nil
}

// rebuildLocked пересоздаёт recognizer под указанный язык.
// Вызывается под мьютексом (или до публикации движка).
func (e *WhisperEngine) rebuildLocked(language string) error {
	config := sherpa.OfflineRecognizerConfig{}
	config.FeatConfig = sherpa.FeatureConfig{SampleRate: SampleRate, FeatureDim: 80}
	config.ModelConfig.Whisper = sherpa.OfflineWhisperModelConfig{
		Encoder:      e.paths.Encoder,
		Decoder:      e.paths.Decoder,
		Language:     language,
		Task:         "transcribe",
		TailPaddings: -1,
	}
	config.ModelConfig.Tokens = e.paths.Tokens
	config.ModelConfig.NumThreads = e.numThreads
	// Половинная точность выключена: считаем на CPU ради воспроизводимости
	config.ModelConfig.Provider = "cpu"
	config.ModelConfig.Debug = 0
	// Offline whisper в sherpa-onnx декодирует только greedy_search:
	// temperature, beam size и log-prob порог на этот backend не ложатся
	config.DecodingMethod = "greedy_search"

	recognizer := sherpa.NewOfflineRecognizer(&config)
	if recognizer == nil {
		return fmt.Errorf("failed to create sherpa-onnx recognizer for %s", e.paths.Encoder)
	}

	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
	}
	e.recognizer = recognizer
	e.language = language
	return nil
}

// Transcribe распознаёт аудио с заданными опциями декодирования
func (e *WhisperEngine) Transcribe(samples []float32, opts DecodingOptions) (*RawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recognizer == nil {
		return nil, fmt.Errorf("engine is closed")
	}

	// Язык фиксируется при сборке recognizer, при смене пересоздаём
	if opts.Language != e.language {
		log.Printf("WhisperEngine: switching language %q -> %q", e.language, opts.Language)
		if err := e.rebuildLocked(opts.Language); err != nil {
			return nil, err
		}
	}

	duration := float64(len(samples)) / float64(SampleRate)
	start := time.Now()

	stream := sherpa.NewOfflineStream(e.recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(SampleRate, samples)
	e.recognizer.Decode(stream)
	res := stream.GetResult()
	if res == nil {
		return nil, fmt.Errorf("recognizer returned no result")
	}

	text := strings.TrimSpace(res.Text)
	segments := buildSegments(res.Tokens, res.Timestamps, duration)

	// Подавление зацикливаний: сильно сжимаемый текст - повторы декодера
	if text != "" && compressionRatio(text) > opts.CompressionRatioThreshold {
		segments = dropRepeatedSegments(segments)
		text = joinSegments(segments)
		log.Printf("WhisperEngine: repeated segments suppressed (ratio above %.1f)", opts.CompressionRatioThreshold)
	}

	noSpeech := e.speech.NoSpeechProbability(samples)

	// Критерий тишины Whisper: текст с клипа без речи - галлюцинация на шуме
	if gated, gatedSegments := silenceGate(text, segments, noSpeech, opts.NoSpeechThreshold); gated != text {
		log.Printf("WhisperEngine: no-speech probability %.2f above %.2f, result dropped",
			noSpeech, opts.NoSpeechThreshold)
		text, segments = gated, gatedSegments
	}

	log.Printf("WhisperEngine: transcribed %.1fs audio in %v (segments=%d, no_speech=%.2f)",
		duration, time.Since(start).Round(time.Millisecond), len(segments), noSpeech)

	return &RawResult{
		Text:         text,
		Language:     detectedLanguage(res.Lang, opts.Language),
		NoSpeechProb: noSpeech,
		Segments:     segments,
	}, nil
}

// Name возвращает имя движка
func (e *WhisperEngine) Name() string {
	return "whisper"
}

// Close освобождает ресурсы движка
func (e *WhisperEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recognizer != nil {
		sherpa.DeleteOfflineRecognizer(e.recognizer)
		e.recognizer = nil
	}
	if e.speech != nil {
		e.speech.Close()
	}
}

// buildSegments группирует токены с таймстемпами в сегменты по паузам.
// Whisper модели sherpa-onnx могут не отдавать таймстемпы - тогда
// весь текст становится одним сегментом на всю длительность.
func buildSegments(tokens []string, timestamps []float32, duration float64) []Segment {
	if len(tokens) == 0 {
		return nil
	}

	if len(timestamps) < len(tokens) {
		text := strings.TrimSpace(strings.Join(tokens, ""))
		if text == "" {
			return nil
		}
		return []Segment{{Start: 0, End: duration, Text: text}}
	}

	var segments []Segment
	var sb strings.Builder
	segStart := float64(timestamps[0])
	prevTs := segStart

	flush := func(end float64) {
		text := strings.TrimSpace(sb.String())
		if text != "" {
			if end < segStart {
				end = segStart
			}
			segments = append(segments, Segment{Start: segStart, End: end, Text: text})
		}
		sb.Reset()
	}

	for i, token := range tokens {
		ts := float64(timestamps[i])
		if i > 0 && ts-prevTs > segmentGapSec {
			flush(prevTs + tokenTailSec)
			segStart = ts
		}
		sb.WriteString(token)
		prevTs = ts
	}

	end := prevTs + tokenTailSec
	if end > duration && duration > 0 {
		end = duration
	}
	flush(end)

	return segments
}

// silenceGate отбрасывает распознанный текст, когда вероятность отсутствия
// речи выше порога. Sherpa не отдаёт лог-вероятности токенов, поэтому
// критерий опирается только на no-speech оценку.
func silenceGate(text string, segments []Segment, noSpeech, threshold float64) (string, []Segment) {
	if text == "" || threshold <= 0 || noSpeech <= threshold {
		return text, segments
	}
	return "", nil
}

// dropRepeatedSegments схлопывает подряд идущие сегменты с одинаковым текстом
func dropRepeatedSegments(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}
	result := segments[:1]
	for _, seg := range segments[1:] {
		last := &result[len(result)-1]
		if seg.Text == last.Text {
			last.End = seg.End
			continue
		}
		result = append(result, seg)
	}
	return result
}

func joinSegments(segments []Segment) string {
	var parts []string
	for _, seg := range segments {
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
	}
	return strings.Join(parts, " ")
}

// compressionRatio отношение длины текста к длине его deflate-сжатия.
// Аналог критерия подавления повторов в Whisper.
func compressionRatio(text string) float64 {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return 0
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return 0
	}
	if err := w.Close(); err != nil {
		return 0
	}
	if buf.Len() == 0 {
		return 0
	}
	return float64(len(text)) / float64(buf.Len())
}

// detectedLanguage нормализует код языка из результата движка
func detectedLanguage(engineLang, requested string) string {
	lang := strings.TrimSuffix(strings.TrimPrefix(engineLang, "<|"), "|>")
	lang = strings.TrimSpace(lang)
	if lang != "" {
		return lang
	}
	if requested != "" {
		return requested
	}
	return "unknown"
}
