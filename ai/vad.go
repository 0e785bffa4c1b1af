// Package ai предоставляет оценку вероятности отсутствия речи в аудио
package ai

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// SpeechEstimator оценивает вероятность того, что аудио не содержит речи.
// Оценка чисто совещательная: используется для confidence и quality score,
// транскрипция по ней не блокируется.
type SpeechEstimator interface {
	// NoSpeechProbability возвращает вероятность отсутствия речи [0,1]
	NoSpeechProbability(samples []float32) float64

	// Close освобождает ресурсы
	Close()
}

// ===== Энергетическая эвристика (fallback без модели) =====

// minSpeechRMS RMS, при котором сигнал уверенно считается речью
const minSpeechRMS = 0.02

// EnergyEstimator оценивает наличие речи по RMS сигнала.
// Грубая эвристика на случай когда модель VAD недоступна.
type EnergyEstimator struct{}

// NewEnergyEstimator создаёт энергетический оценщик
func NewEnergyEstimator() *EnergyEstimator {
	return &EnergyEstimator{}
}

// NoSpeechProbability оценивает отсутствие речи по энергии сигнала
func (e *EnergyEstimator) NoSpeechProbability(samples []float32) float64 {
	if len(samples) < SampleRate/10 { // меньше 0.1 секунды
		return 1.0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s * s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	speech := rms / minSpeechRMS
	if speech > 1 {
		speech = 1
	}
	return 1 - speech
}

// Close ничего не освобождает
func (e *EnergyEstimator) Close() {}

// ===== Silero VAD (onnxruntime) =====

// SileroVADConfig конфигурация Silero VAD
type SileroVADConfig struct {
	ModelPath  string  // путь к ONNX модели
	SampleRate int     // 8000 или 16000
	Threshold  float32 // порог вероятности речи (для окна)
}

// DefaultSileroVADConfig возвращает конфигурацию по умолчанию
func DefaultSileroVADConfig(modelPath string) SileroVADConfig {
	return SileroVADConfig{
		ModelPath:  modelPath,
		SampleRate: SampleRate,
		Threshold:  0.5,
	}
}

// SileroVAD оценивает вероятность речи через модель Silero VAD
type SileroVAD struct {
	session *ort.DynamicAdvancedSession
	config  SileroVADConfig

	// LSTM состояние, сохраняется между окнами одного вызова
	state []float32

	// Контекст - последние сэмплы предыдущего окна (64 для 16kHz, 32 для 8kHz)
	context []float32

	mu sync.Mutex
}

// ONNX Runtime глобальная инициализация
var (
	onnxInitialized bool
	onnxInitMu      sync.Mutex
)

func initONNXRuntime() error {
	onnxInitMu.Lock()
	defer onnxInitMu.Unlock()

	if onnxInitialized {
		return nil
	}

	libPath := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	if libPath == "" {
		searchPaths := []string{
			"./libonnxruntime.so",
			"./libonnxruntime.dylib",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
		}
		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				libPath = path
				break
			}
		}
	}

	if libPath == "" {
		return fmt.Errorf("ONNX Runtime library not found")
	}

	log.Printf("Using ONNX Runtime library: %s", libPath)
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}

	onnxInitialized = true
	log.Println("ONNX Runtime initialized successfully")
	return nil
}

// NewSileroVAD создаёт оценщик на базе Silero VAD
func NewSileroVAD(config SileroVADConfig) (*SileroVAD, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}
	if config.SampleRate != 8000 && config.SampleRate != 16000 {
		return nil, fmt.Errorf("sample rate must be 8000 or 16000, got %d", config.SampleRate)
	}

	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	// Silero VAD inputs: input, state, sr; outputs: output, stateN
	session, err := ort.NewDynamicAdvancedSession(
		config.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	contextSize := 64
	if config.SampleRate == 8000 {
		contextSize = 32
	}

	vad := &SileroVAD{
		session: session,
		config:  config,
		state:   make([]float32, 2*1*128), // [2, 1, 128] - h и c состояния LSTM
		context: make([]float32, contextSize),
	}

	log.Printf("Silero VAD initialized: sample_rate=%d, threshold=%.2f", config.SampleRate, config.Threshold)
	return vad, nil
}

// resetStateLocked сбрасывает LSTM состояние и контекст
func (v *SileroVAD) resetStateLocked() {
	for i := range v.state {
		v.state[i] = 0
	}
	for i := range v.context {
		v.context[i] = 0
	}
}

// processChunkLocked обрабатывает одно окно и возвращает вероятность речи.
// Размер окна: 512 сэмплов для 16kHz, 256 для 8kHz.
func (v *SileroVAD) processChunkLocked(samples []float32) (float32, error) {
	contextSize := len(v.context)

	// Вход модели: context + samples, [batch, context_size + window_size]
	inputData := make([]float32, contextSize+len(samples))
	copy(inputData[:contextSize], v.context)
	copy(inputData[contextSize:], samples)

	// Обновляем контекст для следующего окна
	if len(samples) >= contextSize {
		copy(v.context, samples[len(samples)-contextSize:])
	} else {
		copy(v.context, v.context[len(samples):])
		copy(v.context[contextSize-len(samples):], samples)
	}

	inputShape := ort.NewShape(1, int64(len(inputData)))
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateShape := ort.NewShape(2, 1, 128)
	stateTensor, err := ort.NewTensor(stateShape, v.state)
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(v.config.SampleRate)})
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := v.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	outputData := outputs[0].(*ort.Tensor[float32]).GetData()
	stateNData := outputs[1].(*ort.Tensor[float32]).GetData()
	copy(v.state, stateNData)

	if len(outputData) > 0 {
		return outputData[0], nil
	}
	return 0, nil
}

// NoSpeechProbability усредняет вероятность речи по окнам всего клипа
// и возвращает дополнение до единицы
func (v *SileroVAD) NoSpeechProbability(samples []float32) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil || len(samples) == 0 {
		return 1.0
	}

	v.resetStateLocked()

	windowSize := 512
	if v.config.SampleRate == 8000 {
		windowSize = 256
	}

	var probSum float64
	var windows int

	for i := 0; i < len(samples); i += windowSize {
		end := i + windowSize
		var chunk []float32
		if end <= len(samples) {
			chunk = samples[i:end]
		} else {
			chunk = make([]float32, windowSize)
			copy(chunk, samples[i:])
		}

		prob, err := v.processChunkLocked(chunk)
		if err != nil {
			// Оценка совещательная: при сбое модели откатываемся на энергию
			log.Printf("Silero VAD inference failed, using energy fallback: %v", err)
			return NewEnergyEstimator().NoSpeechProbability(samples)
		}
		probSum += float64(prob)
		windows++
	}

	if windows == 0 {
		return 1.0
	}
	return 1 - probSum/float64(windows)
}

// Close освобождает ресурсы
func (v *SileroVAD) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session != nil {
		v.session.Destroy()
		v.session = nil
	}
}
