// Package ai предоставляет движок распознавания речи и пайплайн обработки текста
package ai

// SampleRate частота дискретизации, которую ожидает движок.
// Препроцессинг всегда приводит аудио к этому значению.
const SampleRate = 16000

// Segment временной сегмент распознанного текста
type Segment struct {
	Start float64 `json:"start"` // секунды
	End   float64 `json:"end"`   // секунды
	Text  string  `json:"text"`
}

// RawResult сырой результат движка до постобработки
type RawResult struct {
	Text         string    // распознанный текст целиком
	Language     string    // определённый язык ("unknown" если движок не сообщил)
	NoSpeechProb float64   // вероятность отсутствия речи [0,1]
	Segments     []Segment // сегменты в порядке времени
}

// RecognitionEngine интерфейс движка распознавания.
// Вызов синхронный: либо полный результат, либо ошибка, частичных результатов нет.
type RecognitionEngine interface {
	// Transcribe распознаёт аудио (float32, 16kHz, mono) с заданными опциями
	Transcribe(samples []float32, opts DecodingOptions) (*RawResult, error)

	// Name возвращает имя движка (для логирования)
	Name() string

	// Close освобождает ресурсы движка
	Close()
}
