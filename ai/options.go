package ai

// Тюнинг-константы декодирования. Подобраны для стабильности и
// воспроизводимости на CPU, не пересчитываются на каждый запрос.
const (
	// DefaultTemperature детерминированный вывод - меньше галлюцинаций
	DefaultTemperature = 0.0
	// DefaultBeamSize ширина beam search
	DefaultBeamSize = 5
	// DefaultCompressionRatioThreshold порог подавления повторяющихся сегментов:
	// если текст сжимается сильнее, движок зациклился
	DefaultCompressionRatioThreshold = 2.4
	// DefaultLogProbThreshold нижний порог средней лог-вероятности токенов
	DefaultLogProbThreshold = -1.0
	// DefaultNoSpeechThreshold порог тишины: выше него пустой результат ожидаем
	DefaultNoSpeechThreshold = 0.6
)

// DecodingOptions полная конфигурация одного вызова движка
type DecodingOptions struct {
	Language                  string  // ISO-код языка, "" = автоопределение
	WordTimestamps            bool    // пословные таймстемпы
	Temperature               float64 // 0 = детерминированное декодирование
	BeamSize                  int
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
	FP16                      bool // выключено: на CPU half precision нестабилен
}

// BuildDecodingOptions строит конфигурацию движка из намерений пользователя.
// Все пороги - фиксированные константы, от пользователя приходят только
// язык и флаг таймстемпов.
func BuildDecodingOptions(language string, timestamps bool) DecodingOptions {
	if language == "auto" {
		language = ""
	}
	return DecodingOptions{
		Language:                  language,
		WordTimestamps:            timestamps,
		Temperature:               DefaultTemperature,
		BeamSize:                  DefaultBeamSize,
		CompressionRatioThreshold: DefaultCompressionRatioThreshold,
		LogProbThreshold:          DefaultLogProbThreshold,
		NoSpeechThreshold:         DefaultNoSpeechThreshold,
		FP16:                      false,
	}
}
