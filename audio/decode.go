// Package audio декодирует и подготавливает аудио для распознавания
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// TargetSampleRate частота дискретизации конвейера распознавания
const TargetSampleRate = 16000

// DecodeError ошибка декодирования входного аудио.
// Нефатальна для запроса: исходные байты сохраняются без изменений.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s audio: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode декодирует wav или mp3 в моно float32 на 16 kHz.
// Неизвестное или пустое расширение трактуется как wav.
func Decode(data []byte, ext string) ([]float32, error) {
	format := normalizeFormat(ext)

	var samples []float32
	var srcRate int
	var err error

	switch format {
	case "mp3":
		samples, srcRate, err = decodeMP3(data)
	default:
		samples, srcRate, err = decodeWAV(data)
	}
	if err != nil {
		return nil, &DecodeError{Format: format, Err: err}
	}

	if srcRate != TargetSampleRate {
		samples = resampleLinear(samples, srcRate, TargetSampleRate)
	}

	log.Printf("Audio decoded: format=%s rate=%d -> %d samples (%.1fs)",
		format, srcRate, len(samples), float64(len(samples))/TargetSampleRate)
	return samples, nil
}

// DecodeLenient повторная попытка декодирования после неудачи Decode.
// Трактует вход как 16-bit PCM моно 16 kHz, пропуская заголовок если он есть.
func DecodeLenient(data []byte) ([]float32, error) {
	pcm := data
	if idx := bytes.Index(data, []byte("data")); idx >= 0 && idx+8 < len(data) {
		pcm = data[idx+8:]
	}
	if len(pcm) < 2 {
		return nil, &DecodeError{Format: "pcm", Err: fmt.Errorf("no PCM payload")}
	}

	samples := pcm16ToFloat32(pcm[:len(pcm)&^1])
	log.Printf("Audio decoded leniently as raw PCM: %d samples", len(samples))
	return samples, nil
}

// normalizeFormat приводит расширение к известному формату, fallback - wav
func normalizeFormat(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	switch ext {
	case "mp3":
		return "mp3"
	case "wav", "wave":
		return "wav"
	default:
		return "wav"
	}
}

// decodeWAV разбирает RIFF/WAVE контейнер.
// Поддерживаются 16-bit PCM и 32-bit IEEE float, любое число каналов.
func decodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		audioFormat   uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		pcmData       []byte
	)

	// Идём по чанкам: fmt до data, неизвестные пропускаем
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if chunkSize < 0 || body > len(data) {
			return nil, 0, fmt.Errorf("corrupt chunk %q", chunkID)
		}
		end := body + chunkSize
		if end > len(data) {
			// Усечённый data-чанк читаем сколько есть
			end = len(data)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
		case "data":
			pcmData = data[body:end]
		}

		// Чанки выравниваются по чётной границе
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
		if pcmData != nil && audioFormat != 0 {
			break
		}
	}

	if audioFormat == 0 {
		return nil, 0, fmt.Errorf("fmt chunk not found")
	}
	if pcmData == nil {
		return nil, 0, fmt.Errorf("data chunk not found")
	}
	if channels == 0 || sampleRate == 0 {
		return nil, 0, fmt.Errorf("invalid format: channels=%d rate=%d", channels, sampleRate)
	}

	var interleaved []float32
	switch {
	case audioFormat == 1 && bitsPerSample == 16:
		interleaved = pcm16ToFloat32(pcmData[:len(pcmData)&^1])
	case audioFormat == 3 && bitsPerSample == 32:
		count := len(pcmData) / 4
		interleaved = make([]float32, count)
		for i := 0; i < count; i++ {
			bits := binary.LittleEndian.Uint32(pcmData[i*4:])
			interleaved[i] = math.Float32frombits(bits)
		}
	default:
		return nil, 0, fmt.Errorf("unsupported encoding: format=%d bits=%d", audioFormat, bitsPerSample)
	}

	return downmixMono(interleaved, int(channels)), int(sampleRate), nil
}

// decodeMP3 декодирует MP3 через go-mp3.
// go-mp3 всегда отдаёт signed 16-bit stereo interleaved.
func decodeMP3(data []byte) ([]float32, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create MP3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM data: %w", err)
	}

	interleaved := pcm16ToFloat32(pcm[:len(pcm)&^3])
	return downmixMono(interleaved, 2), decoder.SampleRate(), nil
}

// pcm16ToFloat32 конвертирует signed 16-bit little-endian PCM в [-1, 1]
func pcm16ToFloat32(pcm []byte) []float32 {
	count := len(pcm) / 2
	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples
}

// downmixMono усредняет каналы interleaved сигнала в моно
func downmixMono(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear выполняет линейную интерполяцию для ресемплинга
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx+1 < len(samples) {
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		} else if srcIdx < len(samples) {
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}
