// Package audio реализует опциональное улучшение сигнала перед распознаванием
package audio

import (
	"log"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// EnhanceConfig конфигурация цепочки улучшения аудио
type EnhanceConfig struct {
	// Спектральное вычитание шума
	NoiseReductionEnabled bool
	SuppressionFactor     float64 // какая доля оценки шума вычитается из спектра
	SpectralFloor         float64 // нижняя граница амплитуды как доля исходной

	// Нормализация громкости
	NormalizationEnabled bool
	TargetPeakLevel      float32 // целевой уровень пика

	// Сглаживание скользящим средним по 3 сэмплам
	SmoothingEnabled bool
}

// DefaultEnhanceConfig возвращает конфигурацию по умолчанию
func DefaultEnhanceConfig() EnhanceConfig {
	return EnhanceConfig{
		NoiseReductionEnabled: true,
		SuppressionFactor:     1.0,
		SpectralFloor:         0.02, // не выжигаем спектр в ноль, иначе металлические артефакты
		NormalizationEnabled:  true,
		TargetPeakLevel:       0.9,
		SmoothingEnabled:      true,
	}
}

// Параметры STFT для спектрального вычитания
const (
	enhanceFrameSize = 512 // 32ms при 16kHz
	enhanceHopSize   = 256
	// Первые фреймы клипа считаются шумовым профилем
	noiseProfileSec = 0.25
)

// Enhance применяет цепочку улучшения к декодированному сигналу.
// Возвращает обработанный сигнал и флаг применения. Улучшение строго
// best-effort: любой сбой шага возвращает исходный сигнал без изменений
// и applied=false. Ошибки улучшения никогда не прерывают запрос.
func Enhance(samples []float32, config EnhanceConfig) ([]float32, bool) {
	if len(samples) == 0 {
		return samples, false
	}

	result := make([]float32, len(samples))
	copy(result, samples)

	if config.NoiseReductionEnabled {
		reduced, err := spectralSubtraction(result, config.SuppressionFactor, config.SpectralFloor)
		if err != nil {
			log.Printf("Audio enhancement skipped: %v", err)
			return samples, false
		}
		result = reduced
	}

	if config.NormalizationEnabled {
		result = normalizePeak(result, config.TargetPeakLevel)
	}

	if config.SmoothingEnabled {
		result = movingAverage3(result)
	}

	return result, true
}

// spectralSubtraction подавляет стационарный шум вычитанием его спектрального
// профиля. Профиль оценивается по началу клипа, где речи обычно ещё нет.
func spectralSubtraction(samples []float32, suppression, floor float64) ([]float32, error) {
	if len(samples) < enhanceFrameSize*2 {
		return nil, errTooShort
	}

	fft := fourier.NewFFT(enhanceFrameSize)
	window := hannWindow(enhanceFrameSize)
	numFrames := (len(samples)-enhanceFrameSize)/enhanceHopSize + 1
	numBins := enhanceFrameSize/2 + 1

	noiseFrames := int(noiseProfileSec*TargetSampleRate) / enhanceHopSize
	if noiseFrames < 1 {
		noiseFrames = 1
	}
	if noiseFrames > numFrames {
		noiseFrames = numFrames
	}

	// Оценка шума: средняя амплитуда по начальным фреймам
	noiseProfile := make([]float64, numBins)
	frame := make([]float64, enhanceFrameSize)
	for f := 0; f < noiseFrames; f++ {
		start := f * enhanceHopSize
		for i := 0; i < enhanceFrameSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}
		coeffs := fft.Coefficients(nil, frame)
		for i := 0; i < numBins; i++ {
			noiseProfile[i] += cmplxAbs(coeffs[i])
		}
	}
	for i := range noiseProfile {
		noiseProfile[i] /= float64(noiseFrames)
	}

	// Overlap-add реконструкция с вычтенным шумом
	output := make([]float64, len(samples))
	windowSum := make([]float64, len(samples))

	for f := 0; f < numFrames; f++ {
		start := f * enhanceHopSize
		for i := 0; i < enhanceFrameSize; i++ {
			frame[i] = float64(samples[start+i]) * window[i]
		}
		coeffs := fft.Coefficients(nil, frame)

		for i := 0; i < numBins; i++ {
			mag := cmplxAbs(coeffs[i])
			if mag == 0 {
				continue
			}
			cleaned := mag - suppression*noiseProfile[i]
			if min := floor * mag; cleaned < min {
				cleaned = min
			}
			scale := complex(cleaned/mag, 0)
			coeffs[i] *= scale
		}

		// fft.Sequence возвращает ненормированную последовательность
		restored := fft.Sequence(nil, coeffs)
		for i := 0; i < enhanceFrameSize; i++ {
			output[start+i] += restored[i] / float64(enhanceFrameSize) * window[i]
			windowSum[start+i] += window[i] * window[i]
		}
	}

	result := make([]float32, len(samples))
	for i := range result {
		if windowSum[i] > 1e-6 {
			result[i] = float32(output[i] / windowSum[i])
		} else {
			// Края вне перекрытия окон оставляем как есть
			result[i] = samples[i]
		}
	}
	return result, nil
}

// normalizePeak масштабирует сигнал так, чтобы пик достиг целевого уровня.
// Нулевой пик (тишина) - деление невозможно, сигнал возвращается как есть.
func normalizePeak(samples []float32, targetPeak float32) []float32 {
	var peak float32
	for _, s := range samples {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}

	gain := targetPeak / peak
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = s * gain
	}
	return result
}

// movingAverage3 сглаживает сигнал скользящим средним по трём сэмплам
func movingAverage3(samples []float32) []float32 {
	if len(samples) < 3 {
		return samples
	}

	result := make([]float32, len(samples))
	result[0] = samples[0]
	result[len(samples)-1] = samples[len(samples)-1]
	for i := 1; i < len(samples)-1; i++ {
		result[i] = (samples[i-1] + samples[i] + samples[i+1]) / 3
	}
	return result
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

type enhanceError string

func (e enhanceError) Error() string { return string(e) }

// errTooShort сигнал короче минимума для оценки шумового профиля
const errTooShort = enhanceError("audio too short for noise estimation")
