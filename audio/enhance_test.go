package audio

import (
	"math"
	"testing"
)

func TestEnhanceTooShort(t *testing.T) {
	// Короче двух фреймов STFT - шумовой профиль не оценить
	samples := make([]float32, enhanceFrameSize)
	for i := range samples {
		samples[i] = 0.3
	}

	result, applied := Enhance(samples, DefaultEnhanceConfig())
	if applied {
		t.Error("enhancement must not apply to short audio")
	}
	for i := range samples {
		if result[i] != samples[i] {
			t.Fatalf("sample %d changed: %v -> %v", i, samples[i], result[i])
		}
	}
}

func TestEnhanceEmpty(t *testing.T) {
	result, applied := Enhance(nil, DefaultEnhanceConfig())
	if applied || len(result) != 0 {
		t.Errorf("empty input: applied=%v len=%d", applied, len(result))
	}
}

func TestEnhanceAppliesToLongSignal(t *testing.T) {
	samples := makeSine(440, TargetSampleRate, 1.0)

	result, applied := Enhance(samples, DefaultEnhanceConfig())
	if !applied {
		t.Fatal("enhancement must apply to a one second clip")
	}
	if len(result) != len(samples) {
		t.Fatalf("length changed: %d -> %d", len(samples), len(result))
	}

	// Исходный сигнал не мутируется
	expected := makeSine(440, TargetSampleRate, 1.0)
	for i := range samples {
		if samples[i] != expected[i] {
			t.Fatal("input slice was mutated")
		}
	}
}

func TestEnhanceNormalizationOnly(t *testing.T) {
	samples := makeSine(440, TargetSampleRate, 0.5) // пик 0.5
	config := EnhanceConfig{
		NormalizationEnabled: true,
		TargetPeakLevel:      0.9,
	}

	result, applied := Enhance(samples, config)
	if !applied {
		t.Fatal("normalization-only config must apply")
	}

	var peak float32
	for _, s := range result {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	if math.Abs(float64(peak)-0.9) > 1e-3 {
		t.Errorf("peak after normalization = %v, want 0.9", peak)
	}
}

func TestNormalizePeak(t *testing.T) {
	got := normalizePeak([]float32{0.1, -0.2}, 0.9)
	if math.Abs(float64(got[0])-0.45) > 1e-6 || math.Abs(float64(got[1])+0.9) > 1e-6 {
		t.Errorf("normalizePeak = %v, want [0.45 -0.9]", got)
	}

	// Тишина: деление на нулевой пик невозможно
	silence := []float32{0, 0, 0}
	if got := normalizePeak(silence, 0.9); &got[0] != &silence[0] {
		t.Error("silence must pass through unchanged")
	}
}

func TestMovingAverage3(t *testing.T) {
	got := movingAverage3([]float32{3, 0, 3, 0, 3})
	want := []float32{3, 2, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}

	short := []float32{1, 2}
	if got := movingAverage3(short); &got[0] != &short[0] {
		t.Error("short input must pass through")
	}
}

func TestSpectralSubtractionPreservesLength(t *testing.T) {
	samples := makeSine(440, TargetSampleRate, 0.5)
	result, err := spectralSubtraction(samples, 1.0, 0.02)
	if err != nil {
		t.Fatalf("spectralSubtraction failed: %v", err)
	}
	if len(result) != len(samples) {
		t.Errorf("length changed: %d -> %d", len(samples), len(result))
	}

	// Чистый синус в центре клипа должен сохраниться хотя бы частично
	var energy float64
	for _, s := range result[len(result)/4 : len(result)/2] {
		energy += float64(s * s)
	}
	if energy == 0 {
		t.Error("signal completely destroyed by subtraction")
	}
}

func TestSpectralSubtractionReducesStationaryTone(t *testing.T) {
	// Стационарный тон присутствует и в шумовом профиле (первые 0.25s),
	// и дальше по клипу - вычитание должно его заметно ослабить
	samples := makeSine(3000, TargetSampleRate, 1.0)

	result, err := spectralSubtraction(samples, 1.0, 0.02)
	if err != nil {
		t.Fatalf("spectralSubtraction failed: %v", err)
	}

	var before, after float64
	for _, s := range samples[len(samples)/2:] {
		before += float64(s * s)
	}
	for _, s := range result[len(result)/2:] {
		after += float64(s * s)
	}
	if after >= before/2 {
		t.Errorf("stationary tone not attenuated: energy %v -> %v", before, after)
	}
}

func TestHannWindow(t *testing.T) {
	w := hannWindow(enhanceFrameSize)
	if w[0] > 1e-9 || w[len(w)-1] > 1e-9 {
		t.Errorf("window edges must be zero: %v, %v", w[0], w[len(w)-1])
	}
	mid := w[len(w)/2]
	if math.Abs(mid-1.0) > 1e-3 {
		t.Errorf("window center = %v, want about 1", mid)
	}
}
