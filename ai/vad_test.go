package ai

import (
	"math"
	"testing"
)

func TestEnergyEstimatorNoSpeechProbability(t *testing.T) {
	e := NewEnergyEstimator()

	t.Run("too short is silence", func(t *testing.T) {
		samples := make([]float32, SampleRate/20) // 50ms
		for i := range samples {
			samples[i] = 0.5
		}
		if got := e.NoSpeechProbability(samples); got != 1.0 {
			t.Errorf("short clip = %v, want 1.0", got)
		}
	})

	t.Run("digital silence", func(t *testing.T) {
		samples := make([]float32, SampleRate)
		if got := e.NoSpeechProbability(samples); got != 1.0 {
			t.Errorf("silence = %v, want 1.0", got)
		}
	})

	t.Run("loud signal is speech", func(t *testing.T) {
		// Синус с амплитудой 0.5: RMS около 0.35, сильно выше порога
		samples := make([]float32, SampleRate)
		for i := range samples {
			samples[i] = 0.5 * float32(math.Sin(2*math.Pi*440*float64(i)/SampleRate))
		}
		if got := e.NoSpeechProbability(samples); got != 0 {
			t.Errorf("loud signal = %v, want 0", got)
		}
	})

	t.Run("quiet signal in between", func(t *testing.T) {
		// Постоянный уровень 0.01: RMS = 0.01, половина порога
		samples := make([]float32, SampleRate)
		for i := range samples {
			samples[i] = 0.01
		}
		got := e.NoSpeechProbability(samples)
		if math.Abs(got-0.5) > 1e-6 {
			t.Errorf("quiet signal = %v, want 0.5", got)
		}
	})
}

func TestEnergyEstimatorBounds(t *testing.T) {
	e := NewEnergyEstimator()
	levels := []float32{0, 0.001, 0.01, 0.02, 0.1, 1.0}
	for _, level := range levels {
		samples := make([]float32, SampleRate)
		for i := range samples {
			samples[i] = level
		}
		got := e.NoSpeechProbability(samples)
		if got < 0 || got > 1 {
			t.Errorf("level %v: probability %v out of [0,1]", level, got)
		}
	}
}
