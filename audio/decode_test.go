package audio

import (
	"errors"
	"math"
	"testing"
)

// makeSine генерирует тестовый синус заданной длительности
func makeSine(freq float64, rate int, seconds float64) []float32 {
	samples := make([]float32, int(float64(rate)*seconds))
	for i := range samples {
		samples[i] = 0.5 * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return samples
}

func TestDecodeWAVRoundtrip(t *testing.T) {
	original := makeSine(440, TargetSampleRate, 0.5)
	data := EncodeWAV(original, TargetSampleRate)

	decoded, err := Decode(data, "wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: got %d, want %d", len(decoded), len(original))
	}

	// 16-bit квантование даёт погрешность ~3e-5
	for i := range original {
		if diff := math.Abs(float64(decoded[i] - original[i])); diff > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v (diff %v)", i, decoded[i], original[i], diff)
		}
	}
}

func TestDecodeUnknownExtensionFallsBackToWAV(t *testing.T) {
	data := EncodeWAV(makeSine(200, TargetSampleRate, 0.1), TargetSampleRate)

	for _, ext := range []string{"", "bin", ".WAVE", "wav"} {
		if _, err := Decode(data, ext); err != nil {
			t.Errorf("Decode with ext %q failed: %v", ext, err)
		}
	}
}

func TestDecodeResamplesToTarget(t *testing.T) {
	original := makeSine(100, 8000, 0.5)
	data := EncodeWAV(original, 8000)

	decoded, err := Decode(data, "wav")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := len(original) * TargetSampleRate / 8000
	if len(decoded) < want-2 || len(decoded) > want+2 {
		t.Errorf("resampled length = %d, want about %d", len(decoded), want)
	}
}

func TestDecodeCorruptInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not audio")},
		{"truncated header", []byte("RIFF\x00\x00")},
		{"riff without chunks", append([]byte("RIFF"), append([]byte{0, 0, 0, 0}, []byte("WAVE")...)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, "wav")
			if err == nil {
				t.Fatal("expected error")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("want DecodeError, got %T: %v", err, err)
			}
			if decodeErr.Format != "wav" {
				t.Errorf("error format = %q, want wav", decodeErr.Format)
			}
		})
	}
}

func TestDecodeLenient(t *testing.T) {
	t.Run("raw pcm without container", func(t *testing.T) {
		// 4 сэмпла 16-bit LE: 0, 16384, -16384, 32767
		raw := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F}
		samples, err := DecodeLenient(raw)
		if err != nil {
			t.Fatalf("DecodeLenient failed: %v", err)
		}
		if len(samples) != 4 {
			t.Fatalf("got %d samples, want 4", len(samples))
		}
		if samples[0] != 0 || samples[1] != 0.5 || samples[2] != -0.5 {
			t.Errorf("unexpected samples: %v", samples)
		}
	})

	t.Run("skips header up to data marker", func(t *testing.T) {
		original := makeSine(440, TargetSampleRate, 0.1)
		data := EncodeWAV(original, TargetSampleRate)

		samples, err := DecodeLenient(data)
		if err != nil {
			t.Fatalf("DecodeLenient failed: %v", err)
		}
		if len(samples) != len(original) {
			t.Errorf("got %d samples, want %d", len(samples), len(original))
		}
	})

	t.Run("no payload", func(t *testing.T) {
		if _, err := DecodeLenient([]byte{0x01}); err == nil {
			t.Error("expected error for single byte")
		}
	})
}

func TestNormalizeFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"wav", "wav"},
		{".wav", "wav"},
		{"WAVE", "wav"},
		{"mp3", "mp3"},
		{".MP3", "mp3"},
		{"", "wav"},
		{"ogg", "wav"},
	}
	for _, tt := range tests {
		if got := normalizeFormat(tt.ext); got != tt.want {
			t.Errorf("normalizeFormat(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestDownmixMono(t *testing.T) {
	stereo := []float32{1, 0, 0.5, -0.5, -1, 1}
	mono := downmixMono(stereo, 2)

	want := []float32{0.5, 0, 0}
	if len(mono) != len(want) {
		t.Fatalf("got %d frames, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, mono[i], want[i])
		}
	}

	// Моно проходит без изменений
	single := []float32{0.1, 0.2}
	if got := downmixMono(single, 1); &got[0] != &single[0] {
		t.Error("mono input must pass through")
	}
}

func TestResampleLinear(t *testing.T) {
	t.Run("upsample doubles length", func(t *testing.T) {
		src := []float32{0, 1, 0, -1}
		got := resampleLinear(src, 8000, 16000)
		if len(got) != 8 {
			t.Fatalf("got %d samples, want 8", len(got))
		}
		// Интерполированная середина между 0 и 1
		if got[1] != 0.5 {
			t.Errorf("interpolated sample = %v, want 0.5", got[1])
		}
	})

	t.Run("downsample halves length", func(t *testing.T) {
		src := make([]float32, 100)
		got := resampleLinear(src, 32000, 16000)
		if len(got) != 50 {
			t.Errorf("got %d samples, want 50", len(got))
		}
	})

	t.Run("same rate passes through", func(t *testing.T) {
		src := []float32{0.1, 0.2}
		if got := resampleLinear(src, 16000, 16000); &got[0] != &src[0] {
			t.Error("same rate must pass through")
		}
	})
}
