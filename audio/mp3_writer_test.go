package audio

import (
	"bytes"
	"errors"
	"testing"
)

// failingWriter всегда отказывает, имитируя переполненный диск
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestEncodeMP3(t *testing.T) {
	samples := makeSine(440, TargetSampleRate, 0.5)

	data, err := EncodeMP3(samples, TargetSampleRate)
	if err != nil {
		t.Fatalf("EncodeMP3 failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("encoder produced no data")
	}
	// MP3 фрейм начинается с sync-маркера 0xFF
	if data[0] != 0xFF {
		t.Errorf("missing frame sync: first byte = %#x", data[0])
	}
}

func TestMP3WriterSamplesWritten(t *testing.T) {
	writer := NewMP3Writer(&bytes.Buffer{}, TargetSampleRate, 1)
	defer writer.Close()

	if err := writer.Write(make([]float32, 100)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Write(make([]float32, 50)); err != nil {
		t.Fatal(err)
	}
	if got := writer.SamplesWritten(); got != 150 {
		t.Errorf("SamplesWritten = %d, want 150", got)
	}
}

func TestMP3WriterClosedRejectsWrites(t *testing.T) {
	writer := NewMP3Writer(&bytes.Buffer{}, TargetSampleRate, 1)
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := writer.Write([]float32{0.1}); err == nil {
		t.Error("write after close must fail")
	}
}

func TestMP3WriterPropagatesWriteError(t *testing.T) {
	writer := NewMP3Writer(failingWriter{}, TargetSampleRate, 1)

	// Достаточно сэмплов, чтобы блок ушёл в назначение прямо из Write
	err := writer.Write(make([]float32, 1152*4))
	if err == nil {
		t.Error("destination failure must surface from Write")
	}
}

func TestMP3WriterPropagatesCloseError(t *testing.T) {
	writer := NewMP3Writer(failingWriter{}, TargetSampleRate, 1)

	// Хвост меньше блока остаётся в буфере до Close
	if err := writer.Write(make([]float32, 100)); err != nil {
		t.Fatalf("buffered write must not touch the destination: %v", err)
	}
	if err := writer.Close(); err == nil {
		t.Error("destination failure must surface from Close")
	}
}
