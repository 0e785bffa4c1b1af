package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// MP3Writer стриминговый писатель MP3 через shine-mp3 (чистый Go, без FFmpeg)
type MP3Writer struct {
	dst        io.Writer
	encoder    *mp3.Encoder
	sampleRate int
	channels   int

	// Shine кодирует блоками по 1152 сэмпла на канал, копим до кратного размера
	buffer []int16

	samplesWritten int64
	mu             sync.Mutex
	closed         bool
}

// NewMP3Writer создаёт писатель MP3 поверх произвольного io.Writer
func NewMP3Writer(dst io.Writer, sampleRate, channels int) *MP3Writer {
	return &MP3Writer{
		dst:        dst,
		encoder:    mp3.NewEncoder(sampleRate, channels),
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make([]int16, 0, 8192),
	}
}

// Write записывает float32 сэмплы
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		w.buffer = append(w.buffer, int16(s*32767))
	}
	w.samplesWritten += int64(len(samples))

	// Пишем блоками по 4 фрейма, хвост останется до Close
	minBufferSize := 1152 * w.channels * 4
	if len(w.buffer) >= minBufferSize {
		flushable := len(w.buffer) - len(w.buffer)%(1152*w.channels)
		if err := w.encoder.Write(w.dst, w.buffer[:flushable]); err != nil {
			return fmt.Errorf("encode mp3 block: %w", err)
		}
		w.buffer = append(w.buffer[:0], w.buffer[flushable:]...)
	}

	return nil
}

// SamplesWritten возвращает количество записанных сэмплов
func (w *MP3Writer) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

// Close дописывает хвост буфера, дополненный нулями до границы блока
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.buffer) > 0 {
		blockSize := 1152 * w.channels
		for len(w.buffer)%blockSize != 0 {
			w.buffer = append(w.buffer, 0)
		}
		if err := w.encoder.Write(w.dst, w.buffer); err != nil {
			return fmt.Errorf("encode mp3 tail: %w", err)
		}
		w.buffer = w.buffer[:0]
	}
	return nil
}

// EncodeMP3 кодирует моно float32 сигнал в MP3 целиком
func EncodeMP3(samples []float32, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	writer := NewMP3Writer(&buf, sampleRate, 1)
	if err := writer.Write(samples); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
