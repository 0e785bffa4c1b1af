package audio

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// Device описывает аудио устройство захвата
type Device struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsInput bool   `json:"isInput"`
}

// Capture управляет захватом аудио с микрофона.
// Сэмплы отдаются сразу в формате конвейера: моно float32, 16 kHz.
type Capture struct {
	ctx *malgo.AllocatedContext

	device   *malgo.Device
	deviceID *malgo.DeviceID

	dataChan chan []float32
	mu       sync.Mutex
	running  bool
}

// NewCapture создаёт контекст захвата
func NewCapture() (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	return &Capture{
		ctx:      ctx,
		dataChan: make(chan []float32, 1000), // большой буфер чтобы не терять данные
	}, nil
}

// ListDevices возвращает список доступных устройств захвата
func (c *Capture) ListDevices() ([]Device, error) {
	captureDevices, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	var devices []Device
	for _, dev := range captureDevices {
		devices = append(devices, Device{
			ID:      deviceIDToString(dev.ID),
			Name:    dev.Name(),
			IsInput: true,
		})
	}
	return devices, nil
}

// FindDeviceByName ищет устройство по имени (частичное совпадение)
func (c *Capture) FindDeviceByName(name string) (*malgo.DeviceID, error) {
	devices, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}

	nameLower := strings.ToLower(name)
	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.Name()), nameLower) {
			id := dev.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// SetDeviceByName устанавливает устройство захвата по имени
func (c *Capture) SetDeviceByName(name string) error {
	if name == "" {
		c.deviceID = nil
		return nil
	}

	id, err := c.FindDeviceByName(name)
	if err != nil {
		return err
	}
	c.deviceID = id
	log.Printf("Capture device set: %s", name)
	return nil
}

// SetDevice устанавливает устройство захвата по ID, пусто = системное по умолчанию
func (c *Capture) SetDevice(deviceID string) error {
	if deviceID == "" || deviceID == "default" {
		c.deviceID = nil
		return nil
	}

	id, err := stringToDeviceID(deviceID)
	if err != nil {
		return err
	}
	c.deviceID = id
	return nil
}

// Start начинает захват с микрофона
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("already running")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = TargetSampleRate
	deviceConfig.Alsa.NoMMap = 1

	if c.deviceID != nil {
		deviceConfig.Capture.DeviceID = c.deviceID.Pointer()
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		sampleCount := int(framecount)
		if len(pInputSamples) != sampleCount*4 {
			return
		}

		samples := make([]float32, sampleCount)
		for i := 0; i < sampleCount; i++ {
			bits := uint32(pInputSamples[i*4]) | uint32(pInputSamples[i*4+1])<<8 |
				uint32(pInputSamples[i*4+2])<<16 | uint32(pInputSamples[i*4+3])<<24
			samples[i] = math.Float32frombits(bits)
		}

		// Блокируемся если буфер полон - данные важнее задержки
		c.dataChan <- samples
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("failed to init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.device = device
	c.running = true
	log.Println("Microphone capture started")
	return nil
}

// Stop останавливает захват
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.running = false
	log.Println("Microphone capture stopped")
	return nil
}

// Data возвращает канал с захваченными сэмплами
func (c *Capture) Data() <-chan []float32 {
	return c.dataChan
}

// ClearBuffer выбрасывает накопленные сэмплы перед новой записью
func (c *Capture) ClearBuffer() {
	for {
		select {
		case <-c.dataChan:
		default:
			return
		}
	}
}

// Close освобождает ресурсы
func (c *Capture) Close() {
	c.Stop()
	if c.ctx != nil {
		c.ctx.Uninit()
		c.ctx.Free()
	}
}

// Вспомогательные функции для конвертации DeviceID
func deviceIDToString(id malgo.DeviceID) string {
	var result strings.Builder
	for _, b := range id[:32] {
		if b == 0 {
			break
		}
		result.WriteByte(b)
	}
	return result.String()
}

func stringToDeviceID(s string) (*malgo.DeviceID, error) {
	if len(s) > 32 {
		return nil, fmt.Errorf("device ID too long")
	}
	var id malgo.DeviceID
	copy(id[:], []byte(s))
	return &id, nil
}
