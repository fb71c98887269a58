// ABOUTME: Malgo-based capture implementation for microphones and system loopback
// ABOUTME: Uses miniaudio via malgo and converts device buffers to float frames
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Resonate-Protocol/resonate-captions/pkg/audio"
	"github.com/Resonate-Protocol/resonate-captions/pkg/audio/resample"
)

var errDeviceStopped = errors.New("device stopped unexpectedly")

// Malgo captures from a miniaudio device. miniaudio delivers fixed-size
// callbacks of the requested period, so any size in range can be negotiated.
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	params   OpenParams
	info     DeviceInfo
	deviceID *malgo.DeviceID
	opened   bool
	stopping bool

	onFrame FrameFunc
	onError func(error)

	// callback-owned conversion buffer
	samples []float32
}

// NewMalgo creates a new Malgo capture source
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Open resolves the device and probes the format it will deliver
func (m *Malgo) Open(ctx context.Context, params OpenParams) (DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return DeviceInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return DeviceInfo{}, &DeviceError{Device: params.DeviceID, Op: "init context", Err: err}
		}
		m.malgoCtx = mctx
	}

	name := "default"
	m.deviceID = nil
	if params.DeviceID != "" {
		dev, err := findDevice(m.malgoCtx, params.DeviceID)
		if err != nil {
			return DeviceInfo{}, &DeviceError{Device: params.DeviceID, Op: "open", Err: err}
		}
		id := dev.ID
		m.deviceID = &id
		name = dev.Name()
	}
	if params.Loopback {
		name += " (loopback)"
	}

	// Probe with the caller's hints to learn what the backend really delivers
	probe, err := malgo.InitDevice(m.malgoCtx.Context, m.deviceConfig(params, params.BufferFrames), malgo.DeviceCallbacks{})
	if err != nil {
		return DeviceInfo{}, &DeviceError{Device: name, Op: "open", Err: err}
	}
	rate := int(probe.SampleRate())
	channels := int(probe.CaptureChannels())
	rawFormat := probe.CaptureFormat()
	probe.Uninit()

	format := fromMalgoFormat(rawFormat)
	if format == audio.FormatUnknown {
		return DeviceInfo{}, &DeviceError{Device: name, Op: "open", Err: fmt.Errorf("unsupported sample format %d", rawFormat)}
	}

	m.params = params
	m.params.SampleRate = rate
	m.params.Channels = channels
	m.info = DeviceInfo{
		ID:          params.DeviceID,
		Name:        name,
		SampleRate:  rate,
		Channels:    channels,
		Format:      format,
		BufferSizes: resample.RangeSizes(MinBufferFrames, MaxBufferFrames),
	}
	m.opened = true

	log.Printf("Capture device opened: %s", m.info)
	return m.info, nil
}

func (m *Malgo) deviceConfig(params OpenParams, periodFrames int) malgo.DeviceConfig {
	kind := malgo.Capture
	if params.Loopback {
		kind = malgo.Loopback
	}
	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(params.Channels)
	cfg.SampleRate = uint32(params.SampleRate)
	if periodFrames > 0 {
		cfg.PeriodSizeInFrames = uint32(periodFrames)
	}
	if m.deviceID != nil {
		cfg.Capture.DeviceID = m.deviceID.Pointer()
	}
	cfg.Alsa.NoMMap = 1
	return cfg
}

func (m *Malgo) OnFrames(fn FrameFunc) {
	m.mu.Lock()
	m.onFrame = fn
	m.mu.Unlock()
}

func (m *Malgo) OnError(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// Start initializes the device with a blockFrames period and starts it
func (m *Malgo) Start(blockFrames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened {
		return ErrNotOpen
	}
	if m.device != nil {
		return fmt.Errorf("capture: %s already started", m.info.Name)
	}

	m.samples = make([]float32, blockFrames*m.info.Channels)
	onFrame, onError := m.onFrame, m.onError

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			m.dataCallback(pInput, int(frameCount), onFrame)
		},
		Stop: func() {
			m.mu.Lock()
			expected := m.stopping
			m.mu.Unlock()
			if !expected && onError != nil {
				onError(&DeviceError{Device: m.info.Name, Op: "stream", Err: errDeviceStopped})
			}
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, m.deviceConfig(m.params, blockFrames), callbacks)
	if err != nil {
		return &DeviceError{Device: m.info.Name, Op: "start", Err: err}
	}
	if int(device.SampleRate()) != m.info.SampleRate || int(device.CaptureChannels()) != m.info.Channels {
		device.Uninit()
		return &DeviceError{Device: m.info.Name, Op: "start", Err: fmt.Errorf("format changed to %dHz/%dch since open",
			device.SampleRate(), device.CaptureChannels())}
	}

	m.stopping = false
	if err := device.Start(); err != nil {
		device.Uninit()
		return &DeviceError{Device: m.info.Name, Op: "start", Err: err}
	}
	m.device = device

	log.Printf("Capture started: %d frames per callback", blockFrames)
	return nil
}

// dataCallback runs on the miniaudio thread
func (m *Malgo) dataCallback(input []byte, frames int, onFrame FrameFunc) {
	if onFrame == nil {
		return
	}
	channels := m.info.Channels
	need := frames * channels
	if need > len(m.samples) {
		// Only happens if the backend ignores the period size
		m.samples = make([]float32, need)
	}
	n := audio.DecodeInto(m.samples[:need], input, m.info.Format)

	onFrame(audio.FrameBatch{
		SampleRate: m.info.SampleRate,
		Channels:   channels,
		Frames:     n / channels,
		Format:     m.info.Format,
		Samples:    m.samples[:n],
	})
}

// Stop halts the device
func (m *Malgo) Stop() error {
	m.mu.Lock()
	device := m.device
	m.device = nil
	m.stopping = true
	m.mu.Unlock()

	if device == nil {
		return nil
	}
	if err := device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	device.Uninit()
	return nil
}

// Close releases the device and the malgo context
func (m *Malgo) Close() error {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.opened = false
	return nil
}

// Device describes an available capture device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// ListDevices enumerates capture devices
func ListDevices() ([]Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      info.ID.String(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

func findDevice(mctx *malgo.AllocatedContext, id string) (malgo.DeviceInfo, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, info := range infos {
		if info.ID.String() == id || info.Name() == id {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("no capture device matches %q", id)
}

// fromMalgoFormat maps a malgo format to a sample format
func fromMalgoFormat(format malgo.FormatType) audio.SampleFormat {
	switch format {
	case malgo.FormatS16:
		return audio.FormatS16
	case malgo.FormatS24:
		return audio.FormatS24
	case malgo.FormatS32:
		return audio.FormatS32
	case malgo.FormatF32:
		return audio.FormatF32
	default:
		return audio.FormatUnknown
	}
}
