package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// restartDelay is the pause before restarting a device that stopped
// unexpectedly
const restartDelay = 100 * time.Millisecond

// CaptureConfig selects the capture device and format
type CaptureConfig struct {
	Device    string // ID or name substring, empty for the system default
	Format    audio.Format
	BlockSize int // frames per callback, 0 for the backend default
}

// Capture records float32 audio from a sound card into a Sink
type Capture struct {
	cfg    CaptureConfig
	sink   Sink
	log    logger.Logger
	frames atomic.Uint64
}

// NewCapture creates a capture source. Nothing is opened until Run.
func NewCapture(cfg CaptureConfig, sink Sink) (*Capture, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, errors.New(err).
			Component("source").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Capture{
		cfg:  cfg,
		sink: sink,
		log:  GetLogger().With(logger.String("source", "capture")),
	}, nil
}

// Frames returns the number of frames delivered so far
func (c *Capture) Frames() uint64 {
	return c.frames.Load()
}

// Run opens the device and streams audio until ctx is done
func (c *Capture) Run(ctx context.Context) error {
	mctx, err := initContext()
	if err != nil {
		return err
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return captureError(fmt.Errorf("failed to get devices: %w", err), "list_devices")
	}
	devices, ids := describeDevices(infos)
	idx, err := matchDevice(devices, c.cfg.Device)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(c.cfg.Format.Channels)
	deviceConfig.SampleRate = uint32(c.cfg.Format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if c.cfg.BlockSize > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(c.cfg.BlockSize)
	}
	name := "system default"
	if idx >= 0 {
		deviceConfig.Capture.DeviceID = ids[idx].Pointer()
		name = devices[idx].Name
	}

	var device *malgo.Device
	var stopping atomic.Bool

	// The callback runs on the audio thread. The block buffer is reused
	// because Feed copies the samples.
	var block []float32
	onData := func(_, input []byte, frameCount uint32) {
		block = audio.BytesToFloat32(block, input)
		c.frames.Add(uint64(frameCount))
		c.sink.Feed(block)
	}

	onStop := func() {
		if stopping.Load() {
			return
		}
		go func() {
			select {
			case <-ctx.Done():
			case <-time.After(restartDelay):
				c.log.Warn("capture device stopped unexpectedly, restarting")
				if err := device.Start(); err != nil {
					c.log.Error("failed to restart capture device", logger.Error(err))
				}
			}
		}()
	}

	device, err = malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
		Stop: onStop,
	})
	if err != nil {
		return captureError(fmt.Errorf("device init failed: %w", err), "init_device")
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return captureError(fmt.Errorf("device start failed: %w", err), "start_device")
	}

	c.log.Info("listening on capture device",
		logger.String("device", name),
		logger.String("format", c.cfg.Format.String()))

	<-ctx.Done()
	stopping.Store(true)
	if err := device.Stop(); err != nil {
		c.log.Warn("failed to stop capture device", logger.Error(err))
	}
	c.log.Info("capture stopped", logger.Uint64("frames", c.frames.Load()))
	return nil
}

func captureError(err error, op string) error {
	return errors.New(err).
		Component("source").
		Category(errors.CategoryAudioSource).
		Context("operation", op).
		Build()
}
