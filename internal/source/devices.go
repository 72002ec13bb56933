package source

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// DeviceInfo describes a capture device
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// platformBackends picks the native backend, nil lets miniaudio decide
func platformBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

func initContext() (*malgo.AllocatedContext, error) {
	log := GetLogger()
	ctx, err := malgo.InitContext(platformBackends(), malgo.ContextConfig{}, func(message string) {
		log.Debug("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to initialize audio context: %w", err)).
			Component("source").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	return ctx, nil
}

// ListDevices returns the available capture devices
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to get devices: %w", err)).
			Component("source").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	devices, _ := describeDevices(infos)
	return devices, nil
}

// describeDevices converts malgo device infos and keeps the matching
// native IDs in the same order.
func describeDevices(infos []malgo.DeviceInfo) ([]DeviceInfo, []malgo.DeviceID) {
	devices := make([]DeviceInfo, 0, len(infos))
	ids := make([]malgo.DeviceID, 0, len(infos))
	for i := range infos {
		info := &infos[i]
		id := info.ID.String()
		if decoded, err := hexToASCII(id); err == nil {
			id = strings.TrimRight(decoded, "\x00")
		}
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			ID:        id,
			IsDefault: info.IsDefault == 1,
		})
		ids = append(ids, info.ID)
	}
	return devices, ids
}

// matchDevice returns the index of the device selected by want. An empty
// want or "sysdefault" selects the system default, and -1 means let the
// backend choose. Otherwise want matches a device ID exactly or a name
// substring.
func matchDevice(devices []DeviceInfo, want string) (int, error) {
	if want == "" || want == "sysdefault" {
		for _, d := range devices {
			if d.IsDefault {
				return d.Index, nil
			}
		}
		return -1, nil
	}

	for _, d := range devices {
		if d.ID == want {
			return d.Index, nil
		}
	}
	for _, d := range devices {
		if strings.Contains(d.Name, want) {
			return d.Index, nil
		}
	}
	return 0, errors.Newf("no capture device matches %q", want).
		Component("source").
		Category(errors.CategoryAudioSource).
		Context("operation", "select_device").
		Build()
}

func hexToASCII(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
