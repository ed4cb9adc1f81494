package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audioroute/internal/errors"
)

// DeviceKind distinguishes capture from playback devices.
type DeviceKind string

const (
	KindCapture  DeviceKind = "capture"
	KindPlayback DeviceKind = "playback"
)

// DeviceInfo describes an audio device reported by the backend.
type DeviceInfo struct {
	Index     int
	Kind      DeviceKind
	Name      string
	ID        string
	IsDefault bool
}

// backends maps a configured backend name to the malgo backend list.
// "auto" picks the native backend of the platform; a nil list lets
// miniaudio try every backend it was built with.
func backends(name string) ([]malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		switch runtime.GOOS {
		case "linux":
			return []malgo.Backend{malgo.BackendAlsa}, nil
		case "windows":
			return []malgo.Backend{malgo.BackendWasapi}, nil
		case "darwin":
			return []malgo.Backend{malgo.BackendCoreaudio}, nil
		}
		return nil, nil
	case "alsa":
		return []malgo.Backend{malgo.BackendAlsa}, nil
	case "pulse":
		return []malgo.Backend{malgo.BackendPulseaudio}, nil
	case "jack":
		return []malgo.Backend{malgo.BackendJack}, nil
	case "wasapi":
		return []malgo.Backend{malgo.BackendWasapi}, nil
	case "coreaudio":
		return []malgo.Backend{malgo.BackendCoreaudio}, nil
	case "null":
		return []malgo.Backend{malgo.BackendNull}, nil
	}
	return nil, errors.Newf("unknown audio backend %q", name).
		Component(ComponentHost).
		Category(errors.CategoryConfiguration).
		Context("backend", name).
		Build()
}

func malgoKind(kind DeviceKind) malgo.DeviceType {
	if kind == KindPlayback {
		return malgo.Playback
	}
	return malgo.Capture
}

// ListDevices returns the capture and playback devices of a backend.
func ListDevices(backend string) ([]DeviceInfo, error) {
	list, err := backends(backend)
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext(list, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Context("backend", backend).
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	var devices []DeviceInfo
	for _, kind := range []DeviceKind{KindCapture, KindPlayback} {
		infos, err := ctx.Devices(malgoKind(kind))
		if err != nil {
			return nil, errors.New(err).
				Component(ComponentHost).
				Category(errors.CategoryAudioSource).
				Context("operation", "enumerate_devices").
				Context("kind", string(kind)).
				Build()
		}
		for i := range infos {
			devices = append(devices, DeviceInfo{
				Index:     i,
				Kind:      kind,
				Name:      infos[i].Name(),
				ID:        decodeID(infos[i].ID.String()),
				IsDefault: infos[i].IsDefault != 0,
			})
		}
	}
	return devices, nil
}

// findDevice returns the device of kind matching want, or nil for the
// backend default.
func findDevice(ctx *malgo.AllocatedContext, kind DeviceKind, want string) (*malgo.DeviceInfo, error) {
	if isDefaultName(want) {
		return nil, nil
	}
	infos, err := ctx.Devices(malgoKind(kind))
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "enumerate_devices").
			Context("kind", string(kind)).
			Build()
	}

	candidates := make([]DeviceInfo, len(infos))
	for i := range infos {
		candidates[i] = DeviceInfo{
			Index:     i,
			Kind:      kind,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault != 0,
		}
	}
	idx := matchDevice(candidates, want)
	if idx < 0 {
		return nil, errors.Newf("no %s device matches %q", kind, want).
			Component(ComponentHost).
			Category(errors.CategoryNotFound).
			Context("device_name", want).
			Context("available_devices", len(infos)).
			Build()
	}
	return &infos[idx], nil
}

func isDefaultName(name string) bool {
	switch name {
	case "", "default", "sysdefault":
		return true
	}
	return false
}

// matchDevice returns the index of the device matching want: an exact
// name, then a decoded ID, then a name substring. It returns -1 if none
// matches.
func matchDevice(devices []DeviceInfo, want string) int {
	for i := range devices {
		if devices[i].Name == want {
			return i
		}
	}
	for i := range devices {
		if devices[i].ID == want {
			return i
		}
	}
	for i := range devices {
		if strings.Contains(devices[i].Name, want) {
			return i
		}
	}
	return -1
}

// decodeID turns the hex device ID reported by malgo into the readable ID
// used by the backend, such as ":0,0" for ALSA hardware devices.
func decodeID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(raw), "\x00")
}
