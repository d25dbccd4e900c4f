// Package audio handles Pulse device discovery, selection, and PCM recording.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/shadow/internal/capture"
)

const defaultSampleRate = 16000

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func connect() (*pulse.Client, error) {
	return pulse.NewClient(
		pulse.ClientApplicationName("shadow"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
}

// ListDevices returns Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()
	return listDevices(client)
}

func listDevices(client *pulse.Client) ([]Device, error) {
	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", capture.ErrCaptureUnsupported, err)
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
// Errors wrap capture.ErrDeviceNotFound or capture.ErrDeviceBusy.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, fmt.Errorf("%w: no audio input devices found", capture.ErrDeviceNotFound)
	}

	var (
		defaultDevice *Device
		byInput       *Device
		byFallback    *Device
	)

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && input != "default" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && fallback != "default" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	chooseDefault := func() (*Device, error) {
		if defaultDevice == nil {
			return nil, fmt.Errorf("%w: default audio source is unavailable", capture.ErrDeviceNotFound)
		}
		return defaultDevice, nil
	}

	var primary *Device
	switch {
	case input == "" || input == "default":
		d, err := chooseDefault()
		if err != nil {
			return Selection{}, err
		}
		primary = d
	case byInput != nil:
		primary = byInput
	default:
		return Selection{}, fmt.Errorf("%w: audio.input %q did not match any device", capture.ErrDeviceNotFound, input)
	}

	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	var chosen *Device
	if fallback != "" && fallback != "default" {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("%w: primary input %q is %s and fallback %q not found", capture.ErrDeviceBusy, primary.ID, primaryReason, fallback)
		}
		chosen = byFallback
	} else {
		d, err := chooseDefault()
		if err != nil {
			return Selection{}, fmt.Errorf("%w: primary input %q is %s and no usable fallback", capture.ErrDeviceBusy, primary.ID, primaryReason)
		}
		chosen = d
	}

	if !chosen.Available {
		return Selection{}, fmt.Errorf("%w: audio fallback device %q is not available", capture.ErrDeviceBusy, chosen.ID)
	}
	if chosen.Muted {
		return Selection{}, fmt.Errorf("%w: audio fallback device %q is muted", capture.ErrDeviceBusy, chosen.ID)
	}

	return Selection{
		Device:   *chosen,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primaryReason, chosen.ID),
		Fallback: primary.ID != chosen.ID,
	}, nil
}

// selectProcessedSource finds the configured voice-processing source.
func selectProcessedSource(devices []Device, source string) (Selection, error) {
	term := strings.TrimSpace(strings.ToLower(source))
	if term == "" {
		return Selection{}, fmt.Errorf("%w: noise suppression requires audio.noise_suppression_source", capture.ErrDeviceUnsupported)
	}
	for _, dev := range devices {
		if !deviceMatches(dev, term) {
			continue
		}
		if !dev.Available || dev.Muted {
			return Selection{}, fmt.Errorf("%w: noise suppression source %q is unusable", capture.ErrDeviceUnsupported, dev.ID)
		}
		return Selection{Device: dev}, nil
	}
	return Selection{}, fmt.Errorf("%w: noise suppression source %q not found", capture.ErrDeviceUnsupported, source)
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// PulseProvider opens Pulse sources for capture sessions.
type PulseProvider struct {
	Input                  string
	Fallback               string
	NoiseSuppressionSource string
	SampleRate             int
	Logger                 *slog.Logger
}

// Open selects a source satisfying constraints and holds a client for it.
//
// Echo cancellation and gain control have no per-stream Pulse equivalent; they
// are expected to come from the processed source along with noise suppression.
func (p *PulseProvider) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := connect()
	if err != nil {
		return nil, fmt.Errorf("%w: connect pulse server: %v", capture.ErrCaptureUnsupported, err)
	}

	devices, err := listDevices(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", capture.ErrDevice, err)
	}

	var selection Selection
	if constraints.NoiseSuppression {
		selection, err = selectProcessedSource(devices, p.NoiseSuppressionSource)
	} else {
		selection, err = selectDeviceFromList(devices, p.Input, p.Fallback)
	}
	if err != nil {
		client.Close()
		return nil, err
	}
	if selection.Warning != "" && p.Logger != nil {
		p.Logger.Warn(selection.Warning)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", capture.ErrDeviceNotFound, selection.Device.ID, err)
	}

	rate := constraints.SampleRate
	if rate <= 0 {
		rate = p.SampleRate
	}
	if rate <= 0 {
		rate = defaultSampleRate
	}

	return &pulseStream{
		client: client,
		source: source,
		device: selection.Device,
		rate:   rate,
	}, nil
}

// pulseStream owns one Pulse client connection bound to a source.
type pulseStream struct {
	client *pulse.Client
	source *pulse.Source
	device Device
	rate   int
}

func (s *pulseStream) ID() string      { return s.device.ID }
func (s *pulseStream) SampleRate() int { return s.rate }

func (s *pulseStream) Close() error {
	s.client.Close()
	return nil
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
