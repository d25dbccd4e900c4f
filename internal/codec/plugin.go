package codec

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const pluginName = "encoder"

// Handshake is shared by the host and the encoder plugin binary.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SHADOW_ENCODER_PLUGIN",
	MagicCookieValue: "mp3",
}

// EncoderPlugin exposes an Encoder over go-plugin's net/rpc transport.
type EncoderPlugin struct {
	// Factory builds one encoder per Configure call. Only the plugin side sets it.
	Factory func() Encoder
}

func (p *EncoderPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &EncoderRPCServer{factory: p.Factory}, nil
}

func (p *EncoderPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &EncoderRPC{client: c}, nil
}

// ServePlugin runs the plugin side of the handshake. It blocks until the host exits.
func ServePlugin(factory func() Encoder, logger hclog.Logger) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginName: &EncoderPlugin{Factory: factory},
		},
		Logger: logger,
	})
}

type ConfigureArgs struct {
	SampleRate int
	Channels   int
	Quality    int
}

type EncodeArgs struct {
	Channels [][]float32
}

// EncoderRPCServer adapts an Encoder to net/rpc method signatures.
type EncoderRPCServer struct {
	factory func() Encoder

	mu  sync.Mutex
	enc Encoder
}

func (s *EncoderRPCServer) Configure(args ConfigureArgs, resp *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.factory == nil {
		return ErrUnavailable
	}
	if s.enc != nil {
		_ = s.enc.Close()
	}
	s.enc = s.factory()
	if err := s.enc.Configure(args.SampleRate, args.Channels, args.Quality); err != nil {
		return err
	}
	*resp = true
	return nil
}

func (s *EncoderRPCServer) Encode(args EncodeArgs, resp *[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return errors.New("encoder not configured")
	}
	out, err := s.enc.Encode(args.Channels)
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *EncoderRPCServer) Finalize(_ interface{}, resp *[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return errors.New("encoder not configured")
	}
	out, err := s.enc.Finalize()
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *EncoderRPCServer) Close(_ interface{}, resp *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return nil
	}
	err := s.enc.Close()
	s.enc = nil
	*resp = true
	return err
}

// EncoderRPC is the host-side Encoder that forwards calls to the plugin.
type EncoderRPC struct {
	client *rpc.Client
}

func (c *EncoderRPC) Configure(sampleRate int, channels int, quality int) error {
	var ok bool
	err := c.client.Call("Plugin.Configure", ConfigureArgs{
		SampleRate: sampleRate,
		Channels:   channels,
		Quality:    quality,
	}, &ok)
	return remoteError(err)
}

func (c *EncoderRPC) Encode(channels [][]float32) ([]byte, error) {
	var out []byte
	if err := c.client.Call("Plugin.Encode", EncodeArgs{Channels: channels}, &out); err != nil {
		return nil, remoteError(err)
	}
	return out, nil
}

func (c *EncoderRPC) Finalize() ([]byte, error) {
	var out []byte
	if err := c.client.Call("Plugin.Finalize", new(interface{}), &out); err != nil {
		return nil, remoteError(err)
	}
	return out, nil
}

func (c *EncoderRPC) Close() error {
	var ok bool
	return remoteError(c.client.Call("Plugin.Close", new(interface{}), &ok))
}

// remoteError restores sentinel classification lost in RPC string transport.
func remoteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, ErrUnsupported.Error()):
		return fmt.Errorf("%w: %s", ErrUnsupported, msg)
	case strings.Contains(msg, ErrUnavailable.Error()):
		return fmt.Errorf("%w: %s", ErrUnavailable, msg)
	default:
		return err
	}
}

// PluginProvider starts the encoder module as a child process.
type PluginProvider struct {
	Command      []string
	Logger       hclog.Logger
	StartTimeout time.Duration
}

func (p *PluginProvider) Name() string { return "plugin" }

// Check verifies the plugin command resolves to an executable.
func (p *PluginProvider) Check(context.Context) error {
	if len(p.Command) == 0 || strings.TrimSpace(p.Command[0]) == "" {
		return fmt.Errorf("%w: transcode.plugin_cmd is empty", ErrUnavailable)
	}
	if _, err := exec.LookPath(p.Command[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type loadResult struct {
	enc Encoder
	err error
}

// Load launches the plugin and dispenses its encoder, bounded by ctx.
func (p *PluginProvider) Load(ctx context.Context) (Encoder, error) {
	if err := p.Check(ctx); err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginName: &EncoderPlugin{},
		},
		Cmd:              exec.Command(p.Command[0], p.Command[1:]...),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger:           logger.Named("encoder"),
		StartTimeout:     p.StartTimeout,
	})

	done := make(chan loadResult, 1)
	go func() {
		rpcClient, err := client.Client()
		if err != nil {
			done <- loadResult{err: fmt.Errorf("%w: start plugin: %v", ErrUnavailable, err)}
			return
		}
		raw, err := rpcClient.Dispense(pluginName)
		if err != nil {
			done <- loadResult{err: fmt.Errorf("%w: dispense plugin: %v", ErrUnavailable, err)}
			return
		}
		enc, ok := raw.(*EncoderRPC)
		if !ok {
			done <- loadResult{err: fmt.Errorf("%w: plugin returned %T", ErrUnavailable, raw)}
			return
		}
		done <- loadResult{enc: &pluginEncoder{EncoderRPC: enc, client: client}}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			client.Kill()
			return nil, result.err
		}
		logger.Debug("encoder plugin loaded", "command", p.Command[0])
		return result.enc, nil
	case <-ctx.Done():
		client.Kill()
		return nil, ctx.Err()
	}
}

// pluginEncoder kills the child process when the encoder is closed.
type pluginEncoder struct {
	*EncoderRPC
	client *plugin.Client
}

func (e *pluginEncoder) Close() error {
	err := e.EncoderRPC.Close()
	e.client.Kill()
	return err
}
