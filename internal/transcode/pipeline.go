// Package transcode re-encodes captured audio to MP3, falling back to the
// original artifact whenever any step cannot complete.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/audio"
	"github.com/rbright/shadow/internal/capability"
	"github.com/rbright/shadow/internal/codec"
)

type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusFailedFallback Status = "failed_fallback"
	StatusCancelled      Status = "cancelled"
)

// Reason explains a fallback in user-readable terms.
type Reason string

const (
	ReasonEncoderUnavailable Reason = "encoder unavailable"
	ReasonDecodeUnsupported  Reason = "decode unsupported"
	ReasonLoadTimeout        Reason = "load timeout"
	ReasonEncodeUnsupported  Reason = "encode unsupported"
	ReasonEncodeFailed       Reason = "encode failed"
	ReasonCancelled          Reason = "cancelled"
)

const (
	defaultChunkFrames = 1024
	defaultLoadTimeout = 10 * time.Second
)

// Result is a job's terminal outcome. Artifact is the encoded output on
// success and the untouched input otherwise.
type Result struct {
	JobID    string
	Status   Status
	Artifact *artifact.Artifact
	Reason   Reason
	Err      error
	Progress int
}

func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

type Options struct {
	Encoder      codec.Provider
	Capabilities *capability.Detector
	Primary      Decoder
	Alternative  Decoder

	Quality     int
	ChunkFrames int
	LoadTimeout time.Duration

	Logger *slog.Logger
}

// Pipeline runs transcode jobs.
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.Primary == nil {
		opts.Primary = WAVDecoder{}
	}
	if opts.ChunkFrames <= 0 {
		opts.ChunkFrames = defaultChunkFrames
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.Quality < 0 || opts.Quality > 9 {
		opts.Quality = codec.DefaultQuality
	}
	if opts.Capabilities == nil {
		opts.Capabilities = capability.Static(capability.Profile{
			DecodableTypes:   DecodableTypes(opts.Alternative != nil),
			EncoderAvailable: opts.Encoder != nil,
		})
	}
	return &Pipeline{opts: opts}
}

// Start runs a job in the background. ctx cancellation ends it with StatusCancelled.
func (p *Pipeline) Start(ctx context.Context, input *artifact.Artifact) *Job {
	job := newJob(input, codec.TargetMIME)
	go func() {
		result := p.run(ctx, job)
		job.finish(result)
		p.logResult(job, result)
	}()
	return job
}

// Transcode runs a job and waits for it.
func (p *Pipeline) Transcode(ctx context.Context, input *artifact.Artifact) Result {
	job := p.Start(ctx, input)
	<-job.Done()
	result, _ := job.Result()
	return result
}

func (p *Pipeline) run(ctx context.Context, job *Job) Result {
	input := job.input
	if input == nil {
		return Result{Status: StatusFailedFallback, Reason: ReasonDecodeUnsupported, Err: errors.New("no input artifact")}
	}
	if err := ctx.Err(); err != nil {
		return cancelled(input, err)
	}

	inputType := DetectType(input)
	profile := p.opts.Capabilities.Profile(ctx)
	if !profile.EncoderAvailable || p.opts.Encoder == nil {
		return fallback(input, ReasonEncoderUnavailable, codec.ErrUnavailable)
	}
	if !profile.CanDecode(inputType) {
		return fallback(input, ReasonDecodeUnsupported, fmt.Errorf("cannot decode %q", inputType))
	}

	enc, err := p.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(input, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fallback(input, ReasonLoadTimeout, err)
		}
		return fallback(input, ReasonEncoderUnavailable, err)
	}
	defer func() { _ = enc.Close() }()

	pcm, err := p.decode(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(input, err)
		}
		return fallback(input, ReasonDecodeUnsupported, err)
	}

	if err := enc.Configure(pcm.SampleRate, len(pcm.Channels), p.opts.Quality); err != nil {
		return encodeFailure(input, err)
	}

	var out bytes.Buffer
	total := pcm.Frames()
	for start := 0; start < total; start += p.opts.ChunkFrames {
		if err := ctx.Err(); err != nil {
			return cancelled(input, err)
		}
		end := min(start+p.opts.ChunkFrames, total)
		window := make([][]float32, len(pcm.Channels))
		for c, samples := range pcm.Channels {
			window[c] = samples[start:end]
		}
		segment, err := enc.Encode(window)
		if err != nil {
			return encodeFailure(input, err)
		}
		out.Write(segment)
		job.publish(end * 90 / total)
	}
	job.publish(90)

	if err := ctx.Err(); err != nil {
		return cancelled(input, err)
	}
	tail, err := enc.Finalize()
	if err != nil {
		return encodeFailure(input, err)
	}
	out.Write(tail)
	if out.Len() == 0 {
		return fallback(input, ReasonEncodeFailed, errors.New("encoder produced no output"))
	}

	encoded := artifact.New(out.Bytes(), codec.TargetMIME, input.Duration(), input.ChunkCount())
	job.publish(100)
	return Result{Status: StatusSucceeded, Artifact: encoded}
}

// load bounds the encoder module load by LoadTimeout.
func (p *Pipeline) load(ctx context.Context) (codec.Encoder, error) {
	loadCtx, cancel := context.WithTimeout(ctx, p.opts.LoadTimeout)
	defer cancel()

	type loaded struct {
		enc codec.Encoder
		err error
	}
	done := make(chan loaded, 1)
	go func() {
		enc, err := p.opts.Encoder.Load(loadCtx)
		done <- loaded{enc: enc, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.enc == nil {
			return nil, codec.ErrUnavailable
		}
		return r.enc, nil
	case <-loadCtx.Done():
		go func() {
			if r := <-done; r.enc != nil {
				_ = r.enc.Close()
			}
		}()
		return nil, fmt.Errorf("load %s encoder: %w", p.opts.Encoder.Name(), loadCtx.Err())
	}
}

// decode tries the primary decoder, then the alternative once.
func (p *Pipeline) decode(ctx context.Context, input *artifact.Artifact) (audio.PCM, error) {
	pcm, err := p.opts.Primary.Decode(ctx, input)
	if err == nil {
		return pcm, validatePCM(pcm)
	}
	if p.opts.Alternative == nil || ctx.Err() != nil {
		return audio.PCM{}, err
	}
	if p.opts.Logger != nil {
		p.opts.Logger.Debug("primary decode failed; retrying",
			"decoder", p.opts.Primary.Name(),
			"alternative", p.opts.Alternative.Name(),
			"error", err.Error(),
		)
	}
	pcm, altErr := p.opts.Alternative.Decode(ctx, input)
	if altErr != nil {
		return audio.PCM{}, errors.Join(err, altErr)
	}
	return pcm, validatePCM(pcm)
}

func validatePCM(pcm audio.PCM) error {
	if pcm.SampleRate <= 0 || len(pcm.Channels) == 0 {
		return errors.New("decoded audio has no channels")
	}
	return nil
}

func (p *Pipeline) logResult(job *Job, result Result) {
	if p.opts.Logger == nil {
		return
	}
	attrs := []any{
		"job_id", job.id,
		"status", string(result.Status),
		"progress", result.Progress,
	}
	if result.Reason != "" {
		attrs = append(attrs, "reason", string(result.Reason))
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err.Error())
	}
	if result.Status == StatusSucceeded {
		p.opts.Logger.Info("transcode finished", attrs...)
		return
	}
	p.opts.Logger.Warn("transcode fell back to original", attrs...)
}

func fallback(input *artifact.Artifact, reason Reason, err error) Result {
	return Result{Status: StatusFailedFallback, Artifact: input, Reason: reason, Err: err}
}

func cancelled(input *artifact.Artifact, err error) Result {
	return Result{Status: StatusCancelled, Artifact: input, Reason: ReasonCancelled, Err: err}
}

func encodeFailure(input *artifact.Artifact, err error) Result {
	if errors.Is(err, codec.ErrUnsupported) {
		return fallback(input, ReasonEncodeUnsupported, err)
	}
	return fallback(input, ReasonEncodeFailed, err)
}
