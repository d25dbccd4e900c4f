// Package review turns a finished practice run into a saved, transcribed take.
package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/output"
	"github.com/rbright/shadow/internal/practice"
	"github.com/rbright/shadow/internal/transcode"
	"github.com/rbright/shadow/internal/transcribe"
)

// Transcoder is satisfied by *transcode.Pipeline.
type Transcoder interface {
	Transcode(context.Context, *artifact.Artifact) transcode.Result
}

// Transcriber is satisfied by *transcribe.Client.
type Transcriber interface {
	Transcribe(context.Context, *artifact.Artifact, string) transcribe.Result
}

// Saver is satisfied by *output.Store.
type Saver interface {
	Save(output.Take) (output.Saved, error)
}

// Committer is satisfied by *output.Committer.
type Committer interface {
	Commit(context.Context, string) error
}

// Options wires the optional post-capture steps. Nil steps are skipped.
type Options struct {
	Transcoder  Transcoder
	Transcriber Transcriber
	Filename    string
	Store       Saver
	Clipboard   Committer
	Handles     *artifact.HandleStore
	Out         io.Writer
	Logger      *slog.Logger
	Now         func() time.Time
}

// Report records what happened to one handoff.
type Report struct {
	Handoff       practice.Handoff
	Transcode     *transcode.Result
	Transcription *transcribe.Result
	Saved         output.Saved
	Handle        artifact.Handle
}

// Presenter implements practice.Presenter.
type Presenter struct {
	opts Options

	mu   sync.Mutex
	last *Report
}

func New(opts Options) *Presenter {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Presenter{opts: opts}
}

// Present transcodes, transcribes, saves, and prints the handoff. Failures of
// transcode and transcription are reported, not returned; only a failed save
// fails the presentation.
func (p *Presenter) Present(ctx context.Context, h practice.Handoff) error {
	report := Report{Handoff: h}
	defer p.remember(&report)

	if h.Artifact == nil {
		p.printSummary(report)
		return nil
	}

	recording := h.Artifact
	if p.opts.Transcoder != nil {
		result := p.opts.Transcoder.Transcode(ctx, recording)
		report.Transcode = &result
		if result.Artifact != nil {
			recording = result.Artifact
		}
	}
	report.Handoff.Artifact = recording

	if p.opts.Handles != nil {
		handle, err := p.opts.Handles.Issue(recording)
		if err != nil {
			p.logWarn("issue playable handle failed", "error", err.Error())
		} else {
			report.Handle = handle
		}
	}

	if p.opts.Transcriber != nil {
		result := p.opts.Transcriber.Transcribe(ctx, recording, uploadName(p.opts.Filename, recording))
		report.Transcription = &result
		report.Handoff.Transcript = result.Text
		if result.Err != nil {
			report.Handoff.HasError = true
		}
	}

	if p.opts.Store != nil {
		saved, err := p.opts.Store.Save(output.Take{
			SessionID:  h.SessionID,
			Mode:       string(h.Mode),
			Recording:  recording,
			Transcript: report.Handoff.Transcript,
			At:         p.opts.Now(),
		})
		report.Saved = saved
		if err != nil {
			p.printSummary(report)
			return fmt.Errorf("save take: %w", err)
		}
	}

	if p.opts.Clipboard != nil && report.Handoff.Transcript != "" {
		if err := p.opts.Clipboard.Commit(ctx, report.Handoff.Transcript); err != nil {
			p.logWarn("copy transcript failed", "error", err.Error())
		}
	}

	p.printSummary(report)
	return nil
}

// Last returns the most recent report.
func (p *Presenter) Last() (Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Close releases the playable handle.
func (p *Presenter) Close() error {
	if p.opts.Handles == nil {
		return nil
	}
	return p.opts.Handles.Revoke()
}

func (p *Presenter) remember(report *Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := *report
	p.last = &copied
}

func (p *Presenter) printSummary(r Report) {
	w := p.opts.Out
	h := r.Handoff

	line := fmt.Sprintf("mode: %s  elapsed: %s", h.Mode, h.Elapsed)
	if h.SessionID != "" {
		line += "  session: " + h.SessionID
	}
	fmt.Fprintln(w, line)

	if h.Artifact == nil {
		fmt.Fprintln(w, "recording: unavailable")
		return
	}

	location := r.Saved.RecordingPath
	if location == "" {
		location = r.Handle.Path
	}
	if location == "" {
		fmt.Fprintf(w, "recording: %s, %d bytes\n", h.Artifact.BaseType(), h.Artifact.Size())
	} else {
		fmt.Fprintf(w, "recording: %s (%s, %d bytes)\n", location, h.Artifact.BaseType(), h.Artifact.Size())
	}

	if t := r.Transcode; t != nil && !t.Succeeded() {
		fmt.Fprintf(w, "transcode: kept original (%s)\n", t.Reason)
	}

	if tr := r.Transcription; tr != nil {
		if tr.Err != nil {
			fmt.Fprintf(w, "transcription: %s\n", tr.Err.Message)
		}
		if tr.Text != "" {
			fmt.Fprintln(w, "transcript:")
			fmt.Fprintln(w, strings.TrimSpace(tr.Text))
		}
	}
	if r.Saved.TranscriptPath != "" {
		fmt.Fprintf(w, "transcript saved: %s\n", r.Saved.TranscriptPath)
	}
}

// uploadName keeps the configured stem and swaps in the real extension.
func uploadName(configured string, a *artifact.Artifact) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return ""
	}
	stem := strings.TrimSuffix(filepath.Base(configured), filepath.Ext(configured))
	return stem + a.Extension()
}

func (p *Presenter) logWarn(msg string, args ...any) {
	if p.opts.Logger == nil {
		return
	}
	p.opts.Logger.Warn(msg, args...)
}
