package review

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/output"
	"github.com/rbright/shadow/internal/practice"
	"github.com/rbright/shadow/internal/transcode"
	"github.com/rbright/shadow/internal/transcribe"
	"github.com/stretchr/testify/require"
)

var _ practice.Presenter = (*Presenter)(nil)

type fakeTranscoder struct {
	result transcode.Result
	calls  int
}

func (f *fakeTranscoder) Transcode(_ context.Context, input *artifact.Artifact) transcode.Result {
	f.calls++
	if f.result.Artifact == nil {
		f.result.Artifact = input
	}
	return f.result
}

type fakeTranscriber struct {
	result    transcribe.Result
	gotMIME   string
	gotName   string
	callCount int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, a *artifact.Artifact, filename string) transcribe.Result {
	f.callCount++
	f.gotMIME = a.BaseType()
	f.gotName = filename
	return f.result
}

type fakeSaver struct {
	takes []output.Take
	err   error
}

func (f *fakeSaver) Save(take output.Take) (output.Saved, error) {
	f.takes = append(f.takes, take)
	if f.err != nil {
		return output.Saved{}, f.err
	}
	return output.Saved{RecordingPath: "/takes/a.mp3", TranscriptPath: "/takes/a.txt"}, nil
}

type fakeCommitter struct {
	texts []string
	err   error
}

func (f *fakeCommitter) Commit(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

func wavArtifact() *artifact.Artifact {
	return artifact.New([]byte("RIFF....WAVE"), "audio/wav", 2*time.Second, 3)
}

func mp3Artifact() *artifact.Artifact {
	return artifact.New([]byte("ID3mp3"), "audio/mpeg", 2*time.Second, 3)
}

func TestPresentRunsTranscodeTranscribeSaveAndCopy(t *testing.T) {
	transcoder := &fakeTranscoder{result: transcode.Result{Status: transcode.StatusSucceeded, Artifact: mp3Artifact(), Progress: 100}}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "good evening", Valid: true}}
	saver := &fakeSaver{}
	clipboard := &fakeCommitter{}
	out := &bytes.Buffer{}
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	presenter := New(Options{
		Transcoder:  transcoder,
		Transcriber: transcriber,
		Filename:    "recording.mp3",
		Store:       saver,
		Clipboard:   clipboard,
		Out:         out,
		Now:         func() time.Time { return at },
	})

	err := presenter.Present(context.Background(), practice.Handoff{
		Mode:      practice.ModeSimultaneous,
		Artifact:  wavArtifact(),
		Elapsed:   "00:02",
		SessionID: "session-a",
	})
	require.NoError(t, err)

	require.Equal(t, 1, transcoder.calls)
	require.Equal(t, "audio/mpeg", transcriber.gotMIME)
	require.Equal(t, "recording.mp3", transcriber.gotName)

	require.Len(t, saver.takes, 1)
	take := saver.takes[0]
	require.Equal(t, "session-a", take.SessionID)
	require.Equal(t, "simultaneous", take.Mode)
	require.Equal(t, "audio/mpeg", take.Recording.BaseType())
	require.Equal(t, "good evening", take.Transcript)
	require.Equal(t, at, take.At)

	require.Equal(t, []string{"good evening"}, clipboard.texts)

	report, ok := presenter.Last()
	require.True(t, ok)
	require.Equal(t, "good evening", report.Handoff.Transcript)
	require.False(t, report.Handoff.HasError)
	require.Equal(t, "/takes/a.mp3", report.Saved.RecordingPath)

	printed := out.String()
	require.Contains(t, printed, "mode: simultaneous  elapsed: 00:02  session: session-a")
	require.Contains(t, printed, "recording: /takes/a.mp3 (audio/mpeg, 6 bytes)")
	require.Contains(t, printed, "transcript:\ngood evening\n")
	require.Contains(t, printed, "transcript saved: /takes/a.txt")
	require.NotContains(t, printed, "transcode:")
}

func TestPresentTranscodeFallbackKeepsOriginal(t *testing.T) {
	original := wavArtifact()
	transcoder := &fakeTranscoder{result: transcode.Result{Status: transcode.StatusFailedFallback, Reason: transcode.ReasonEncoderUnavailable}}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "hello", Valid: true}}
	out := &bytes.Buffer{}

	presenter := New(Options{Transcoder: transcoder, Transcriber: transcriber, Filename: "recording.mp3", Out: out})
	require.NoError(t, presenter.Present(context.Background(), practice.Handoff{Mode: practice.ModeSightTranslation, Artifact: original, Elapsed: "00:02"}))

	require.Equal(t, "audio/wav", transcriber.gotMIME)
	require.Equal(t, "recording.wav", transcriber.gotName)
	require.Contains(t, out.String(), "transcode: kept original (encoder unavailable)")

	report, _ := presenter.Last()
	require.Same(t, original, report.Handoff.Artifact)
}

func TestPresentTranscriptionFailureIsReportedNotReturned(t *testing.T) {
	transcriber := &fakeTranscriber{result: transcribe.Result{Err: &transcribe.Error{Kind: transcribe.KindService, Message: transcribe.MessageRetry}}}
	saver := &fakeSaver{}
	clipboard := &fakeCommitter{}
	out := &bytes.Buffer{}

	presenter := New(Options{Transcriber: transcriber, Store: saver, Clipboard: clipboard, Out: out})
	require.NoError(t, presenter.Present(context.Background(), practice.Handoff{Mode: practice.ModeSimultaneous, Artifact: wavArtifact(), Elapsed: "00:02"}))

	require.Len(t, saver.takes, 1)
	require.Empty(t, saver.takes[0].Transcript)
	require.Empty(t, clipboard.texts)
	require.Contains(t, out.String(), "transcription: "+transcribe.MessageRetry)

	report, _ := presenter.Last()
	require.True(t, report.Handoff.HasError)
}

func TestPresentSaveFailureReturnsError(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	presenter := New(Options{Store: saver})

	err := presenter.Present(context.Background(), practice.Handoff{Mode: practice.ModeSimultaneous, Artifact: wavArtifact()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "save take: disk full")
}

func TestPresentClipboardFailureDoesNotFail(t *testing.T) {
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "hello", Valid: true}}
	clipboard := &fakeCommitter{err: errors.New("no wl-copy")}

	presenter := New(Options{Transcriber: transcriber, Clipboard: clipboard})
	require.NoError(t, presenter.Present(context.Background(), practice.Handoff{Mode: practice.ModeSimultaneous, Artifact: wavArtifact()}))
	require.Equal(t, []string{"hello"}, clipboard.texts)
}

func TestPresentMinimalPayloadSkipsEverySideEffect(t *testing.T) {
	transcoder := &fakeTranscoder{}
	transcriber := &fakeTranscriber{}
	saver := &fakeSaver{}
	out := &bytes.Buffer{}

	presenter := New(Options{Transcoder: transcoder, Transcriber: transcriber, Store: saver, Out: out})
	require.NoError(t, presenter.Present(context.Background(), practice.Minimal(practice.ModeSightTranslation)))

	require.Zero(t, transcoder.calls)
	require.Zero(t, transcriber.callCount)
	require.Empty(t, saver.takes)
	require.Equal(t, "mode: sight_translation  elapsed: 00:00\nrecording: unavailable\n", out.String())
}

func TestPresentIssuesPlayableHandleAndCloseRevokes(t *testing.T) {
	handles := artifact.NewHandleStore(t.TempDir())
	out := &bytes.Buffer{}
	presenter := New(Options{Handles: handles, Out: out})

	require.NoError(t, presenter.Present(context.Background(), practice.Handoff{Mode: practice.ModeSimultaneous, Artifact: wavArtifact(), Elapsed: "00:02"}))

	report, ok := presenter.Last()
	require.True(t, ok)
	require.NotEmpty(t, report.Handle.Path)
	require.Contains(t, out.String(), "recording: "+report.Handle.Path)

	data, err := os.ReadFile(report.Handle.Path)
	require.NoError(t, err)
	require.Equal(t, "RIFF....WAVE", string(data))

	require.NoError(t, presenter.Close())
	_, err = os.Stat(report.Handle.Path)
	require.True(t, os.IsNotExist(err))
}

func TestUploadName(t *testing.T) {
	require.Equal(t, "", uploadName("", wavArtifact()))
	require.Equal(t, "recording.wav", uploadName("recording.mp3", wavArtifact()))
	require.Equal(t, "take.mp3", uploadName("dir/take", mp3Artifact()))
}

func TestLastBeforePresent(t *testing.T) {
	_, ok := New(Options{}).Last()
	require.False(t, ok)
}
