package transcode

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rbright/shadow/internal/artifact"
)

// Job is one asynchronous transcode with monotonic progress and one terminal result.
type Job struct {
	id     string
	input  *artifact.Artifact
	target string

	mu       sync.Mutex
	progress int
	subs     []chan int
	result   Result
	finished bool
	done     chan struct{}
}

func newJob(input *artifact.Artifact, target string) *Job {
	return &Job{
		id:     uuid.NewString(),
		input:  input,
		target: target,
		done:   make(chan struct{}),
	}
}

func (j *Job) ID() string                { return j.id }
func (j *Job) Input() *artifact.Artifact { return j.input }
func (j *Job) Target() string            { return j.target }

// Progress returns the last published value in [0, 100].
func (j *Job) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Done closes once the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Subscribe streams progress values published after the call. The channel
// closes when the job finishes.
func (j *Job) Subscribe() <-chan int {
	ch := make(chan int, 101)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		close(ch)
		return ch
	}
	j.subs = append(j.subs, ch)
	return ch
}

// Wait blocks until the job finishes or ctx ends.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the terminal result once available.
func (j *Job) Result() (Result, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result, j.finished
}

// publish raises progress. Values at or below the current one are ignored.
func (j *Job) publish(value int) {
	if value > 100 {
		value = 100
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished || value <= j.progress {
		return
	}
	j.progress = value
	for _, ch := range j.subs {
		select {
		case ch <- value:
		default:
		}
	}
}

func (j *Job) finish(result Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.finished {
		return
	}
	result.JobID = j.id
	result.Progress = j.progress
	j.result = result
	j.finished = true
	for _, ch := range j.subs {
		close(ch)
	}
	j.subs = nil
	close(j.done)
}
