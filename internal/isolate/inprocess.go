package isolate

import (
	"bytes"
	"context"
	"io"
	"os"

	bananaserrors "github.com/muaviaUsmani/bananas/internal/errors"
	"github.com/muaviaUsmani/bananas/internal/job"
)

// InProcessIsolator runs the attempt on the calling goroutine, redirecting
// os.Stdout/os.Stderr into pipes for the duration of the call and recovering
// any panic raised by Handle. Grounded on the original's ScopedStreamRedirect
// (stream capture) and internal/errors.RecoverPanic (panic containment),
// used when forkToHandle is false.
type InProcessIsolator struct{}

func NewInProcessIsolator() *InProcessIsolator { return &InProcessIsolator{} }

func (i *InProcessIsolator) Run(ctx context.Context, _ job.Envelope, j job.Job) (res Result) {
	restoreOut := redirect(&os.Stdout)
	restoreErr := redirect(&os.Stderr)
	defer func() {
		res.Stdout = restoreOut()
		res.Stderr = restoreErr()
	}()

	defer func() {
		if panicErr := bananaserrors.RecoverPanic(); panicErr != nil {
			pe := panicErr.(*bananaserrors.PanicError)
			res.Status = job.StatusErrorExcept
			res.Exception = bananaserrors.FormatPanicForLog(pe)
		}
	}()

	if err := j.Handle(); err != nil {
		res.Exception = err.Error()
		if j.RetryIfError() {
			res.Status = job.StatusErrorRetry
		} else {
			res.Status = job.StatusErrorRemove
		}
		return res
	}

	res.Status = job.StatusNoError
	return res
}

// redirect swaps *stream for the write end of a pipe and returns a function
// that restores the original stream and returns everything written while
// redirected. The read side is drained on a separate goroutine so a job that
// writes more than the pipe buffer cannot deadlock.
func redirect(stream **os.File) func() string {
	original := *stream
	r, w, err := os.Pipe()
	if err != nil {
		return func() string { return "" }
	}
	*stream = w

	captured := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		captured <- buf.String()
	}()

	return func() string {
		*stream = original
		w.Close()
		out := <-captured
		r.Close()
		return out
	}
}
