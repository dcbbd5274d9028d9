package pipeline

import "fmt"

type outcomeKind int

const (
	// outcomeOK means the stage produced its result.
	outcomeOK outcomeKind = iota
	// outcomeRecoverable means the stage failed but a substitute result was produced.
	outcomeRecoverable
	// outcomeFatal means the job cannot continue.
	outcomeFatal
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeOK:
		return "ok"
	case outcomeRecoverable:
		return "recoverable"
	case outcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

type outcome struct {
	kind outcomeKind
	err  error
}

func ok() outcome { return outcome{kind: outcomeOK} }

func recoverable(err error) outcome { return outcome{kind: outcomeRecoverable, err: err} }

func fatal(err error) outcome { return outcome{kind: outcomeFatal, err: err} }

// FatalError reports a failure the process cannot continue past: the silent
// placeholder could not be written, so no audio can be produced for any job.
type FatalError struct {
	JobID string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("job %s: placeholder audio could not be written: %v", e.JobID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
