package flow

import "sync"

// ProgressState is a snapshot of a Progress.
type ProgressState struct {
	InProgress bool
	ActiveStep string
	Completed  bool
	Err        error
}

// Progress tracks the current step of an asynchronous action. The optional
// change callback sees every transition.
type Progress struct {
	mu       sync.Mutex
	state    ProgressState
	onChange func(ProgressState)
}

func NewProgress(onChange func(ProgressState)) *Progress {
	return &Progress{onChange: onChange}
}

func (p *Progress) Reset() {
	p.set(ProgressState{})
}

func (p *Progress) SetActiveStep(step string) {
	p.set(ProgressState{InProgress: true, ActiveStep: step})
}

func (p *Progress) SetCompleted() {
	p.set(ProgressState{Completed: true})
}

func (p *Progress) SetError(err error) {
	p.set(ProgressState{Err: err})
}

// Sub returns a progress that reports into p as sub-steps of label, e.g.
// "create on chain: mining". The sub-action finishing shows as
// "label: success" or "label: error"; p itself completes or fails with the
// flow that owns it.
func (p *Progress) Sub(label string) *Progress {
	if p == nil {
		return nil
	}
	return NewProgress(func(s ProgressState) {
		switch {
		case s.Err != nil:
			p.SetActiveStep(label + ": error")
		case s.Completed:
			p.SetActiveStep(label + ": success")
		case s.InProgress:
			p.SetActiveStep(label + ": " + s.ActiveStep)
		}
	})
}

func (p *Progress) State() ProgressState {
	if p == nil {
		return ProgressState{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Progress) set(s ProgressState) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.state = s
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
