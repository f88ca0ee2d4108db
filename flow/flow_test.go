package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlow_RunsStepsInOrder(t *testing.T) {
	var seen []ProgressState
	p := NewProgress(func(s ProgressState) { seen = append(seen, s) })

	var order []string
	f := New(p)
	f.Add("hash", func(context.Context) error { order = append(order, "hash"); return nil })
	f.Add("submit", func(context.Context) error { order = append(order, "submit"); return nil })

	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, []string{"hash", "submit"}, order)
	assert.True(t, f.Steps[0].Done)
	assert.True(t, f.Steps[1].Done)

	require.Len(t, seen, 4)
	assert.Equal(t, ProgressState{}, seen[0])
	assert.Equal(t, "hash", seen[1].ActiveStep)
	assert.True(t, seen[1].InProgress)
	assert.Equal(t, "submit", seen[2].ActiveStep)
	assert.True(t, seen[3].Completed)
	assert.True(t, p.State().Completed)
}

func TestFlow_FailFast(t *testing.T) {
	p := NewProgress(nil)
	boom := errors.New("boom")

	ranThird := false
	f := New(p)
	f.Add("first", func(context.Context) error { return nil })
	f.Add("second", func(context.Context) error { return boom })
	f.Add("third", func(context.Context) error { ranThird = true; return nil })

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.False(t, ranThird)
	assert.ErrorIs(t, err, boom)
	assert.EqualError(t, err, "Error [second]: boom")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "second", stepErr.Label)

	state := p.State()
	assert.False(t, state.InProgress)
	assert.Equal(t, stepErr, state.Err)
	assert.False(t, f.Steps[1].Done)
}

func TestFlow_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(nil)
	f.Add("never", func(context.Context) error { t.Fatal("step ran"); return nil })

	err := f.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgress_Sub(t *testing.T) {
	var steps []string
	p := NewProgress(func(s ProgressState) {
		if s.InProgress {
			steps = append(steps, s.ActiveStep)
		}
	})

	f := New(p)
	f.Add("send", func(context.Context) error {
		sub := p.Sub("send")
		sub.Reset()
		sub.SetActiveStep("sending")
		sub.SetActiveStep("mining")
		sub.SetCompleted()
		return nil
	})
	f.Add("fail", func(context.Context) error {
		sub := p.Sub("fail")
		sub.SetActiveStep("sending")
		err := errors.New("reverted")
		sub.SetError(err)
		return err
	})

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{
		"send",
		"send: sending",
		"send: mining",
		"send: success",
		"fail",
		"fail: sending",
		"fail: error",
	}, steps)
	assert.Equal(t, "Error [fail]: reverted", p.State().Err.Error())

	var none *Progress
	assert.Nil(t, none.Sub("x"))
}
