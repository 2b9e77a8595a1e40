package chat

import (
	"context"
	"fmt"

	"codechat/internal/api"
	"codechat/pkg/logger"
)

// Executor runs a confirmed code payload remotely.
type Executor interface {
	Execute(ctx context.Context, script, language string) (api.ExecResult, error)
}

type GateState int

const (
	GateIdle GateState = iota
	GateAwaiting
	GateExecuting
)

func (s GateState) String() string {
	switch s {
	case GateIdle:
		return "idle"
	case GateAwaiting:
		return "awaiting_confirmation"
	case GateExecuting:
		return "executing"
	default:
		return "unknown"
	}
}

// Gate is the confirmation checkpoint between an assistant code proposal and
// actually running it. All access happens on the event-loop thread; only the
// controller offers requests and only the gate clears them.
type Gate struct {
	exec  Executor
	state GateState
	req   ExecutionRequest
}

func NewGate(exec Executor) *Gate {
	return &Gate{exec: exec}
}

func (g *Gate) State() GateState { return g.state }

// Pending returns the request awaiting the user's decision.
func (g *Gate) Pending() (ExecutionRequest, bool) {
	if g.state != GateAwaiting {
		return ExecutionRequest{}, false
	}
	return g.req, true
}

// Offer installs a new request. A request already awaiting confirmation is
// replaced, never queued: the last qualifying reply wins. An execution in
// flight is not disturbed.
func (g *Gate) Offer(req ExecutionRequest) {
	if g.state == GateExecuting {
		logger.Warnf("gate: dropping code proposal offered while executing")
		return
	}
	g.req = req
	g.state = GateAwaiting
}

// Cancel discards the pending request without running it. Nothing is
// appended to the transcript.
func (g *Gate) Cancel() bool {
	if g.state != GateAwaiting {
		return false
	}
	g.req = ExecutionRequest{}
	g.state = GateIdle
	return true
}

type ExecOutcome struct {
	Output    string
	ExecError string
	Err       error
}

// Confirm moves to Executing and hands back the blocking call to run as a
// command. Once issued there is no mid-flight cancellation; the gate waits
// for the outcome.
func (g *Gate) Confirm() (func(context.Context) ExecOutcome, bool) {
	if g.state != GateAwaiting {
		return nil, false
	}
	req := g.req
	g.state = GateExecuting
	exec := g.exec
	return func(ctx context.Context) ExecOutcome {
		res, err := exec.Execute(ctx, req.Code, req.Language)
		return ExecOutcome{Output: res.Output, ExecError: res.Error, Err: err}
	}, true
}

// Finish applies the execution outcome and returns to Idle. On success the
// formatted result is returned for the controller to append as a system
// message. A failed execution call is an operational event, not a
// conversational one: it comes back as a blocking notice instead and the
// transcript stays untouched.
func (g *Gate) Finish(r ExecOutcome) (systemContent, notice string) {
	g.req = ExecutionRequest{}
	g.state = GateIdle

	if r.Err != nil {
		logger.Errorf("gate: execution failed: %v", r.Err)
		return "", fmt.Sprintf("Code execution failed: %s", r.Err.Error())
	}

	output := r.Output
	if output == "" {
		output = "No output"
	}
	content := fmt.Sprintf("Script execution:\n\nOutput:\n%s", output)
	if r.ExecError != "" {
		content += fmt.Sprintf("\n\nError:\n%s", r.ExecError)
	}
	return content, ""
}

// Reset drops any pending request, e.g. when the conversation changes.
func (g *Gate) Reset() {
	g.req = ExecutionRequest{}
	g.state = GateIdle
}
