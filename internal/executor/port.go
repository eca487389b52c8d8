// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package executor

import (
	"context"
	"fmt"
)

// Command is one request the PortAdapter hands to the coordinator, which
// owns the actual Session and calls back into lifecycle on success.
type Command interface{ isCommand() }

// LaunchCommand asks the coordinator to supervise a new child process.
type LaunchCommand struct {
	Prompt string
	Reply  chan error
}

func (LaunchCommand) isCommand() {}

// QueryStatusCommand asks the coordinator for a human-readable status line
// describing the currently supervised child, if any.
type QueryStatusCommand struct {
	Reply chan StatusResult
}

func (QueryStatusCommand) isCommand() {}

// StatusResult is the coordinator's answer to a QueryStatusCommand.
type StatusResult struct {
	Text string
	Err  error
}

// PortAdapter implements ports.Executor by forwarding requests to the
// coordinator over a bounded command channel; the coordinator is the sole
// owner of the actual Session.
type PortAdapter struct {
	commands chan Command
}

// NewPortAdapter returns an adapter with the given command-channel buffer.
func NewPortAdapter(bufSize int) *PortAdapter {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &PortAdapter{commands: make(chan Command, bufSize)}
}

// Commands returns the channel the coordinator should range over.
func (p *PortAdapter) Commands() <-chan Command {
	return p.commands
}

// Launch implements ports.Executor. It is fire-and-forget from the core's
// perspective but this call blocks until the coordinator acknowledges the
// spawn attempt (or ctx is done), so the core can surface launch failures.
func (p *PortAdapter) Launch(ctx context.Context, prompt string) error {
	reply := make(chan error, 1)
	cmd := LaunchCommand{Prompt: prompt, Reply: reply}

	select {
	case p.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueryStatus implements ports.Executor.
func (p *PortAdapter) QueryStatus(ctx context.Context) (string, error) {
	reply := make(chan StatusResult, 1)
	cmd := QueryStatusCommand{Reply: reply}

	select {
	case p.commands <- cmd:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			return "", fmt.Errorf("executor: %w", res.Err)
		}
		return res.Text, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
