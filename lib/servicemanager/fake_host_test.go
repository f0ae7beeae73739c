// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/schema"
)

var testEpoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeProcess is a child that exits when the test says so, or on
// Terminate when it honors termination.
type fakeProcess struct {
	pid            int
	honorTerminate bool

	mu         sync.Mutex
	terminates int
	kills      int
	exitStatus string
	done       chan struct{}
}

func (p *fakeProcess) exit(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.exitStatus = status
	close(p.done)
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Poll() ProcessState {
	select {
	case <-p.done:
		return Exited
	default:
		return Running
	}
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminates++
	p.mu.Unlock()
	if p.honorTerminate {
		p.exit("signal: terminated")
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.exit("signal: killed")
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) ExitStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitStatus
}

func (p *fakeProcess) counts() (terminates, kills int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminates, p.kills
}

type spawnCall struct {
	argv []string
	env  []string
}

// fakeHost records every Spawn and hands out fakeProcesses.
type fakeHost struct {
	mu             sync.Mutex
	honorTerminate bool
	terminateErr   error
	spawnErr       error

	// gate, when non-nil, blocks Spawn until it is closed. started
	// receives one value per Spawn that reached the gate.
	gate    chan struct{}
	started chan struct{}

	nextPID   int
	calls     []spawnCall
	processes []*fakeProcess
}

func newFakeHost(honorTerminate bool) *fakeHost {
	return &fakeHost{honorTerminate: honorTerminate, nextPID: 4000}
}

func (h *fakeHost) Spawn(argv, env []string) (Process, error) {
	h.mu.Lock()
	gate, started := h.gate, h.started
	h.calls = append(h.calls, spawnCall{argv: slices.Clone(argv), env: slices.Clone(env)})
	h.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.spawnErr != nil {
		return nil, h.spawnErr
	}
	h.nextPID++
	process := &fakeProcess{
		pid:            h.nextPID,
		honorTerminate: h.honorTerminate,
		done:           make(chan struct{}),
	}
	h.processes = append(h.processes, process)
	if h.terminateErr != nil {
		return &failingTerminate{fakeProcess: process, err: h.terminateErr}, nil
	}
	return process, nil
}

func (h *fakeHost) spawnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *fakeHost) lastCall() spawnCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[len(h.calls)-1]
}

func (h *fakeHost) process(index int) *fakeProcess {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.processes[index]
}

// failingTerminate is a process whose Terminate fails.
type failingTerminate struct {
	*fakeProcess
	err error
}

func (p *failingTerminate) Terminate() error { return p.err }

// changeRecorder collects OnChange snapshots.
type changeRecorder struct {
	changes chan schema.ServiceDescriptor
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{changes: make(chan schema.ServiceDescriptor, 32)}
}

func (r *changeRecorder) record(descriptor schema.ServiceDescriptor) {
	r.changes <- descriptor
}

// drain returns the snapshots recorded so far.
func (r *changeRecorder) drain() []schema.ServiceDescriptor {
	var changes []schema.ServiceDescriptor
	for {
		select {
		case change := <-r.changes:
			changes = append(changes, change)
		default:
			return changes
		}
	}
}

func testServiceConfig(host ProcessHost, fake *clock.FakeClock, recorder *changeRecorder) ServiceConfig {
	config := ServiceConfig{
		Definition: schema.ServiceDefinition{
			Name:        "gazebo",
			Description: "Simulation world",
			Launcher:    "run.sh --flag",
			Environment: map[string]string{"KEY": "1"},
		},
		Environment: []string{"PATH=/usr/bin:/bin"},
		Host:        host,
		Clock:       fake,
		Logger:      testLogger(),
	}
	if recorder != nil {
		config.OnChange = recorder.record
	}
	return config
}
