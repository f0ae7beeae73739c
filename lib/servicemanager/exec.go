// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// outputDrainTimeout bounds how long a reaped child's output pipe is
// read after exit. A grandchild that escaped the process group can hold
// the pipe open indefinitely.
const outputDrainTimeout = 2 * time.Second

// ExecHostConfig configures an ExecHost.
type ExecHostConfig struct {
	// OutputDirectory, when set, receives one zstd-compressed archive
	// of combined stdout and stderr per enabled period.
	OutputDirectory string

	Logger *slog.Logger
}

// ExecHost spawns real children with os/exec. Each child leads its own
// process group, and Terminate and Kill signal the whole group so that
// launcher scripts take their descendants with them.
type ExecHost struct {
	outputDirectory string
	logger          *slog.Logger
}

// NewExecHost creates an ExecHost.
func NewExecHost(config ExecHostConfig) *ExecHost {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecHost{outputDirectory: config.OutputDirectory, logger: logger}
}

var _ ProcessHost = (*ExecHost)(nil)

// Spawn starts argv with exactly env as its environment.
func (h *ExecHost) Spawn(argv, env []string) (Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, &SpawnError{Argv: argv, Err: errors.New("empty command")}
	}

	service, instance := lookupEnv(env, EnvServiceName), lookupEnv(env, EnvServiceInstance)
	logger := h.logger.With("service", service, "command", argv[0])

	outputReader, outputWriter, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Argv: argv, Err: fmt.Errorf("creating output pipe: %w", err)}
	}

	var archive *archiveWriter
	if h.outputDirectory != "" && service != "" && instance != "" {
		archive, err = createArchive(ArchivePath(h.outputDirectory, service, instance))
		if err != nil {
			outputReader.Close()
			outputWriter.Close()
			return nil, &SpawnError{Argv: argv, Err: err}
		}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = outputWriter
	cmd.Stderr = outputWriter
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		outputReader.Close()
		outputWriter.Close()
		if archive != nil {
			archive.Close()
		}
		return nil, &SpawnError{Argv: argv, Err: err}
	}
	// The child holds its own copy of the write end.
	outputWriter.Close()

	process := &execProcess{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	outputDone := make(chan struct{})
	go copyOutput(outputReader, archive, logger, outputDone)
	go process.wait(outputReader, outputDone, logger)

	logger.Debug("process spawned", "pid", process.pid)
	return process, nil
}

// copyOutput forwards each line of the child's output to the archive
// and the debug log until the pipe closes.
func copyOutput(reader io.Reader, archive *archiveWriter, logger *slog.Logger, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if archive != nil {
			archive.Write(line)
			archive.Write([]byte{'\n'})
		}
		logger.Debug("service output", "line", string(line))
	}
	if archive != nil {
		if err := archive.Close(); err != nil {
			logger.Warn("closing output archive failed", "error", err)
		}
	}
}

func lookupEnv(env []string, key string) string {
	prefix := key + "="
	for i := len(env) - 1; i >= 0; i-- {
		if value, found := strings.CutPrefix(env[i], prefix); found {
			return value
		}
	}
	return ""
}

type execProcess struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu         sync.Mutex
	exitStatus string
}

func (p *execProcess) wait(outputReader *os.File, outputDone <-chan struct{}, logger *slog.Logger) {
	err := p.cmd.Wait()

	var status string
	var exitError *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitError):
		status = p.cmd.ProcessState.String()
	default:
		status = fmt.Sprintf("wait failed: %v", err)
	}

	select {
	case <-outputDone:
	case <-time.After(outputDrainTimeout): //nolint:realclock bounded cleanup of a real pipe
		logger.Warn("output pipe still open after exit, abandoning it", "pid", p.pid)
		outputReader.Close()
		<-outputDone
	}
	outputReader.Close()

	p.mu.Lock()
	p.exitStatus = status
	p.mu.Unlock()
	logger.Debug("process reaped", "pid", p.pid, "status", status)
	close(p.done)
}

func (p *execProcess) PID() int { return p.pid }

func (p *execProcess) Poll() ProcessState {
	select {
	case <-p.done:
		return Exited
	default:
		return Running
	}
}

func (p *execProcess) Terminate() error { return p.signalGroup(unix.SIGTERM) }

func (p *execProcess) Kill() error { return p.signalGroup(unix.SIGKILL) }

// signalGroup signals the child's process group. A group that is
// already gone is not an error.
func (p *execProcess) signalGroup(signal unix.Signal) error {
	if p.Poll() == Exited {
		return nil
	}
	if err := unix.Kill(-p.pid, signal); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("sending %s to process group %d: %w", unix.SignalName(signal), p.pid, err)
	}
	return nil
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitStatus
}

// groupAlive reports whether any process in the group led by pgid still
// exists.
func groupAlive(pgid int) bool {
	err := unix.Kill(-pgid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// killGroup sends SIGKILL to the group led by pgid.
func killGroup(pgid int) error {
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
