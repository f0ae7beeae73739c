// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/concert/lib/statefile"
)

// Ledger is the on-disk record of the children a manager has running.
// Each child leads its own process group, so PID is also the group ID
// that ReapOrphans kills.
type Ledger struct {
	// Owner is the PID of the manager that wrote the ledger.
	Owner   int                    `json:"owner"`
	Updated time.Time              `json:"updated"`
	Entries map[string]LedgerEntry `json:"entries"`
}

// LedgerEntry records one enabled service.
type LedgerEntry struct {
	PID         int       `json:"pid"`
	InstanceID  string    `json:"instance_id"`
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"started_at"`
}

// ReadLedger reads the ledger at path. A missing file returns an empty
// ledger.
func ReadLedger(path string) (Ledger, error) {
	var ledger Ledger
	if _, err := statefile.ReadIfExists(path, &ledger); err != nil {
		return Ledger{}, fmt.Errorf("reading service ledger: %w", err)
	}
	if ledger.Entries == nil {
		ledger.Entries = make(map[string]LedgerEntry)
	}
	return ledger, nil
}

// ReapedService describes one orphan killed by ReapOrphans.
type ReapedService struct {
	Name  string
	Entry LedgerEntry
}

// ErrLedgerOwned is returned by ReapOrphans when the ledger belongs to
// a manager that is still running.
var ErrLedgerOwned = errors.New("service ledger is owned by a running manager")

// ReapOrphans kills the process groups recorded in the ledger at path
// that are still alive, then removes the ledger. It runs once at
// startup, before any service is enabled, to clean up after a manager
// that died without disabling its services.
//
// A group is killed only when its leader's environment carries the
// recorded instance ID. A reused PID belonging to anything else is
// logged and left alone.
func ReapOrphans(path string, logger *slog.Logger) ([]ReapedService, error) {
	ledger, err := ReadLedger(path)
	if err != nil {
		return nil, err
	}
	if ledger.Owner != 0 && ledger.Owner != os.Getpid() && processAlive(ledger.Owner) {
		return nil, fmt.Errorf("%w: pid %d", ErrLedgerOwned, ledger.Owner)
	}

	names := make([]string, 0, len(ledger.Entries))
	for name := range ledger.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var reaped []ReapedService
	var problems []error
	for _, name := range names {
		entry := ledger.Entries[name]
		if entry.PID <= 1 || !groupAlive(entry.PID) {
			continue
		}
		instance, err := leaderInstance(entry.PID)
		if err != nil || instance == "" || instance != entry.InstanceID {
			logger.Warn("leaving process group not started by this manager",
				"service", name,
				"pgid", entry.PID,
				"instance", entry.InstanceID,
				"found_instance", instance,
				"error", err,
			)
			continue
		}
		if err := killGroup(entry.PID); err != nil {
			problems = append(problems, fmt.Errorf("killing orphaned service %s (pgid %d): %w", name, entry.PID, err))
			continue
		}
		logger.Warn("killed orphaned service",
			"service", name,
			"pgid", entry.PID,
			"instance", entry.InstanceID,
			"started_at", entry.StartedAt,
		)
		reaped = append(reaped, ReapedService{Name: name, Entry: entry})
	}
	if len(problems) > 0 {
		return reaped, errors.Join(problems...)
	}

	if err := statefile.Clear(path); err != nil {
		return reaped, err
	}
	return reaped, nil
}

// leaderInstance returns the service instance ID in the environment of
// process pid, or "" when the process carries none.
func leaderInstance(pid int) (string, error) {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/environ")
	if err != nil {
		return "", fmt.Errorf("reading environment of pid %d: %w", pid, err)
	}
	return lookupEnv(strings.Split(string(data), "\x00"), EnvServiceInstance), nil
}

// processAlive reports whether a process with pid exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
