// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"time"

	"github.com/bureau-foundation/concert/lib/schema"
)

// EventKind names a session state edge.
type EventKind int

const (
	EventInvited EventKind = iota
	EventUninvited
	EventBlocked
	EventInvitedElsewhere
	EventReady

	// EventEvicted is emitted by a Roster when it stops tracking a
	// client.
	EventEvicted
)

func (k EventKind) String() string {
	switch k {
	case EventInvited:
		return "invited"
	case EventUninvited:
		return "uninvited"
	case EventBlocked:
		return "blocked"
	case EventInvitedElsewhere:
		return "invited-elsewhere"
	case EventReady:
		return "ready"
	case EventEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Event is delivered to SessionConfig.OnEvent on every state edge.
type Event struct {
	Kind     EventKind
	Endpoint string
	Code     schema.ErrorCode
	At       time.Time
}
