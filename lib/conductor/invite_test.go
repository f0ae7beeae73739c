// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

func newTestSession(t *testing.T, channel *fakeChannel, recorder *eventRecorder) *ClientSession {
	t.Helper()
	if _, ok := channel.clients["robot-a"]; !ok {
		channel.add("robot-a")
	}
	session, err := NewClientSession(context.Background(), testSessionConfig(channel, "robot-a", recorder))
	if err != nil {
		t.Fatalf("NewClientSession: %v", err)
	}
	t.Cleanup(func() { session.Close(context.Background()) })
	return session
}

func setInvite(channel *fakeChannel, reply func(schema.InviteRequest) (schema.InviteResponse, error)) {
	channel.update("robot-a", func(client *fakeClient) { client.invite = reply })
}

func TestInviteSuccess(t *testing.T) {
	channel := newFakeChannel()
	recorder := &eventRecorder{}
	session := newTestSession(t, channel, recorder)

	result, err := session.Invite(context.Background(), "concert-a", "kitchen", false)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if !result.Success || result.Outcome != OutcomeInvited || result.Code != schema.CodeSuccess {
		t.Fatalf("Invite result = %+v, want invited", result)
	}
	if !session.Status().Invited {
		t.Error("session not invited after success")
	}
	want := schema.InviteRequest{ControllerID: "concert-a", ControllerHost: "concert-host", ClientAlias: "kitchen"}
	if channel.lastInvite != want {
		t.Errorf("invite request = %+v, want %+v", channel.lastInvite, want)
	}

	// A repeated invite reaches the client again but fires no new edge.
	if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
		t.Fatalf("second Invite: %v", err)
	}
	if got := channel.callCount(schema.OpInvite); got != 2 {
		t.Errorf("invite calls = %d, want 2", got)
	}

	result, err = session.Invite(context.Background(), "concert-a", "kitchen", true)
	if err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if !result.Success || result.Outcome != OutcomeUninvited {
		t.Fatalf("uninvite result = %+v, want uninvited", result)
	}
	if session.Status().Invited {
		t.Error("session still invited after uninvite")
	}
	if !channel.lastInvite.Cancel {
		t.Error("uninvite request did not set Cancel")
	}

	if got, want := recorder.kinds(), []EventKind{EventInvited, EventUninvited}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestInviteArguments(t *testing.T) {
	channel := newFakeChannel()
	session := newTestSession(t, channel, nil)

	if _, err := session.Invite(context.Background(), "", "kitchen", false); err == nil {
		t.Error("Invite with empty controller ID succeeded")
	}
	if _, err := session.Invite(context.Background(), "concert-a", "", false); err == nil {
		t.Error("Invite with empty alias succeeded")
	}
	if got := channel.callCount(schema.OpInvite); got != 0 {
		t.Errorf("invite calls = %d, want 0", got)
	}
}

func TestUninviteWhenNotInvitedSkipsCall(t *testing.T) {
	channel := newFakeChannel()
	session := newTestSession(t, channel, nil)

	result, err := session.Invite(context.Background(), "concert-a", "", true)
	if err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if !result.Success || result.Outcome != OutcomeAlreadyUninvited {
		t.Fatalf("result = %+v, want already-uninvited success", result)
	}
	if got := channel.callCount(schema.OpInvite); got != 0 {
		t.Errorf("invite calls = %d, want 0", got)
	}
}

func TestPolicyRefusalBlocks(t *testing.T) {
	for _, code := range []schema.ErrorCode{
		schema.CodeNotWhitelisted,
		schema.CodeBlacklisted,
		schema.CodeLocalInvitationsOnly,
	} {
		t.Run(code.String(), func(t *testing.T) {
			channel := newFakeChannel()
			recorder := &eventRecorder{}
			session := newTestSession(t, channel, recorder)
			setInvite(channel, refuseInvites(code))

			result, err := session.Invite(context.Background(), "concert-a", "kitchen", false)
			if err != nil {
				t.Fatalf("Invite: %v", err)
			}
			if result.Success || result.Outcome != OutcomeBlocked || result.Code != code {
				t.Fatalf("result = %+v, want blocked with %s", result, code)
			}
			status := session.Status()
			if !status.Blocked || status.Invited {
				t.Fatalf("status = %+v, want blocked and not invited", status)
			}

			// Later invites are answered locally with the remembered code.
			setInvite(channel, acceptInvites)
			result, err = session.Invite(context.Background(), "concert-a", "kitchen", false)
			if err != nil {
				t.Fatalf("second Invite: %v", err)
			}
			if result.Success || result.Outcome != OutcomeBlocked || result.Code != code {
				t.Errorf("second result = %+v, want remembered block", result)
			}
			if got := channel.callCount(schema.OpInvite); got != 1 {
				t.Errorf("invite calls = %d, want 1", got)
			}
			if got, want := recorder.kinds(), []EventKind{EventBlocked}; !slices.Equal(got, want) {
				t.Errorf("events = %v, want %v", got, want)
			}
		})
	}
}

func TestSuccessfulUninviteClearsBlock(t *testing.T) {
	channel := newFakeChannel()
	session := newTestSession(t, channel, nil)

	if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	setInvite(channel, refuseInvites(schema.CodeBlacklisted))
	if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
		t.Fatalf("refused Invite: %v", err)
	}
	if status := session.Status(); !status.Blocked || !status.Invited {
		t.Fatalf("status = %+v, want blocked while still invited", status)
	}

	setInvite(channel, acceptInvites)
	result, err := session.Invite(context.Background(), "concert-a", "kitchen", true)
	if err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if result.Outcome != OutcomeUninvited {
		t.Fatalf("result = %+v, want uninvited", result)
	}
	if status := session.Status(); status.Blocked || status.Invited {
		t.Errorf("status = %+v, want block cleared", status)
	}
}

func TestInvitedElsewhere(t *testing.T) {
	channel := newFakeChannel()
	recorder := &eventRecorder{}
	session := newTestSession(t, channel, recorder)
	setInvite(channel, refuseInvites(schema.CodeAlreadyRemoteControlled))

	for i := 0; i < 3; i++ {
		result, err := session.Invite(context.Background(), "concert-a", "kitchen", false)
		if err != nil {
			t.Fatalf("Invite %d: %v", i, err)
		}
		if result.Outcome != OutcomeInvitedElsewhere {
			t.Fatalf("Invite %d outcome = %s, want invited-elsewhere", i, result.Outcome)
		}
	}
	if got := channel.callCount(schema.OpInvite); got != 3 {
		t.Errorf("invite calls = %d, want 3 (invited-elsewhere does not short-circuit)", got)
	}
	status := session.Status()
	if !status.InvitedElsewhere || status.Blocked || status.Invited {
		t.Errorf("status = %+v, want only invited-elsewhere", status)
	}
	if got, want := recorder.kinds(), []EventKind{EventInvitedElsewhere}; !slices.Equal(got, want) {
		t.Errorf("events = %v, want a single edge %v", got, want)
	}

	setInvite(channel, acceptInvites)
	if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	status = session.Status()
	if status.InvitedElsewhere || !status.Invited {
		t.Errorf("status = %+v, want invited with invited-elsewhere cleared", status)
	}
}

func TestInviteRejected(t *testing.T) {
	channel := newFakeChannel()
	session := newTestSession(t, channel, nil)
	setInvite(channel, refuseInvites(schema.CodeInvalidRequest))

	result, err := session.Invite(context.Background(), "concert-a", "kitchen", false)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if result.Outcome != OutcomeRejected || result.Retryable() {
		t.Errorf("result = %+v, want non-retryable rejection", result)
	}
	status := session.Status()
	if status.Blocked || status.Invited || status.InvitedElsewhere {
		t.Errorf("status = %+v, want no flags", status)
	}
	if status.LastInviteError != schema.CodeInvalidRequest {
		t.Errorf("LastInviteError = %s, want %s", status.LastInviteError, schema.CodeInvalidRequest)
	}
}

func TestUninviteRefused(t *testing.T) {
	channel := newFakeChannel()
	session := newTestSession(t, channel, nil)
	if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
		t.Fatalf("Invite: %v", err)
	}

	setInvite(channel, refuseInvites(schema.CodeNotCurrentController))
	result, err := session.Invite(context.Background(), "concert-a", "kitchen", true)
	if err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if result.Success || result.Outcome != OutcomeUninviteFailed || !result.Retryable() {
		t.Errorf("result = %+v, want retryable uninvite failure", result)
	}
	if !session.Status().Invited {
		t.Error("refused uninvite cleared the invitation")
	}
}

func TestTransportFailureLeavesStateUntouched(t *testing.T) {
	failures := []error{
		gateway.ErrTimeout,
		gateway.ErrUnreachable,
		gateway.ErrInterrupted,
		&gateway.RemoteError{Endpoint: "robot-a", Operation: schema.OpInvite, Message: "handler panicked"},
	}

	for _, failure := range failures {
		for _, cancel := range []bool{false, true} {
			name := failure.Error()
			if cancel {
				name += "/uninvite"
			}
			t.Run(name, func(t *testing.T) {
				channel := newFakeChannel()
				session := newTestSession(t, channel, nil)
				if _, err := session.Invite(context.Background(), "concert-a", "kitchen", false); err != nil {
					t.Fatalf("Invite: %v", err)
				}
				before := session.Status()

				setInvite(channel, failInvites(failure))
				result, err := session.Invite(context.Background(), "concert-a", "kitchen", cancel)
				if err != nil {
					t.Fatalf("Invite: %v", err)
				}
				if result.Success || result.Outcome != OutcomeConnectionDisrupted || !result.Retryable() {
					t.Fatalf("result = %+v, want retryable disruption", result)
				}
				if result.Code != schema.CodeConnectionDisrupted {
					t.Errorf("Code = %s, want %s", result.Code, schema.CodeConnectionDisrupted)
				}

				after := session.Status()
				if after.Invited != before.Invited || after.Blocked != before.Blocked ||
					after.InvitedElsewhere != before.InvitedElsewhere || after.ReadyForAction != before.ReadyForAction {
					t.Errorf("disruption changed state: before %+v, after %+v", before, after)
				}
				if after.LastInviteError != schema.CodeConnectionDisrupted {
					t.Errorf("LastInviteError = %s, want %s", after.LastInviteError, schema.CodeConnectionDisrupted)
				}
			})
		}
	}
}

func TestIsReadyForAction(t *testing.T) {
	channel := newFakeChannel()
	recorder := &eventRecorder{}
	session := newTestSession(t, channel, recorder)
	ctx := context.Background()

	channel.update("robot-a", func(client *fakeClient) { client.probeResult = true })
	if session.IsReadyForAction(ctx) {
		t.Fatal("uninvited session reported ready")
	}
	if got := channel.probeCount(); got != 0 {
		t.Fatalf("probes = %d for an uninvited session, want 0", got)
	}

	if _, err := session.Invite(ctx, "concert-a", "kitchen", false); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	channel.update("robot-a", func(client *fakeClient) { client.probeResult = false })
	if session.IsReadyForAction(ctx) {
		t.Fatal("ready before start_app was exposed")
	}
	channel.update("robot-a", func(client *fakeClient) { client.probeErr = gateway.ErrTimeout })
	if session.IsReadyForAction(ctx) {
		t.Fatal("ready after a failed probe")
	}

	channel.update("robot-a", func(client *fakeClient) {
		client.probeErr = nil
		client.probeResult = true
	})
	if !session.IsReadyForAction(ctx) {
		t.Fatal("not ready after start_app was exposed")
	}
	probes := channel.probeCount()

	// Latched: the probe is not repeated even if the client retracts.
	channel.update("robot-a", func(client *fakeClient) { client.probeResult = false })
	for i := 0; i < 3; i++ {
		if !session.IsReadyForAction(ctx) {
			t.Fatalf("readiness dropped on call %d", i)
		}
	}
	if got := channel.probeCount(); got != probes {
		t.Errorf("probes = %d after latching, want %d", got, probes)
	}
	if !session.Status().ReadyForAction {
		t.Error("Status().ReadyForAction = false after latching")
	}

	if _, err := session.Invite(ctx, "concert-a", "kitchen", true); err != nil {
		t.Fatalf("uninvite: %v", err)
	}
	if session.Status().ReadyForAction {
		t.Error("readiness survived an uninvite")
	}
	if _, err := session.Invite(ctx, "concert-a", "kitchen", false); err != nil {
		t.Fatalf("re-invite: %v", err)
	}
	if session.IsReadyForAction(ctx) {
		t.Error("re-invited session reported ready without a fresh probe succeeding")
	}

	want := []EventKind{EventInvited, EventReady, EventUninvited, EventInvited}
	if got := recorder.kinds(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestOutcomeStrings(t *testing.T) {
	for outcome := OutcomeInvited; outcome <= OutcomeUninviteFailed; outcome++ {
		if got := outcome.String(); got == "" || strings.HasPrefix(got, "outcome(") {
			t.Errorf("Outcome(%d).String() = %q, want a name", int(outcome), got)
		}
	}
	if got := Outcome(99).String(); got != "outcome(99)" {
		t.Errorf("Outcome(99).String() = %q", got)
	}
}
