// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// PlatformInfo identifies a client and the protocol revision it
// speaks. A controller refuses clients whose Version differs from its
// own expected version.
type PlatformInfo struct {
	// Name is the client's self-chosen name, used as the basis of the
	// controller-side display alias.
	Name string `json:"name"`

	// Version is the concert protocol revision.
	Version string `json:"version"`

	// Platform, System and Robot describe the hardware and software
	// stack (e.g. "linux", "ubuntu", "turtlebot").
	Platform string `json:"platform,omitempty"`
	System   string `json:"system,omitempty"`
	Robot    string `json:"robot,omitempty"`

	// Hostname is the machine the client runs on. A controller on the
	// same hostname treats the client as local.
	Hostname string `json:"hostname,omitempty"`

	// Icon is an optional resource name for UIs.
	Icon string `json:"icon,omitempty"`
}

// AppDescriptor describes one application a client can run.
type AppDescriptor struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name,omitempty"`
	Description   string `json:"description,omitempty"`
	Compatibility string `json:"compatibility,omitempty"`
}

// ListAppsResponse is the payload of [OpListApps].
type ListAppsResponse struct {
	Apps []AppDescriptor `json:"apps"`
}

// StartAppRequest is the payload of [OpStartApp].
type StartAppRequest struct {
	Name string `json:"name"`
}

// AppResponse is the reply to [OpStartApp] and [OpStopApp].
type AppResponse struct {
	Started bool   `json:"started"`
	Stopped bool   `json:"stopped"`
	Message string `json:"message,omitempty"`
}
