// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Name     string        `flag:"name" desc:"the name"`
		Verbose  bool          `flag:"verbose,v" desc:"enable verbose output"`
		Count    int           `flag:"count" desc:"number of items"`
		Timeout  time.Duration `flag:"timeout" desc:"request timeout"`
		Tags     []string      `flag:"tags" desc:"tag list"`
		Untagged string
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"--name", "gazebo",
		"-v",
		"--count", "42",
		"--timeout", "30s",
		"--tags", "a,b,c",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "gazebo" {
		t.Errorf("Name = %q, want %q", p.Name, "gazebo")
	}
	if !p.Verbose {
		t.Error("Verbose = false, want true")
	}
	if p.Count != 42 {
		t.Errorf("Count = %d, want 42", p.Count)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", p.Timeout)
	}
	if strings.Join(p.Tags, ",") != "a,b,c" {
		t.Errorf("Tags = %v, want [a b c]", p.Tags)
	}
	if flagSet.Lookup("untagged") != nil {
		t.Error("untagged field was bound")
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Socket  string        `flag:"socket" default:"/run/concert/conductor.sock"`
		Wait    bool          `flag:"wait" default:"true"`
		Polls   int           `flag:"polls" default:"10"`
		Timeout time.Duration `flag:"timeout" default:"5s"`
		Apps    []string      `flag:"apps" default:"teleop,mapping"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Socket != "/run/concert/conductor.sock" || !p.Wait || p.Polls != 10 || p.Timeout != 5*time.Second {
		t.Errorf("defaults = %+v", p)
	}
	if len(p.Apps) != 2 || p.Apps[0] != "teleop" {
		t.Errorf("Apps = %v, want [teleop mapping]", p.Apps)
	}
}

type socketBinder struct {
	path string
}

func (b *socketBinder) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&b.path, "socket", "/default.sock", "socket path")
}

func TestBindFlags_Composition(t *testing.T) {
	type inner struct {
		Config string `flag:"config"`
	}
	type params struct {
		JSONOutput
		inner
		Binder socketBinder
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse([]string{"--json", "--config", "/etc/concert.yaml", "--socket", "/x.sock"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.OutputJSON {
		t.Error("OutputJSON = false, want true")
	}
	if p.Config != "/etc/concert.yaml" {
		t.Errorf("Config = %q, want /etc/concert.yaml", p.Config)
	}
	if p.Binder.path != "/x.sock" {
		t.Errorf("Binder.path = %q, want /x.sock", p.Binder.path)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	var notPointer struct{}
	if err := BindFlags(notPointer, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted a non-pointer")
	}

	type unsupported struct {
		Rate float32 `flag:"rate"`
	}
	if err := BindFlags(&unsupported{}, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted an unsupported type")
	}

	type badDefault struct {
		Count int `flag:"count" default:"many"`
	}
	if err := BindFlags(&badDefault{}, pflag.NewFlagSet("test", pflag.ContinueOnError)); err == nil {
		t.Error("BindFlags accepted an unparseable default")
	}
}

func TestFlagsFromParams_PanicsOnInvalidParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FlagsFromParams did not panic")
		}
	}()
	FlagsFromParams("test", "not a struct")
}
