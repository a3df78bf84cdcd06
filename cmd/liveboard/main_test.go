package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewCmd_RejectsBadPort(t *testing.T) {
	cmd := newCmd()
	cmd.SetArgs([]string{"--port", "70000"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid port") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewCmd_Version(t *testing.T) {
	cmd := newCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "liveboard v"+releaseVersion+"\n" {
		t.Fatalf("version output = %q", got)
	}
}

func TestNewCmd_RejectsArgs(t *testing.T) {
	cmd := newCmd()
	cmd.SetArgs([]string{"extra"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("positional args accepted")
	}
}
