package main

import (
	"testing"

	"github.com/xenophobed/isA-MCP-sub015/cmd"
)

func TestVersionVariable(t *testing.T) {
	if version != "dev" {
		t.Errorf("expected default version to be 'dev', got %s", version)
	}

	version = "1.2.3"
	cmd.SetVersion(version)
	if cmd.GetVersion() != "1.2.3" {
		t.Errorf("expected SetVersion to propagate, got %s", cmd.GetVersion())
	}
	version = "dev"
}
