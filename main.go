package main

import "github.com/xenophobed/isA-MCP-sub015/cmd"

// version can be set during build with -ldflags
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
