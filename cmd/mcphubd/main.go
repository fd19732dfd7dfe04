// Command mcphubd is a long-lived multiplexing router for JSON-RPC 2.0/MCP
// message streams: it supervises a fleet of backend subprocesses and fans
// in requests arriving over a local Unix domain socket or a Streamable
// HTTP+SSE endpoint.
package main

import "github.com/mcphub/mcphubd/cmd/mcphubd/cmd"

func main() {
	cmd.Execute()
}
