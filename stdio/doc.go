// Package stdio carries line-delimited JSON-RPC 2.0 over a pair of byte
// streams, typically the stdin/stdout of a child process.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Auth             : OS user (lightweight implicit principal)
//	Sessions         : Ephemeral; one per Serve call
//	Framing          : one compact JSON object per "\n"-terminated line
//
// Handler is the server side. It reads lines, gates them on the initialize
// handshake and dispatches them through an mcpservice.Server:
//
//	reg := mcpservice.NewRegistry()
//	catalog.Register(reg)
//	srv := mcpservice.NewServer(reg,
//	    mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "my-stdio-server", Version: "0.1.0"}),
//	)
//	h := stdio.NewHandler(srv)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
//
// Client is the requesting side. It assigns increasing integer ids, records
// each call before writing it, and resolves calls by id as responses arrive,
// so out-of-order answers are matched correctly:
//
//	cmd := exec.Command("mcp-stdio-server")
//	stdin, _ := cmd.StdinPipe()
//	stdout, _ := cmd.StdoutPipe()
//	_ = cmd.Start()
//	c := stdio.NewClient(stdout, stdin)
//	res, err := c.Initialize(ctx, mcp.ImplementationInfo{Name: "c", Version: "0.1.0"}, mcp.ClientCapabilities{}, "")
//
// Lines that are not JSON never stop either side; they are logged and
// skipped. When the input closes, every call still pending on a Client fails
// with ErrConnectionClosed.
package stdio
