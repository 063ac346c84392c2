/*
Package client provides a Go client for pkgrun's gRPC API: RunProcedure
and StreamLogs.

# Usage

	c, err := client.NewClient("127.0.0.1:7420")
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	var cfg MyConfig
	callID, err := c.RunProcedure(ctx, "hello-world", "1.0.0", "getConfig", client.RunProcedureOptions{}, &cfg)
	if err != nil {
		var perr *client.ProcedureError
		if errors.As(err, &perr) {
			log.Printf("procedure failed: code=%d message=%s", perr.Code, perr.Message)
		}
		return err
	}

	err = c.StreamLogs(ctx, callID, func(line proto.LogLine) {
		fmt.Printf("[%s] %s\n", line.Level, line.Message)
	})

# Connection security

NewClient uses mTLS when a CLI certificate exists under
security.GetCLICertDir() (issued locally via the pkgrun ca command against
pkg/security's CertAuthority — there is no over-the-wire certificate
request RPC, unlike a clustered control plane where a join token buys one
from the leader), and falls back to a plaintext connection otherwise,
mirroring pkg/api.serverOptions' own TLSCertFile-or-nothing behavior.

# Procedure results

RunProcedure's wire response mirrors procedure.Result: either a decoded
value (unmarshaled into the out parameter) or an error code/message,
surfaced as a *ProcedureError. The callID it returns identifies the call's
log stream regardless of whether the procedure itself succeeded or
reported failure.
*/
package client
