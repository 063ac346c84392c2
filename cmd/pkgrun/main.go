package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/pkgrun/pkg/api"
	"github.com/cuemby/pkgrun/pkg/client"
	"github.com/cuemby/pkgrun/pkg/config"
	"github.com/cuemby/pkgrun/pkg/embedded"
	"github.com/cuemby/pkgrun/pkg/jsengine"
	"github.com/cuemby/pkgrun/pkg/log"
	"github.com/cuemby/pkgrun/pkg/procedure"
	"github.com/cuemby/pkgrun/pkg/rpcclient"
	"github.com/cuemby/pkgrun/pkg/security"
	"github.com/cuemby/pkgrun/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pkgrun",
	Short: "pkgrun - package-procedure execution core",
	Long: `pkgrun loads a package's embassy.js script and runs one of its
procedures (getConfig, setConfig, or a named action) against a sandboxed
scripting environment with policy-checked access to declared volumes, the
container-init process, and the network.

"run" invokes a procedure directly; "serve" exposes the same driver over a
gRPC front-end for callers off this host.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"pkgrun version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to pkgrun config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format; overrides config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(caCmd)
}

// loadConfig reads --config, overlays --log-level/--log-json if set, and
// initializes the global logger the way cmd/warren/main.go's initLogging
// does from cobra.OnInitialize — done here instead since pkgrun's
// subcommands need the resolved Config before anything else runs.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = log.Level(level)
	}
	if json, _ := cmd.Flags().GetBool("log-json"); cmd.Flags().Changed("log-json") {
		cfg.LogJSON = json
	}

	log.Init(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	return cfg, nil
}

var runCmd = &cobra.Command{
	Use:   "run PACKAGE_ID VERSION PROCEDURE",
	Short: "Run a single procedure and print its result as JSON",
	Long: `Loads PACKAGE_ID/VERSION's embassy.js from the configured data
directory and invokes PROCEDURE once, printing the decoded result (or
error code and message) to stdout. Useful for testing a package script
without standing up the gRPC front-end.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		packageID := types.PackageId(args[0])
		version := types.Version(args[1])
		name, err := types.ParseProcedureName(args[2])
		if err != nil {
			return err
		}

		var input interface{}
		if raw, _ := cmd.Flags().GetString("input"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				return fmt.Errorf("decoding --input: %w", err)
			}
		}
		var variableArgs []interface{}
		if raw, _ := cmd.Flags().GetStringArray("arg"); len(raw) > 0 {
			variableArgs = make([]interface{}, 0, len(raw))
			for _, a := range raw {
				var v interface{}
				if err := json.Unmarshal([]byte(a), &v); err != nil {
					return fmt.Errorf("decoding --arg %q: %w", a, err)
				}
				variableArgs = append(variableArgs, v)
			}
		}

		var rpc *rpcclient.Client
		if socketPath, _ := cmd.Flags().GetString("container-socket"); socketPath != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			rpc, err = rpcclient.Dial(ctx, socketPath)
			if err != nil {
				return fmt.Errorf("dialing container rpc socket: %w", err)
			}
			defer rpc.Close()
		}

		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		volumes := cfg.VolumeMap()
		gid := types.ProcessGroupId(0)
		env, err := jsengine.LoadFromPackage(cfg.DataDir, packageID, version, volumes, gid, rpc, logger)
		if err != nil {
			return fmt.Errorf("loading package: %w", err)
		}

		sandboxed, _ := cmd.Flags().GetBool("sandboxed")
		procCfg := procedure.Config{RPC: rpc, Logger: logger, Timeout: cfg.CallTimeout}

		var result procedure.Result[json.RawMessage]
		if sandboxed {
			result, err = procedure.Sandboxed[json.RawMessage](procCfg, env, name, input, variableArgs)
		} else {
			result, err = procedure.Run[json.RawMessage](procCfg, env, name, input, variableArgs, gid)
		}
		if err != nil {
			return fmt.Errorf("running procedure: %w", err)
		}

		if result.IsError {
			fmt.Fprintf(os.Stderr, "procedure error %d: %s\n", result.Code, result.Message)
			os.Exit(1)
		}
		fmt.Println(string(result.Value))
		return nil
	},
}

func init() {
	runCmd.Flags().String("data-dir", "", "Override the configured data directory")
	runCmd.Flags().String("input", "", "JSON input value for the procedure")
	runCmd.Flags().StringArray("arg", nil, "Additional JSON variable argument (repeatable)")
	runCmd.Flags().String("container-socket", "", "Container RPC unix socket path, if the procedure needs one")
	runCmd.Flags().Bool("sandboxed", false, "Run sandboxed: fetch and process control are refused")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gRPC procedure-execution API for this package container",
	Long: `Starts the RunProcedure/StreamLogs gRPC front-end plus a health and
metrics HTTP server, fronting the single Container RPC connection and Volume
Map this daemon was started with. One pkgrun serve instance fronts one
package container, matching spec.md §5's single-host sharing model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}
		if addr, _ := cmd.Flags().GetString("listen-addr"); addr != "" {
			cfg.ListenAddr = addr
		}
		if certFile, _ := cmd.Flags().GetString("tls-cert"); certFile != "" {
			cfg.TLSCertFile = certFile
		}
		if keyFile, _ := cmd.Flags().GetString("tls-key"); keyFile != "" {
			cfg.TLSKeyFile = keyFile
		}
		if caFile, _ := cmd.Flags().GetString("tls-ca"); caFile != "" {
			cfg.TLSCAFile = caFile
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if embed, _ := cmd.Flags().GetBool("embed-containerd"); embed {
			external, _ := cmd.Flags().GetBool("external-containerd")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := embedded.EnsureContainerd(ctx, cfg.DataDir, external); err != nil {
				cancel()
				return fmt.Errorf("ensuring containerd: %w", err)
			}
			cancel()
			log.Info("containerd ready for this host's container-init companion")
		}

		var rpc *rpcclient.Client
		if socketPath, _ := cmd.Flags().GetString("container-socket"); socketPath != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			rpc, err = rpcclient.Dial(ctx, socketPath)
			cancel()
			if err != nil {
				return fmt.Errorf("dialing container rpc socket: %w", err)
			}
			defer rpc.Close()
		}

		srv, err := api.NewServer(cfg, cfg.VolumeMap(), rpc)
		if err != nil {
			return fmt.Errorf("creating api server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errCh <- fmt.Errorf("api server error: %w", err)
			}
		}()
		log.Info(fmt.Sprintf("pkgrun serving on %s", cfg.ListenAddr))

		healthSrv := api.NewHealthServer(srv)
		go func() {
			if err := healthSrv.Start(cfg.MetricsListen); err != nil {
				errCh <- fmt.Errorf("health server error: %w", err)
			}
		}()
		log.Info(fmt.Sprintf("health/metrics serving on %s", cfg.MetricsListen))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			log.Error(err.Error())
		}

		healthSrv.Stop()
		srv.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("data-dir", "", "Override the configured data directory")
	serveCmd.Flags().String("listen-addr", "", "Override the configured gRPC listen address")
	serveCmd.Flags().String("container-socket", "", "Container RPC unix socket path")
	serveCmd.Flags().String("tls-cert", "", "Override the configured server TLS certificate path")
	serveCmd.Flags().String("tls-key", "", "Override the configured server TLS key path")
	serveCmd.Flags().String("tls-ca", "", "Override the configured client CA certificate path")
	serveCmd.Flags().Bool("embed-containerd", false, "Ensure a containerd is running under --data-dir before serving (embedded on Linux, Lima VM on macOS)")
	serveCmd.Flags().Bool("external-containerd", false, "With --embed-containerd, use an already-running containerd instead of starting an embedded one")
}

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the mTLS certificate authority for the gRPC front-end",
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new root CA and issue the server certificate",
	Long: `Generates a self-signed root CA under --dir and issues the gRPC
server certificate pkgrun serve presents, for the given --dns-name/--ip
subject alternative names. Run once per host before serve is configured
with --tls-cert/--tls-key/--tls-ca.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			d, err := security.GetCertDir("server", "daemon")
			if err != nil {
				return err
			}
			dir = d
		}

		ca := security.NewCertAuthority()
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("initializing CA: %w", err)
		}
		if err := ca.SaveToFile(dir); err != nil {
			return fmt.Errorf("saving CA: %w", err)
		}

		dnsNames, _ := cmd.Flags().GetStringArray("dns-name")
		ipStrs, _ := cmd.Flags().GetStringArray("ip")
		ips := make([]net.IP, 0, len(ipStrs))
		for _, s := range ipStrs {
			if ip := net.ParseIP(s); ip != nil {
				ips = append(ips, ip)
			}
		}
		cert, err := ca.IssueServerCertificate(dnsNames, ips)
		if err != nil {
			return fmt.Errorf("issuing server certificate: %w", err)
		}
		if err := security.SaveCertToFile(cert, dir); err != nil {
			return fmt.Errorf("saving server certificate: %w", err)
		}

		fmt.Printf("CA and server certificate written to %s\n", dir)
		fmt.Printf("  server cert: %s\n", dir+"/node.crt")
		fmt.Printf("  server key:  %s\n", dir+"/node.key")
		fmt.Printf("  ca cert:     %s\n", dir+"/ca.crt")
		fmt.Println("Configure serve with --tls-cert/--tls-key/--tls-ca pointing at these files.")
		return nil
	},
}

var caIssueClientCmd = &cobra.Command{
	Use:   "issue-client CLIENT_ID",
	Short: "Issue a client certificate for pkg/client mTLS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caDir, _ := cmd.Flags().GetString("ca-dir")
		if caDir == "" {
			d, err := security.GetCertDir("server", "daemon")
			if err != nil {
				return err
			}
			caDir = d
		}

		ca := security.NewCertAuthority()
		if err := ca.LoadFromFile(caDir); err != nil {
			return fmt.Errorf("loading CA from %s: %w", caDir, err)
		}

		outDir, _ := cmd.Flags().GetString("out-dir")
		if outDir == "" {
			d, err := security.GetCLICertDir()
			if err != nil {
				return err
			}
			outDir = d
		}

		cert, err := ca.IssueClientCertificate(args[0])
		if err != nil {
			return fmt.Errorf("issuing client certificate: %w", err)
		}
		if err := security.SaveCertToFile(cert, outDir); err != nil {
			return fmt.Errorf("saving client certificate: %w", err)
		}
		if err := security.SaveCACertToFile(ca.GetRootCACert(), outDir); err != nil {
			return fmt.Errorf("saving CA certificate: %w", err)
		}

		fmt.Printf("client certificate for %q written to %s\n", args[0], outDir)
		return nil
	},
}

func init() {
	caInitCmd.Flags().String("dir", "", "Directory to write the CA and server certificate to (default: security.GetCertDir)")
	caInitCmd.Flags().StringArray("dns-name", nil, "DNS SAN for the server certificate (repeatable)")
	caInitCmd.Flags().StringArray("ip", nil, "IP SAN for the server certificate (repeatable)")

	caIssueClientCmd.Flags().String("ca-dir", "", "Directory the CA was initialized into")
	caIssueClientCmd.Flags().String("out-dir", "", "Directory to write the client certificate to (default: security.GetCLICertDir)")

	caCmd.AddCommand(caInitCmd)
	caCmd.AddCommand(caIssueClientCmd)
}

// pingCmd exercises pkg/client end to end: a thin CLI sanity check that a
// pkgrun serve instance is reachable and a procedure can be invoked from
// off-process, mirroring cmd/warren's cluster-info-style diagnostic
// commands.
var pingCmd = &cobra.Command{
	Use:   "ping ADDR PACKAGE_ID VERSION PROCEDURE",
	Short: "Invoke a procedure against a running pkgrun serve instance",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.NewClient(args[0])
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", args[0], err)
		}
		defer c.Close()

		var out json.RawMessage
		callID, err := c.RunProcedure(context.Background(), args[1], args[2], args[3], client.RunProcedureOptions{}, &out)
		if err != nil {
			var perr *client.ProcedureError
			if errors.As(err, &perr) {
				fmt.Fprintf(os.Stderr, "procedure error %d: %s (call %s)\n", perr.Code, perr.Message, callID)
				os.Exit(1)
			}
			return err
		}
		fmt.Printf("call %s:\n%s\n", callID, string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
