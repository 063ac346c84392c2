/*
Package security provides the mutual-TLS certificate lifecycle for pkgrun's
gRPC front-end (pkg/api, pkg/client): a self-signed root CA, a server
certificate for the gRPC listener, and client certificates for callers.

There is no cluster here, so this is a much smaller surface than a
multi-node CA: one CertAuthority per pkgrun daemon, persisted directly to
ca.crt/ca.key under the daemon's data directory rather than through a
raft-backed store and a cluster-wide encryption key.

# Certificate Authority

	CA := NewCertAuthority()
	CA.Initialize()             // generates a 4096-bit self-signed root, 10y validity
	CA.SaveToFile(dir)          // ca.crt + ca.key under dir

	CA2 := NewCertAuthority()
	CA2.LoadFromFile(dir)       // recover an existing CA on daemon restart

# Issuing leaf certificates

	serverCert, _ := CA.IssueServerCertificate(dnsNames, ipAddresses)
	clientCert, _ := CA.IssueClientCertificate(clientID)

Both are RSA 2048-bit, 90-day validity, signed by the root. Server
certificates carry both ServerAuth and ClientAuth extended key usage;
client certificates carry ClientAuth only.

# File layout

	SaveCertToFile(cert, dir)    // dir/node.crt, dir/node.key
	LoadCertFromFile(dir)
	SaveCACertToFile(der, dir)   // dir/ca.crt
	LoadCACertFromFile(dir)
	GetCertDir(role, id)         // ~/.pkgrun/certs/<role>-<id>
	GetCLICertDir()              // ~/.pkgrun/certs/cli

# gRPC wiring

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{*serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    rootPool,
		MinVersion:   tls.VersionTLS13,
	})
*/
package security
