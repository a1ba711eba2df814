/*
Package security provides the two cryptographic services the API
Gateway and Cluster Descriptor need: loading operator-provisioned mTLS
material, and encrypting node credentials at rest.

# Architecture

	┌───────────────────────────────────────────────┐
	│                Security package                │
	└─────────────┬─────────────────────┬────────────┘
	              │                     │
	              ▼                     ▼
	     ┌────────────────┐    ┌──────────────────┐
	     │  TLS (certs.go) │    │ Secrets (secrets.go) │
	     └────────┬────────┘    └─────────┬────────────┘
	              │                       │
	      load cert/key/CA         AES-256-GCM seal/open
	      build tls.Config         node passwords at rest
	      extract client CN

ACE does not operate a certificate authority: operators provision the
API Gateway's serving certificate, key, and client-verification CA out
of band (spec.md §6, "cert/key/CA paths" in configuration), and
`ServerTLSConfig` loads them into a `tls.Config` with
`ClientAuth: RequireAndVerifyClientCert`. `ClientCN` then extracts the
subject common name from the verified chain on each request — this
becomes the task's `client_role` (spec.md §4.8).

The Cluster Descriptor's on-disk cache (pkg/clusterdesc) never stores a
node password in the clear: `SecretsManager.EncryptNodePassword` seals
it with AES-256-GCM under an operator-configured 32-byte key before
the record is written, and `DecryptNodePassword` recovers it only in
memory when a Connection Pool session needs to authenticate.

# Thread Safety

Both LoadServerCert and SecretsManager are safe for concurrent use;
SecretsManager holds no mutable state beyond its key.
*/
package security
