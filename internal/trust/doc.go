// Package trust implements the certificate acceptance policy for the
// client transport.
//
// Cluster API servers commonly present certificates issued by a private CA
// that is not in the platform trust store. The Evaluator accepts such
// chains when, and only when, they terminate at a certificate that is
// byte-for-byte present in the caller-supplied CA bundle. Everything else
// defers to standard X.509 verification, so hostname mismatches and expired
// certificates are rejected no matter what the bundle contains.
//
// The Evaluator is installed as tls.Config.VerifyPeerCertificate and runs
// on the handshake path; it holds all trusted material in memory and
// performs no I/O.
package trust
