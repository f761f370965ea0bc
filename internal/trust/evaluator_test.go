package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCA is a certificate authority generated for a single test.
type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newRootCA(t *testing.T, commonName string) *testCA {
	t.Helper()
	return newCA(t, commonName, nil)
}

func newCA(t *testing.T, commonName string, parent *testCA) *testCA {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          newSerial(t),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	parentCert := template
	parentKey := key
	if parent != nil {
		parentCert = parent.cert
		parentKey = parent.key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parentCert, &key.PublicKey, parentKey)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &testCA{cert: cert, key: key}
}

func (ca *testCA) newIntermediate(t *testing.T, commonName string) *testCA {
	t.Helper()
	return newCA(t, commonName, ca)
}

func (ca *testCA) issueLeaf(t *testing.T, dnsName string, notBefore, notAfter time.Time) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: newSerial(t),
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert
}

// issueValidLeaf issues a leaf certificate valid for the next hour.
func (ca *testCA) issueValidLeaf(t *testing.T, dnsName string) *x509.Certificate {
	t.Helper()
	return ca.issueLeaf(t, dnsName, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
}

func newSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	require.NoError(t, err)
	return serial
}

const testServerName = "api.cluster.example.com"

func TestNewEvaluator(t *testing.T) {
	t.Run("valid PEM bundle", func(t *testing.T) {
		ca := newRootCA(t, "test-root")
		pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.cert.Raw})

		e, err := NewEvaluator(pemData, testServerName)
		require.NoError(t, err)
		assert.Len(t, e.bundle, 1)
	})

	t.Run("empty bundle rejected", func(t *testing.T) {
		_, err := NewEvaluator(nil, testServerName)
		assert.Error(t, err)

		_, err = NewEvaluatorFromCerts(nil, testServerName)
		assert.Error(t, err)
	})

	t.Run("garbage PEM rejected", func(t *testing.T) {
		_, err := NewEvaluator([]byte("not a certificate"), testServerName)
		assert.Error(t, err)
	})
}

func TestEvaluateDefaultValidationSucceeds(t *testing.T) {
	// The issuing root is in the default roots; the bundle holds an
	// unrelated CA. Default validation succeeds, so the bundle is never
	// consulted.
	issuing := newRootCA(t, "platform-root")
	unrelated := newRootCA(t, "unrelated-root")
	leaf := issuing.issueValidLeaf(t, testServerName)

	roots := x509.NewCertPool()
	roots.AddCert(issuing.cert)

	e, err := NewEvaluatorFromCerts([]*x509.Certificate{unrelated.cert}, testServerName, WithRoots(roots))
	require.NoError(t, err)

	assert.NoError(t, e.Evaluate(leaf, nil))
}

func TestEvaluateBundleContainsIssuingRoot(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueValidLeaf(t, testServerName)

	tests := []struct {
		name   string
		bundle []*x509.Certificate
	}{
		{
			name:   "single correct root",
			bundle: []*x509.Certificate{issuing.cert},
		},
		{
			name: "correct root first among unrelated",
			bundle: []*x509.Certificate{
				issuing.cert,
				newRootCA(t, "other-a").cert,
				newRootCA(t, "other-b").cert,
			},
		},
		{
			name: "correct root last among unrelated",
			bundle: []*x509.Certificate{
				newRootCA(t, "other-a").cert,
				newRootCA(t, "other-b").cert,
				issuing.cert,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEvaluatorFromCerts(tt.bundle, testServerName, WithRoots(x509.NewCertPool()))
			require.NoError(t, err)
			assert.NoError(t, e.Evaluate(leaf, nil))
		})
	}
}

func TestEvaluateChainWithIntermediate(t *testing.T) {
	root := newRootCA(t, "cluster-root")
	intermediate := root.newIntermediate(t, "cluster-intermediate")
	leaf := intermediate.issueValidLeaf(t, testServerName)

	e, err := NewEvaluatorFromCerts([]*x509.Certificate{root.cert}, testServerName, WithRoots(x509.NewCertPool()))
	require.NoError(t, err)

	t.Run("intermediate presented by server", func(t *testing.T) {
		assert.NoError(t, e.Evaluate(leaf, []*x509.Certificate{intermediate.cert}))
	})

	t.Run("intermediate missing", func(t *testing.T) {
		err := e.Evaluate(leaf, nil)
		var rejection *RejectionError
		require.ErrorAs(t, err, &rejection)
	})
}

func TestEvaluateUnrelatedBundleRejected(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueValidLeaf(t, testServerName)

	bundle := []*x509.Certificate{
		newRootCA(t, "unrelated-a").cert,
		newRootCA(t, "unrelated-b").cert,
	}

	e, err := NewEvaluatorFromCerts(bundle, testServerName, WithRoots(x509.NewCertPool()))
	require.NoError(t, err)

	err = e.Evaluate(leaf, nil)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
}

func TestEvaluateExpiredLeafRejected(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueLeaf(t, testServerName,
		time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

	// Correct root in the bundle must not rescue an expired certificate.
	e, err := NewEvaluatorFromCerts([]*x509.Certificate{issuing.cert}, testServerName, WithRoots(x509.NewCertPool()))
	require.NoError(t, err)

	err = e.Evaluate(leaf, nil)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)

	var invalid x509.CertificateInvalidError
	assert.ErrorAs(t, rejection.Err, &invalid)
}

func TestEvaluateHostnameMismatchRejected(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueValidLeaf(t, "wrong.example.com")

	e, err := NewEvaluatorFromCerts([]*x509.Certificate{issuing.cert}, testServerName, WithRoots(x509.NewCertPool()))
	require.NoError(t, err)

	err = e.Evaluate(leaf, nil)
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
}

func TestVerifyPeerCertificate(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueValidLeaf(t, testServerName)

	e, err := NewEvaluatorFromCerts([]*x509.Certificate{issuing.cert}, testServerName, WithRoots(x509.NewCertPool()))
	require.NoError(t, err)

	t.Run("accepts raw chain", func(t *testing.T) {
		assert.NoError(t, e.VerifyPeerCertificate([][]byte{leaf.Raw}, nil))
	})

	t.Run("rejects empty chain", func(t *testing.T) {
		var rejection *RejectionError
		require.ErrorAs(t, e.VerifyPeerCertificate(nil, nil), &rejection)
	})

	t.Run("rejects unparseable certificate", func(t *testing.T) {
		var rejection *RejectionError
		require.ErrorAs(t, e.VerifyPeerCertificate([][]byte{{0x01, 0x02}}, nil), &rejection)
	})
}

func TestEvaluateExpiredViaClock(t *testing.T) {
	issuing := newRootCA(t, "cluster-root")
	leaf := issuing.issueValidLeaf(t, testServerName)

	farFuture := func() time.Time { return time.Now().Add(48 * time.Hour) }

	e, err := NewEvaluatorFromCerts([]*x509.Certificate{issuing.cert}, testServerName,
		WithRoots(x509.NewCertPool()), WithClock(farFuture))
	require.NoError(t, err)

	var rejection *RejectionError
	require.ErrorAs(t, e.Evaluate(leaf, nil), &rejection)
}
