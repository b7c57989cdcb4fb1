package store

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig holds certificate paths for securing connections to a remote
// enum store backend. When enabled, communication is encrypted and
// authenticated using mutual TLS.
type TLSConfig struct {
	// Enabled determines whether TLS is active
	// If false, all other fields are ignored
	Enabled bool

	// CertFile is the path to the client certificate file (PEM format)
	CertFile string

	// KeyFile is the path to the client private key file (PEM format)
	KeyFile string

	// CAFile is the path to the certificate authority file (PEM format)
	// Used to verify the server's certificate
	CAFile string
}

// ClientConfig builds a tls.Config for client connections, or (nil, nil)
// when TLS is disabled.
func (c *TLSConfig) ClientConfig() (*tls.Config, error) {
	if c == nil || !c.Enabled {
		return nil, nil
	}

	if c.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file is required when TLS is enabled")
	}
	if c.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file is required when TLS is enabled")
	}
	if c.CAFile == "" {
		return nil, fmt.Errorf("TLS CA file is required when TLS is enabled")
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
