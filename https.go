package strand

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/indigo-web/strand/transport"
	"golang.org/x/crypto/acme/autocert"
)

// tlsModule swaps the plain transport of every connection for a TLS one. The handshake
// is performed on the connection's first read.
type tlsModule struct {
	config *tls.Config
	err    error
}

func (t tlsModule) Open(c *Conn) (ModuleContext, error) {
	if t.err != nil {
		return nil, t.err
	}

	c.SetTransport(transport.NewTLS(c.Transport().Conn(), t.config, c.Config().NET.KeepAliveTimeout))
	return nil, nil
}

// TLS serves connections over TLS with the passed certificates. Certificates can be
// loaded via tls.LoadX509KeyPair.
func TLS(certs ...tls.Certificate) Module {
	if len(certs) == 0 {
		return tlsModule{err: ErrNoCertificates}
	}

	for _, cert := range certs {
		if len(cert.Certificate) == 0 {
			return tlsModule{err: ErrBadCertificate}
		}
	}

	return tlsModule{config: &tls.Config{Certificates: certs}}
}

// HTTPS loads the certificate and its key from files.
func HTTPS(cert, key string) Module {
	certificate, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return tlsModule{err: err}
	}

	return TLS(certificate)
}

// AutoHTTPS obtains certificates for the domains from Let's Encrypt. If no domains are
// passed or the only one is localhost, a self-signed certificate is used instead.
func AutoHTTPS(domains ...string) Module {
	if len(domains) == 0 || (len(domains) == 1 && domains[0] == "localhost") {
		cert, err := selfSigned(cacheDir())
		if err != nil {
			return tlsModule{err: err}
		}

		return TLS(cert)
	}

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
	}

	cache := cacheDir()
	if err := mkdirIfNotExists(cache); err != nil {
		log.Printf("WARNING: auto HTTPS: not using a cache: %s", err)
	} else {
		m.Cache = autocert.DirCache(cache)
	}

	return tlsModule{config: m.TLSConfig()}
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/"
}

func cacheDir() string {
	const base = "strand-autocert"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches", base)
	case "windows":
		for _, ev := range []string{"APPDATA", "CSIDL_APPDATA", "TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return filepath.Join(v, base)
			}
		}

		return filepath.Join(homeDir(), base)
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, base)
	}
	return filepath.Join(homeDir(), ".cache", base)
}

// selfSigned returns the localhost certificate cached in the directory, generating and
// caching a new one if there's none yet.
func selfSigned(dir string) (tls.Certificate, error) {
	var (
		certFilename = filepath.Join(dir, "localhost.crt")
		keyFilename  = filepath.Join(dir, "localhost.key")
	)

	if certExists(certFilename, keyFilename) {
		return tls.LoadX509KeyPair(certFilename, keyFilename)
	}

	certPEM, keyPEM, err := generateSelfSigned()
	if err != nil {
		return tls.Certificate{}, err
	}

	if err = mkdirIfNotExists(dir); err == nil {
		err = os.WriteFile(certFilename, certPEM, 0600)
		if err == nil {
			err = os.WriteFile(keyFilename, keyPEM, 0600)
		}
	}

	if err != nil {
		log.Printf("WARNING: self-signed certificate won't be cached: %s", err)
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}

func generateSelfSigned() (certPEM, keyPEM []byte, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(10 * 365 * 24 * time.Hour)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"Localhost"}},
		DNSNames:              []string{"localhost"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, err
	}

	privBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, err
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})

	return certPEM, keyPEM, nil
}

func mkdirIfNotExists(dir string) error {
	if stat, err := os.Stat(dir); err == nil && stat.IsDir() {
		return nil
	}

	return os.MkdirAll(dir, 0700)
}

func certExists(cert, key string) bool {
	return fileExists(cert) && fileExists(key)
}

func fileExists(filename string) bool {
	stat, err := os.Stat(filename)

	return err == nil && !stat.IsDir()
}
