package vireo

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/indigo-web/vireo/internal/record"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// Certificates serves the certificates to every client.
func Certificates(certs ...tls.Certificate) Configurator {
	return record.Static{
		TLS: &tls.Config{
			Certificates: certs,
		},
	}
}

// CertFiles loads a PEM-encoded certificate along with its private key.
func CertFiles(cert, key string) (Configurator, error) {
	certificate, err := tls.LoadX509KeyPair(cert, key)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	return Certificates(certificate), nil
}

// SelfSigned generates an in-memory certificate for the hosts, localhost by default.
// Clients won't trust it, so it's meant for local development and tests.
func SelfSigned(hosts ...string) (Configurator, error) {
	cert, err := record.SelfSigned(hosts...)
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}

	return Certificates(cert), nil
}

// AutoCert obtains certificates from Let's Encrypt for the domains. Without domains, any
// requested host is allowed. The certificates are cached on the disk when possible.
func AutoCert(log *zap.Logger, domains ...string) Configurator {
	if log == nil {
		log = zap.NewNop()
	}

	m := &autocert.Manager{
		Prompt: autocert.AcceptTOS,
	}

	if len(domains) > 0 {
		m.HostPolicy = autocert.HostWhitelist(domains...)
	}

	cache := cacheDir()
	if err := mkdirIfNotExists(cache); err != nil {
		log.Warn("auto HTTPS: not using a cache", zap.Error(err))
	} else {
		m.Cache = autocert.DirCache(cache)
	}

	cfg := m.TLSConfig()
	// h2 is not served
	cfg.NextProtos = []string{"http/1.1", acme.ALPNProto}

	return record.Static{
		TLS: cfg,
	}
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
	const base = "vireo-autocert"

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

func mkdirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	} else if err != nil {
		return err
	}

	return nil
}
