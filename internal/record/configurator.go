package record

import (
	"crypto/tls"
	"net"
)

// Parameters are the TLS settings, which may differ from one connection to another.
type Parameters struct {
	ClientAddr   net.Addr
	CipherSuites []uint16
	MinVersion   uint16
	MaxVersion   uint16
	ClientAuth   tls.ClientAuthType
	NextProtos   []string
}

// Configurator supplies the TLS configuration of a server.
type Configurator interface {
	// Config returns the base configuration. It must not be modified after it was returned.
	Config() *tls.Config
	// Configure adjusts the parameters of a single connection, given its peer address.
	Configure(params *Parameters)
}

// Static is a Configurator, applying the same configuration to every connection.
type Static struct {
	TLS *tls.Config
}

func (s Static) Config() *tls.Config {
	return s.TLS
}

func (Static) Configure(*Parameters) {}

// ConfigFor derives the configuration of a single connection.
func ConfigFor(c Configurator, addr net.Addr) *tls.Config {
	cfg := c.Config().Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"http/1.1"}
	}

	params := Parameters{
		ClientAddr:   addr,
		CipherSuites: cfg.CipherSuites,
		MinVersion:   cfg.MinVersion,
		MaxVersion:   cfg.MaxVersion,
		ClientAuth:   cfg.ClientAuth,
		NextProtos:   cfg.NextProtos,
	}
	c.Configure(&params)

	cfg.CipherSuites = params.CipherSuites
	cfg.MinVersion = params.MinVersion
	cfg.MaxVersion = params.MaxVersion
	cfg.ClientAuth = params.ClientAuth
	cfg.NextProtos = params.NextProtos

	return cfg
}
