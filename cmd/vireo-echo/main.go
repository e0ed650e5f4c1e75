package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/indigo-web/vireo"
	"github.com/indigo-web/vireo/config"
	"github.com/indigo-web/vireo/http"
	"github.com/indigo-web/vireo/http/status"
	"go.uber.org/zap"
)

type options struct {
	addr       string
	configFile string
	selfSigned bool
	cert, key  string
	autocert   string
	grace      time.Duration
	debug      bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&opts.configFile, "config", "", "JSON config file, overlaying the defaults")
	flag.BoolVar(&opts.selfSigned, "self-signed", false, "serve HTTPS with a self-signed certificate")
	flag.StringVar(&opts.cert, "cert", "", "PEM certificate file, used along with -key")
	flag.StringVar(&opts.key, "key", "", "PEM private key file, used along with -cert")
	flag.StringVar(&opts.autocert, "autocert", "", "comma-separated domains to obtain certificates for via ACME")
	flag.DurationVar(&opts.grace, "grace", 5*time.Second, "shutdown grace period")
	flag.BoolVar(&opts.debug, "debug", false, "verbose logging")
	flag.Parse()

	return opts
}

func loadConfig(path string) (*config.Config, error) {
	if len(path) == 0 {
		return config.Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return config.Load(f, config.Default())
}

func configurator(opts options, log *zap.Logger) (vireo.Configurator, error) {
	switch {
	case len(opts.cert) > 0 || len(opts.key) > 0:
		return vireo.CertFiles(opts.cert, opts.key)
	case len(opts.autocert) > 0:
		return vireo.AutoCert(log, strings.Split(opts.autocert, ",")...), nil
	case opts.selfSigned:
		return vireo.SelfSigned()
	default:
		return nil, nil
	}
}

// echo responds with the request body. Requests without body get a short summary of
// themselves instead.
func echo(ex http.Exchange) error {
	body, err := io.ReadAll(ex.RequestBody())
	if err != nil {
		return err
	}

	if len(body) == 0 {
		body = []byte(fmt.Sprintf("%s %s %s\n", ex.Method(), ex.URI(), ex.Protocol()))
	}

	if ct := ex.RequestHeaders().Value("Content-Type"); len(ct) > 0 {
		ex.ResponseHeaders().Set("Content-Type", ct)
	}

	if err = ex.SendResponseHeaders(status.OK, int64(len(body))); err != nil {
		return err
	}

	_, err = ex.ResponseBody().Write(body)
	return err
}

func logging(log *zap.Logger) http.Filter {
	return http.FilterFunc("access log", func(ex http.Exchange, next *http.Chain) error {
		start := time.Now()
		err := next.Next(ex)
		log.Info("request",
			zap.String("method", ex.Method()),
			zap.String("path", ex.URI().Path),
			zap.Uint16("code", uint16(ex.ResponseCode())),
			zap.Stringer("remote", ex.RemoteAddr()),
			zap.Duration("took", time.Since(start)),
		)

		return err
	})
}

func run(opts options, log *zap.Logger) error {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	server := vireo.New(cfg)
	if err = server.Logger(log); err != nil {
		return err
	}

	tlsConfigurator, err := configurator(opts, log)
	if err != nil {
		return err
	}

	if tlsConfigurator != nil {
		if err = server.TLS(tlsConfigurator); err != nil {
			return err
		}
	}

	ctx, err := server.CreateContext("/", http.HandlerFunc(echo))
	if err != nil {
		return err
	}

	ctx.AddFilter(logging(log))

	if err = server.Bind(opts.addr, 0); err != nil {
		return err
	}

	if err = server.Start(); err != nil {
		return err
	}

	log.Info("listening", zap.String("protocol", server.Protocol()), zap.Stringer("address", server.Address()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", zap.Stringer("signal", sig))

	return server.Stop(opts.grace)
}

func main() {
	opts := parseFlags()

	newLogger := zap.NewProduction
	if opts.debug {
		newLogger = zap.NewDevelopment
	}

	log, err := newLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err = run(opts, log); err != nil {
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}
