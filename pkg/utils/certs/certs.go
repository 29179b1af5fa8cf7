package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/utils/certs/traefik"
)

var ErrNoCertificate = errors.New("no certificate configured")

type (
	// Source names where the server certificate comes from. A traefik
	// acme.json takes precedence over a PEM key pair.
	Source struct {
		CertFile      string
		KeyFile       string
		CAFile        string
		TraefikCerts  string
		TraefikDomain string
	}

	// Provider serves the current certificate and reloads it when one of
	// the source files changes.
	Provider struct {
		src  Source
		l    *log.Logger
		mu   sync.RWMutex
		cert *tls.Certificate
	}
	Option func(*Provider)
)

func WithLogger(l *log.Logger) Option {
	return func(p *Provider) {
		p.l = l
	}
}

// Enabled reports whether src describes a certificate
func (src Source) Enabled() bool {
	return (src.TraefikCerts != "" && src.TraefikDomain != "") ||
		(src.CertFile != "" && src.KeyFile != "")
}

func NewProvider(src Source, opts ...Option) (*Provider, error) {
	p := &Provider{src: src, l: log.Default().Named("certs")}
	for _, opt := range opts {
		opt(p)
	}
	if !src.Enabled() {
		return nil, ErrNoCertificate
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// TLSConfig builds a server config which always hands out the latest
// loaded certificate.
func (p *Provider) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return p.Certificate(), nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if p.src.CAFile != "" {
		p.l.Info("Loading ca cert", log.String("file", p.src.CAFile))
		caCert, err := os.ReadFile(p.src.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("no certificates in %s", p.src.CAFile)
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return cfg, nil
}

func (p *Provider) Certificate() *tls.Certificate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cert
}

// a failed reload keeps the previous certificate
func (p *Provider) load() error {
	var (
		cert tls.Certificate
		err  error
	)
	if p.src.TraefikCerts != "" && p.src.TraefikDomain != "" {
		p.l.Info("Looking up traefik certs",
			log.String("file", p.src.TraefikCerts),
			log.String("domain", p.src.TraefikDomain))
		cert, err = traefik.LoadCertificate(p.src.TraefikCerts, p.src.TraefikDomain)
	} else {
		p.l.Info("Loading cert",
			log.String("key", p.src.KeyFile),
			log.String("cert", p.src.CertFile))
		cert, err = tls.LoadX509KeyPair(p.src.CertFile, p.src.KeyFile)
	}
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cert = &cert
	return nil
}

func (p *Provider) files() []string {
	if p.src.TraefikCerts != "" && p.src.TraefikDomain != "" {
		return []string{p.src.TraefikCerts}
	}
	return []string{p.src.CertFile, p.src.KeyFile}
}

// Watch reloads the certificate on changes until ctx is done. The
// directories are watched since cert managers usually replace files.
func (p *Provider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	files := lo.Map(p.files(), func(f string, _ int) string { return filepath.Clean(f) })
	for _, dir := range lo.Uniq(lo.Map(files, func(f string, _ int) string {
		return filepath.Dir(f)
	})) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			p.l.Debug("context done, stopping cert reload")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !lo.Contains(files, filepath.Clean(event.Name)) ||
				!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			p.l.Info("cert file changed, reloading cert", log.String("file", event.Name))
			if err := p.load(); err != nil {
				p.l.Error("could not reload cert", log.ErrorField(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.l.Error("watcher error", log.ErrorField(err))
		}
	}
}
