package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"promowheel/pkg/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

// Server serves the API. With TLS enabled the key pair is re-read whenever
// either file changes on disk, so rotated certificates apply without a restart.
type Server struct {
	server   *http.Server
	cert     atomic.Pointer[tls.Certificate]
	certPath string
	keyPath  string
	done     chan struct{}
}

type Params struct {
	fx.In
	Config  *config.Config
	Handler http.Handler
}

func NewHttpServer(p Params) *Server {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Addr),
			Handler:      p.Handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		certPath: cfg.TLS.CertPath,
		keyPath:  cfg.TLS.KeyPath,
		done:     make(chan struct{}),
	}

	if cfg.TLS.Enable {
		srv.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
				if c := srv.cert.Load(); c != nil {
					return c, nil
				}
				return nil, errors.New("no TLS certificate loaded")
			},
		}
	}

	return srv
}

func (s *Server) loadCert() error {
	cert, err := tls.LoadX509KeyPair(s.certPath, s.keyPath)
	if err != nil {
		return err
	}
	s.cert.Store(&cert)
	return nil
}

// watchTLSFiles keeps the last good certificate when a reload fails.
func (s *Server) watchTLSFiles(watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.loadCert(); err != nil {
				zap.L().Error("failed to reload TLS certificate", zap.String("file", event.Name), zap.Error(err))
				continue
			}
			zap.L().Info("TLS certificate reloaded", zap.String("file", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Warn("TLS watcher error", zap.Error(err))
		}
	}
}

func (s *Server) startTLS() error {
	if err := s.loadCert(); err != nil {
		return fmt.Errorf("load TLS certificate: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch TLS files: %w", err)
	}
	for _, f := range []string{s.certPath, s.keyPath} {
		if err := watcher.Add(f); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", f, err)
		}
	}
	go s.watchTLSFiles(watcher)
	return nil
}

// Run binds the listener during start so a busy port fails the app instead
// of being logged from a goroutine.
func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return err
			}

			tlsOn := srv.server.TLSConfig != nil
			if tlsOn {
				if err := srv.startTLS(); err != nil {
					_ = ln.Close()
					return err
				}
			}

			zap.L().Info("http server listening", zap.String("addr", srv.server.Addr), zap.Bool("tls", tlsOn))
			go func() {
				var err error
				if tlsOn {
					// certificates come from TLSConfig.GetCertificate
					err = srv.server.ServeTLS(ln, "", "")
				} else {
					err = srv.server.Serve(ln)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(srv.done)
			zap.L().Info("shutting down http server")
			return srv.server.Shutdown(ctx)
		},
	})
}
