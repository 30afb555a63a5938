package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"

	"promowheel/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func serverOn(port int, tlsOn bool) *Server {
	cfg := &config.Config{}
	cfg.Server.Addr = strconv.Itoa(port)
	cfg.TLS.Enable = tlsOn
	cfg.TLS.CertPath = "testdata/missing.crt"
	cfg.TLS.KeyPath = "testdata/missing.key"
	return NewHttpServer(Params{Config: cfg, Handler: http.NotFoundHandler()})
}

func TestBusyPortFailsStart(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()

	lc := fxtest.NewLifecycle(t)
	Run(lc, serverOn(taken.Addr().(*net.TCPAddr).Port, false))
	require.Error(t, lc.Start(context.Background()))
}

func TestMissingCertificateFailsStart(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	Run(lc, serverOn(0, true))
	require.Error(t, lc.Start(context.Background()))
}
