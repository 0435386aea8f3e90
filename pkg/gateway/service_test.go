package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NotCoffee418/scale_gateway/pkg/api"
	"github.com/NotCoffee418/scale_gateway/pkg/config"
	"github.com/NotCoffee418/scale_gateway/pkg/port_reader"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type linePort struct {
	mu   sync.Mutex
	data []string
}

func (p *linePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.data) == 0 {
		return 0, nil
	}
	n := copy(b, p.data[0])
	p.data = p.data[1:]
	return n, nil
}

func (p *linePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *linePort) Close() error                { return nil }
func (p *linePort) ResetInputBuffer() error     { return nil }
func (p *linePort) ResetOutputBuffer() error    { return nil }

func testConfig(erpURL string) config.GatewayConfig {
	cfg := *config.DefaultGatewayConfig()
	cfg.Serial.Port = "/dev/ttyTEST"
	cfg.Serial.SettleDelayMs = 0
	cfg.Serial.ReopenDelayMs = 0
	cfg.ERP.URL = erpURL
	cfg.ERP.Username = "u"
	cfg.ERP.Password = "p"
	cfg.ERP.Address = "10.0.0.7"
	cfg.Web.ListenAddress = "127.0.0.1"
	return cfg
}

func getStatus(t *testing.T, base string) api.StatusResponse {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(base + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got api.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return got
}

func TestGatewayEndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t)

	var hits atomic.Int32
	erpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("RECEIVED"))
	}))
	defer erpSrv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := &linePort{data: []string{"ST,GS,+   2.00kg\r\n"}}
	svc, err := New(testConfig(erpSrv.URL), Deps{
		PortFactory: func(port_reader.Options) (port_reader.Port, error) { return port, nil },
		Clock:       clockwork.NewFakeClock(),
		Listener:    ln,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	require.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return svc.Store().PeekPending() == 0 }, 5*time.Second, 10*time.Millisecond)

	got := getStatus(t, base)
	assert.Equal(t, "2.00", got.Peso)
	assert.Equal(t, "0.00", got.Pendiente)
	assert.Equal(t, "open", got.Puerto)
	require.NotNil(t, got.Protocolo)
	assert.Equal(t, "LP7516", *got.Protocolo)

	require.NoError(t, svc.Stop())
}

func TestGatewayServesWhileSerialDown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	svc, err := New(testConfig("http://127.0.0.1:1/erp"), Deps{
		PortFactory: func(port_reader.Options) (port_reader.Port, error) {
			return nil, errors.New("no such device")
		},
		Clock:    clockwork.NewFakeClock(),
		Listener: ln,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	defer func() { require.NoError(t, svc.Stop()) }()

	base := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return getStatus(t, base).Puerto == "faulted"
	}, 5*time.Second, 20*time.Millisecond)

	got := getStatus(t, base)
	assert.Equal(t, "0.00", got.Peso)
	assert.Nil(t, got.Fecha)
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	t.Parallel()

	cfg := testConfig("")
	cfg.ERP.Username = ""
	_, err := New(cfg, Deps{})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://erp.local/weights")
	cfg.Serial.Driver = "tarm"
	_, err := New(cfg, Deps{})
	require.Error(t, err)
}
