package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyq/pkg/crtp"
)

type fakeBridge struct {
	mx          sync.Mutex
	connect     ConnectRequest
	packets     [][]byte
	disconnects int
	failSend    atomic.Bool
	failConnect atomic.Int32
}

func (f *fakeBridge) handler() http.Handler {
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, code int, r BridgeReply) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(r)
	}

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, BridgeReply{Status: "ok"})
	})

	mux.HandleFunc("/api/drone/connect", func(w http.ResponseWriter, r *http.Request) {
		if f.failConnect.Add(-1) >= 0 {
			reply(w, http.StatusServiceUnavailable, BridgeReply{Status: "error", Detail: "busy"})
			return
		}

		var req ConnectRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mx.Lock()
		f.connect = req
		f.mx.Unlock()

		reply(w, http.StatusOK, BridgeReply{Status: "connected", IP: req.IP, Port: req.Port})
	})

	mux.HandleFunc("/api/drone/send", func(w http.ResponseWriter, r *http.Request) {
		if f.failSend.Load() {
			reply(w, http.StatusInternalServerError, BridgeReply{Status: "error", Detail: "no route to host"})
			return
		}

		var req SendRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		pkt, err := crtp.FromBase64(req.Data)
		if err != nil {
			reply(w, http.StatusBadRequest, BridgeReply{Status: "error", Detail: err.Error()})
			return
		}

		f.mx.Lock()
		f.packets = append(f.packets, pkt)
		f.mx.Unlock()

		reply(w, http.StatusOK, BridgeReply{Status: "sent", Bytes: len(pkt)})
	})

	mux.HandleFunc("/api/drone/disconnect", func(w http.ResponseWriter, r *http.Request) {
		f.mx.Lock()
		f.disconnects++
		f.mx.Unlock()

		reply(w, http.StatusOK, BridgeReply{Status: "disconnected"})
	})

	mux.HandleFunc("/api/drone/status", func(w http.ResponseWriter, r *http.Request) {
		f.mx.Lock()
		defer f.mx.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(BridgeStatus{Connected: f.connect.IP != "", Address: f.connect.IP, Port: f.connect.Port})
	})

	return mux
}

func (f *fakeBridge) snapshot() (ConnectRequest, [][]byte, int) {
	f.mx.Lock()
	defer f.mx.Unlock()

	return f.connect, append([][]byte(nil), f.packets...), f.disconnects
}

func newBridgeServer(t *testing.T) (*fakeBridge, *Bridge) {
	t.Helper()

	f := new(fakeBridge)
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	b := NewBridge(srv.URL + "/")
	b.retry.RetryWaitMin = time.Millisecond
	b.retry.RetryWaitMax = time.Millisecond * 5

	return f, b
}

func TestBridgeConnectSendClose(t *testing.T) {
	f, b := newBridgeServer(t)
	ctx := context.Background()

	assert.True(t, b.Healthy(ctx))
	assert.ErrorIs(t, b.Send(ctx, []byte{0xff}), ErrNotConnected)

	require.NoError(t, b.Connect(ctx, "192.168.4.1", 2390))
	req, _, _ := f.snapshot()
	assert.Equal(t, ConnectRequest{IP: "192.168.4.1", Port: 2390}, req)

	st, err := b.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.Equal(t, 2390, st.Port)

	arm := crtp.EncodeArm(true)
	require.NoError(t, b.Send(ctx, arm[:]))
	require.NoError(t, b.Send(ctx, []byte{0xff}))

	_, packets, _ := f.snapshot()
	assert.Equal(t, [][]byte{{0xd0, 0x01}, {0xff}}, packets)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, _, disconnects := f.snapshot()
	assert.Equal(t, 1, disconnects)

	assert.ErrorIs(t, b.Send(ctx, []byte{0xff}), ErrNotConnected)
}

func TestBridgeConnectRetries(t *testing.T) {
	f, b := newBridgeServer(t)
	f.failConnect.Store(2)

	require.NoError(t, b.Connect(context.Background(), "10.0.0.2", 2390))
	req, _, _ := f.snapshot()
	assert.Equal(t, "10.0.0.2", req.IP)
}

func TestBridgeSendFailureReportsLost(t *testing.T) {
	f, b := newBridgeServer(t)
	ctx := context.Background()

	var lost []error
	b.NotifyLost(func(err error) { lost = append(lost, err) })

	require.NoError(t, b.Connect(ctx, "192.168.4.1", 2390))

	f.failSend.Store(true)

	err := b.Send(ctx, []byte{0xff})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no route to host")
	require.Len(t, lost, 1)
}

func TestBridgeUnreachable(t *testing.T) {
	b := NewBridge("http://127.0.0.1:1")
	b.retry.RetryMax = 0

	ctx := context.Background()

	assert.False(t, b.Healthy(ctx))
	assert.Error(t, b.Connect(ctx, "192.168.4.1", 2390))
}
