package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"flyq/pkg/crtp"
)

const (
	DefaultBridgeURL = "http://localhost:8001"

	bridgeConnectTimeout = time.Second * 5
	bridgeSendTimeout    = time.Second
)

type ConnectRequest struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type SendRequest struct {
	Data string `json:"data"`
}

type BridgeReply struct {
	Status    string `json:"status"`
	IP        string `json:"ip,omitempty"`
	Port      int    `json:"port,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type BridgeStatus struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Port      int    `json:"port,omitempty"`
}

// Bridge sends packets through an HTTP service that owns the UDP socket, for hosts
// that cannot open one themselves. Packets travel base64 encoded.
type Bridge struct {
	lostNotifier

	baseURL   string
	logger    *slog.Logger
	retry     *retryablehttp.Client
	http      *http.Client
	connected atomic.Bool
}

func NewBridge(baseURL string) *Bridge {
	if baseURL == "" {
		baseURL = DefaultBridgeURL
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.RetryWaitMin = time.Millisecond * 200
	retry.RetryWaitMax = time.Second
	retry.Logger = nil
	retry.HTTPClient.Timeout = bridgeConnectTimeout

	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
		retry:   retry,
		http:    &http.Client{Timeout: bridgeSendTimeout},
	}
}

func (b *Bridge) SetLogger(logger *slog.Logger) {
	b.logger = logger
	b.retry.Logger = logger
}

func (b *Bridge) Connect(ctx context.Context, host string, port int) error {
	body, err := json.Marshal(ConnectRequest{IP: host, Port: port})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/drone/connect", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.retry.Do(req)
	if err != nil {
		return fmt.Errorf("bridge connect: %w", err)
	}

	reply, err := readReply(resp)
	if err != nil {
		return fmt.Errorf("bridge connect: %w", err)
	}

	if reply.Status != "connected" {
		return fmt.Errorf("bridge connect: status %q", reply.Status)
	}

	b.connected.Store(true)
	b.logger.Info("bridge link up", "bridge", b.baseURL, "drone", fmt.Sprintf("%s:%d", host, port))

	return nil
}

func (b *Bridge) Send(ctx context.Context, pkt []byte) error {
	if !b.connected.Load() {
		return ErrNotConnected
	}

	if err := b.send(ctx, pkt); err != nil {
		b.lost(err)
		return err
	}

	return nil
}

func (b *Bridge) send(ctx context.Context, pkt []byte) error {
	body, err := json.Marshal(SendRequest{Data: crtp.Base64(pkt)})
	if err != nil {
		return err
	}

	resp, err := b.post(ctx, "/api/drone/send", body)
	if err != nil {
		return fmt.Errorf("bridge send: %w", err)
	}

	reply, err := readReply(resp)
	if err != nil {
		return fmt.Errorf("bridge send: %w", err)
	}

	if reply.Status != "sent" {
		return fmt.Errorf("bridge send: status %q", reply.Status)
	}

	return nil
}

func (b *Bridge) Close() error {
	if !b.connected.Swap(false) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()

	resp, err := b.post(ctx, "/api/drone/disconnect", []byte("{}"))
	if err != nil {
		return fmt.Errorf("bridge disconnect: %w", err)
	}

	_, err = readReply(resp)

	return err
}

func (b *Bridge) Status(ctx context.Context) (BridgeStatus, error) {
	var st BridgeStatus

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/drone/status", nil)
	if err != nil {
		return st, err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("status %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&st)

	return st, err
}

// Healthy probes the bridge root endpoint.
func (b *Bridge) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/", nil)
	if err != nil {
		return false
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (b *Bridge) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return b.http.Do(req)
}

func readReply(resp *http.Response) (BridgeReply, error) {
	defer resp.Body.Close()

	var reply BridgeReply

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return reply, err
	}

	if err := json.Unmarshal(data, &reply); err != nil {
		return reply, fmt.Errorf("status %d: %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return reply, fmt.Errorf("status %d: %s", resp.StatusCode, reply.Detail)
	}

	return reply, nil
}
