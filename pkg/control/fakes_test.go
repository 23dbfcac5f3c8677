package control

import (
	"context"
	"sync"
)

type fakePlatform struct {
	mx     sync.Mutex
	pkts   [][]byte
	resets [][]byte
}

func (f *fakePlatform) Reset(pkt []byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.resets = append(f.resets, append([]byte(nil), pkt...))
}

func (f *fakePlatform) resetCount() int {
	f.mx.Lock()
	defer f.mx.Unlock()
	return len(f.resets)
}

func (f *fakePlatform) Urgent(pkt []byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.pkts = append(f.pkts, append([]byte(nil), pkt...))
}

func (f *fakePlatform) packets() [][]byte {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([][]byte(nil), f.pkts...)
}

// fakeSender records every packet; block, when set, holds each send until released.
type fakeSender struct {
	mx    sync.Mutex
	pkts  [][]byte
	err   error
	block chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, pkt []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mx.Lock()
	defer f.mx.Unlock()

	if f.err != nil {
		return f.err
	}

	f.pkts = append(f.pkts, append([]byte(nil), pkt...))

	return nil
}

func (f *fakeSender) packets() [][]byte {
	f.mx.Lock()
	defer f.mx.Unlock()
	return append([][]byte(nil), f.pkts...)
}

type fakeMailbox struct {
	mx      sync.Mutex
	offered [][]byte
	now     [][]byte
}

func (f *fakeMailbox) Offer(pkt []byte) {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.offered = append(f.offered, append([]byte(nil), pkt...))
}

func (f *fakeMailbox) SendNow(_ context.Context, pkt []byte) error {
	f.mx.Lock()
	defer f.mx.Unlock()
	f.now = append(f.now, append([]byte(nil), pkt...))
	return nil
}

func (f *fakeMailbox) counts() (offered, now int) {
	f.mx.Lock()
	defer f.mx.Unlock()
	return len(f.offered), len(f.now)
}
