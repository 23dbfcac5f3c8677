package main

import (
	"context"

	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

// tap records the last packet of each kind for the debug pane.
type tap struct {
	transport.Transport
	info *Info
}

func (t *tap) Send(ctx context.Context, pkt []byte) error {
	err := t.Transport.Send(ctx, pkt)

	if p, derr := crtp.Decode(pkt); derr == nil {
		key := "pkt_" + p.Kind.String()
		if err != nil {
			t.info.put(key, crtp.Hex(pkt)+" (failed)")
		} else {
			t.info.put(key, crtp.Hex(pkt))
		}
	}

	return err
}
