package main

import (
	"flyq/pkg/crtp"
	"flyq/pkg/transport"
)

// makeNull is the keepalive the pilot's link watchdog waits for.
func (app *App) makeNull() []byte {
	pkt := []byte{crtp.NullPacket}

	if app.checksum {
		pkt = append(pkt, transport.Checksum(pkt))
	}

	return pkt
}
