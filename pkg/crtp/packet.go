// Package crtp encodes and decodes the fixed-size CRTP frames used to fly the vehicle.
//
// Every frame starts with a header byte carrying the port in the high nibble and the
// channel in the low two bits. All multi-byte fields are little-endian.
package crtp

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

type Port byte

type Channel byte

const (
	PortCommander Port = 0x03
	PortPlatform  Port = 0x0D
	PortLink      Port = 0x0F
)

const (
	ChannelArm       Channel = 0
	ChannelCalibrate Channel = 1
)

const (
	CommanderSize = 15
	PlatformSize  = 2
)

// NullPacket is the single-byte link packet a vehicle sends when it has nothing to say.
const NullPacket byte = 0xFF

type Kind int

const (
	KindUnknown Kind = iota
	KindCommander
	KindArm
	KindCalibrate
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindCommander:
		return "commander"
	case KindArm:
		return "arm"
	case KindCalibrate:
		return "calibrate"
	case KindNull:
		return "null"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Commander is an encoded setpoint frame.
type Commander [CommanderSize]byte

// Platform is an encoded arm or calibrate frame.
type Platform [PlatformSize]byte

func Header(p Port, c Channel) byte {
	return byte(p)<<4 | byte(c)&0x03
}

func SplitHeader(h byte) (Port, Channel) {
	return Port(h >> 4), Channel(h & 0x03)
}

// Setpoint is the physical command carried by a Commander frame.
type Setpoint struct {
	Roll   float32 // degrees
	Pitch  float32 // degrees
	Yaw    float32 // degrees per second
	Thrust uint16
}

func (s Setpoint) IsZero() bool {
	return s == Setpoint{}
}

func (s Setpoint) String() string {
	return fmt.Sprintf("roll: %.2f pitch: %.2f yaw: %.2f thrust: %d", s.Roll, s.Pitch, s.Yaw, s.Thrust)
}

// EncodeCommander clamps the setpoint into the vehicle limits and packs it.
func EncodeCommander(sp Setpoint) Commander {
	var res Commander
	le := binary.LittleEndian

	res[0] = Header(PortCommander, 0)
	le.PutUint32(res[1:5], math.Float32bits(clampFloat(sp.Roll, MaxAngle)))
	le.PutUint32(res[5:9], math.Float32bits(clampFloat(sp.Pitch, MaxAngle)))
	le.PutUint32(res[9:13], math.Float32bits(clampFloat(sp.Yaw, MaxYawRate)))
	le.PutUint16(res[13:15], sp.Thrust)

	return res
}

func EncodeArm(arm bool) Platform {
	var res Platform
	res[0] = Header(PortPlatform, ChannelArm)
	if arm {
		res[1] = 1
	}
	return res
}

func EncodeCalibrate() Platform {
	return Platform{Header(PortPlatform, ChannelCalibrate), 1}
}

func DecodeCommander(b []byte) (Setpoint, error) {
	if len(b) != CommanderSize {
		return Setpoint{}, &DecodeError{Kind: KindCommander, Expected: CommanderSize, Actual: len(b)}
	}

	if want := Header(PortCommander, 0); b[0] != want {
		return Setpoint{}, &HeaderError{Kind: KindCommander, Expected: want, Actual: b[0]}
	}

	le := binary.LittleEndian

	return Setpoint{
		Roll:   math.Float32frombits(le.Uint32(b[1:5])),
		Pitch:  math.Float32frombits(le.Uint32(b[5:9])),
		Yaw:    math.Float32frombits(le.Uint32(b[9:13])),
		Thrust: le.Uint16(b[13:15]),
	}, nil
}

func DecodeArm(b []byte) (bool, error) {
	if len(b) != PlatformSize {
		return false, &DecodeError{Kind: KindArm, Expected: PlatformSize, Actual: len(b)}
	}

	if want := Header(PortPlatform, ChannelArm); b[0] != want {
		return false, &HeaderError{Kind: KindArm, Expected: want, Actual: b[0]}
	}

	return b[1] == 1, nil
}

func DecodeCalibrate(b []byte) error {
	if len(b) != PlatformSize {
		return &DecodeError{Kind: KindCalibrate, Expected: PlatformSize, Actual: len(b)}
	}

	if want := Header(PortPlatform, ChannelCalibrate); b[0] != want {
		return &HeaderError{Kind: KindCalibrate, Expected: want, Actual: b[0]}
	}

	return nil
}

// Packet is a decoded frame of any known kind.
type Packet struct {
	Kind     Kind
	Setpoint Setpoint
	Arm      bool
}

func (p Packet) String() string {
	switch p.Kind {
	case KindCommander:
		return "commander " + p.Setpoint.String()
	case KindArm:
		if p.Arm {
			return "arm"
		}
		return "disarm"
	default:
		return p.Kind.String()
	}
}

// Decode dispatches on the header byte.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, &DecodeError{Kind: KindUnknown, Expected: 1, Actual: 0}
	}

	if len(b) == 1 && b[0] == NullPacket {
		return Packet{Kind: KindNull}, nil
	}

	port, ch := SplitHeader(b[0])

	switch {
	case port == PortCommander && ch == 0:
		sp, err := DecodeCommander(b)
		return Packet{Kind: KindCommander, Setpoint: sp}, err
	case port == PortPlatform && ch == ChannelArm:
		arm, err := DecodeArm(b)
		return Packet{Kind: KindArm, Arm: arm}, err
	case port == PortPlatform && ch == ChannelCalibrate:
		return Packet{Kind: KindCalibrate}, DecodeCalibrate(b)
	}

	return Packet{}, fmt.Errorf("unknown packet: port %.2x channel %d", byte(port), ch)
}

func Hex(b []byte) string {
	res := make([]byte, 0, len(b)*3)
	for i, c := range b {
		if i > 0 {
			res = append(res, ' ')
		}
		res = append(res, hex.EncodeToString([]byte{c})...)
	}
	return string(res)
}

func Base64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func FromBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
