package crtp

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str2byte(s string) []byte {
	r, _ := hex.DecodeString(s)
	return r
}

func TestCommanderLayout(t *testing.T) {
	c := EncodeCommander(Setpoint{Roll: 1, Pitch: -1, Yaw: 0, Thrust: 65535})

	assert.Equal(t, str2byte("300000803f000080bf00000000ffff"), c[:])
	assert.Equal(t, byte(0x30), c[0])
}

func TestCommanderRoundTrip(t *testing.T) {
	sp := Setpoint{Roll: 12.5, Pitch: -29.75, Yaw: 150.25, Thrust: 32768}
	c := EncodeCommander(sp)

	require.Len(t, c, CommanderSize)

	le := binary.LittleEndian
	assert.Equal(t, sp.Roll, math.Float32frombits(le.Uint32(c[1:5])))
	assert.Equal(t, sp.Pitch, math.Float32frombits(le.Uint32(c[5:9])))
	assert.Equal(t, sp.Yaw, math.Float32frombits(le.Uint32(c[9:13])))
	assert.Equal(t, sp.Thrust, le.Uint16(c[13:15]))

	got, err := DecodeCommander(c[:])
	require.NoError(t, err)
	assert.Equal(t, sp, got)
}

func TestCommanderClamps(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	got, err := DecodeCommander(bytesOf(EncodeCommander(Setpoint{Roll: nan, Pitch: inf, Yaw: -1000})))
	require.NoError(t, err)

	assert.Equal(t, float32(0), got.Roll)
	assert.Equal(t, float32(MaxAngle), got.Pitch)
	assert.Equal(t, float32(-MaxYawRate), got.Yaw)
}

func bytesOf(c Commander) []byte {
	return c[:]
}

func TestArm(t *testing.T) {
	arm := EncodeArm(true)
	disarm := EncodeArm(false)

	assert.Len(t, arm, 2)
	assert.Len(t, disarm, 2)
	assert.Equal(t, byte(0xd0), arm[0])
	assert.Equal(t, byte(0xd0), disarm[0])
	assert.Equal(t, byte(1), arm[1])
	assert.Equal(t, byte(0), disarm[1])

	v, err := DecodeArm(arm[:])
	require.NoError(t, err)
	assert.True(t, v)

	v, err = DecodeArm(disarm[:])
	require.NoError(t, err)
	assert.False(t, v)
}

func TestCalibrate(t *testing.T) {
	c := EncodeCalibrate()

	assert.Equal(t, str2byte("d101"), c[:])
	assert.NoError(t, DecodeCalibrate(c[:]))
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeCommander(str2byte("300000803f"))

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindCommander, de.Kind)
	assert.Equal(t, CommanderSize, de.Expected)
	assert.Equal(t, 5, de.Actual)
	assert.Contains(t, err.Error(), "expected 15 bytes, got 5")

	_, err = DecodeArm(str2byte("d00100"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Expected)
	assert.Equal(t, 3, de.Actual)

	_, err = DecodeArm(str2byte("d101"))
	var he *HeaderError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, byte(0xd0), he.Expected)
	assert.Equal(t, byte(0xd1), he.Actual)
}

func TestDecode(t *testing.T) {
	p, err := Decode(str2byte("d001"))
	require.NoError(t, err)
	assert.Equal(t, KindArm, p.Kind)
	assert.True(t, p.Arm)

	p, err = Decode(str2byte("d101"))
	require.NoError(t, err)
	assert.Equal(t, KindCalibrate, p.Kind)

	p, err = Decode([]byte{NullPacket})
	require.NoError(t, err)
	assert.Equal(t, KindNull, p.Kind)

	c := EncodeCommander(Setpoint{Thrust: 100})
	p, err = Decode(c[:])
	require.NoError(t, err)
	assert.Equal(t, KindCommander, p.Kind)
	assert.Equal(t, uint16(100), p.Setpoint.Thrust)

	_, err = Decode(nil)
	assert.Error(t, err)

	_, err = Decode(str2byte("5001"))
	assert.Error(t, err)
}

func TestHexBase64(t *testing.T) {
	arm := EncodeArm(true)

	assert.Equal(t, "d0 01", Hex(arm[:]))
	assert.Equal(t, "0AE=", Base64(arm[:]))

	b, err := FromBase64("0AE=")
	require.NoError(t, err)
	assert.Equal(t, arm[:], b)
}
