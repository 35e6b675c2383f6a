package cursor

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
)

type CursorSuite struct{}

func TestCursor(t *testing.T) {
	suite.RunTests(t, &CursorSuite{})
}

func (CursorSuite) TestBigEndianReads(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	expect.Equal(t, uint8(0x01), c.PopU8())
	expect.Equal(t, uint16(0x0203), c.PopU16())
	expect.Equal(t, uint32(0x04050607), c.PopU32())
	expect.Equal(t, 7, c.Index())
}

func (CursorSuite) TestLittleEndianReads(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})
	c.SetEndianness(LittleEndian)

	expect.Equal(t, uint8(0x01), c.PopU8())
	expect.Equal(t, uint16(0x0302), c.PopU16())
	expect.Equal(t, uint32(0x07060504), c.PopU32())
	expect.Equal(t, 7, c.Index())
}

func (CursorSuite) TestU64BothEndian(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00}

	big := New(data)
	expect.Equal(t, uint64(0x0200), big.PopU64())

	little := New(data)
	little.SetEndianness(LittleEndian)
	expect.Equal(t, uint64(0x0002000000000000), little.PopU64())
}

func (CursorSuite) TestGenericPop(t *testing.T) {
	c := New([]byte{0xAB, 0xCD})
	expect.Equal(t, uint16(0xABCD), Pop[uint16](c))
}

func (CursorSuite) TestEndiannessConsistency(t *testing.T) {
	// Changing endianness mid-stream only affects subsequent reads.
	c := New([]byte{0x00, 0x01, 0x01, 0x00})
	expect.Equal(t, uint16(0x0001), c.PopU16())
	c.SetEndianness(LittleEndian)
	expect.Equal(t, uint16(0x0001), c.PopU16())
}

func (CursorSuite) TestSkipAndSeek(t *testing.T) {
	c := New([]byte{0, 1, 2, 3, 4, 5})
	c.Skip(3)
	expect.Equal(t, 3, c.Index())
	expect.Equal(t, uint8(3), c.PopU8())

	c.Seek(0)
	expect.Equal(t, uint8(0), c.PopU8())
}

func (CursorSuite) TestSlice(t *testing.T) {
	c := New([]byte{0, 1, 2, 3, 4, 5})
	c.SetEndianness(LittleEndian)

	sub := c.Slice(2, 4)
	expect.Equal(t, LittleEndian, sub.Endianness())
	expect.Equal(t, 2, sub.Size())
	expect.Equal(t, uint8(2), sub.PopU8())
	expect.Equal(t, uint8(3), sub.PopU8())

	// The parent cursor's position is untouched by reads against the slice.
	expect.Equal(t, 0, c.Index())
}

func (CursorSuite) TestEmptySlice(t *testing.T) {
	c := New([]byte{0, 1, 2})
	sub := c.Slice(1, 1)
	expect.True(t, sub.Empty())
	expect.Equal(t, 0, sub.Size())
}

func (CursorSuite) TestPopNullString(t *testing.T) {
	c := New([]byte("\x00hello\x00world\x00"))
	expect.Equal(t, "", c.PopNullString())
	expect.Equal(t, "hello", c.PopNullString())
	expect.Equal(t, "world", c.PopNullString())
	expect.Equal(t, c.Size(), c.Index())
}

func (CursorSuite) TestBytes(t *testing.T) {
	c := New([]byte{1, 2, 3})
	c.PopU8()
	expect.Equal(t, []byte{1, 2, 3}, c.Bytes())
}

func (CursorSuite) TestAt(t *testing.T) {
	c := New([]byte{9, 8, 7})
	expect.Equal(t, byte(8), c.At(1))
	expect.Equal(t, 0, c.Index())
}

func (CursorSuite) TestPanicsOnOverRead(t *testing.T) {
	defer func() {
		expect.NotNil(t, recover())
	}()

	c := New([]byte{1, 2})
	c.PopU32()
}

func (CursorSuite) TestPanicsOnBadSeek(t *testing.T) {
	defer func() {
		expect.NotNil(t, recover())
	}()

	c := New([]byte{1, 2})
	c.Seek(10)
}

func (CursorSuite) TestPanicsOnUnterminatedString(t *testing.T) {
	defer func() {
		expect.NotNil(t, recover())
	}()

	c := New([]byte("no terminator"))
	c.PopNullString()
}
