package riscv

import (
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/rvtools/rvelf/internal/bitfield"
)

type DecodeSuite struct{}

func TestDecode(t *testing.T) {
	suite.RunTests(t, &DecodeSuite{})
}

func (DecodeSuite) TestAddImmediate(t *testing.T) {
	instr, err := Decode(0x00800513)
	expect.Nil(t, err)
	i, ok := instr.(I)
	expect.True(t, ok)
	expect.Equal(t, uint32(10), i.Rd)
	expect.Equal(t, uint32(0), i.Funct3)
	expect.Equal(t, uint32(0), i.Rs1)
	expect.Equal(t, int32(8), i.Imm)
	expect.Equal(t, TagOP_IMM, i.Op.Tag())
}

func (DecodeSuite) TestMultiply(t *testing.T) {
	instr, err := Decode(0x02B50533)
	expect.Nil(t, err)
	r, ok := instr.(R)
	expect.True(t, ok)
	expect.Equal(t, uint32(10), r.Rd)
	expect.Equal(t, uint32(0), r.Funct3)
	expect.Equal(t, uint32(10), r.Rs1)
	expect.Equal(t, uint32(11), r.Rs2)
	expect.Equal(t, uint32(funct7MUL), r.Funct7)
	expect.Equal(t, TagOP, r.Op.Tag())
}

func (DecodeSuite) TestJalrReturnForm(t *testing.T) {
	instr, err := Decode(0x00008067)
	expect.Nil(t, err)
	i, ok := instr.(I)
	expect.True(t, ok)
	expect.Equal(t, uint32(0), i.Rd)
	expect.Equal(t, uint32(1), i.Rs1)
	expect.Equal(t, int32(0), i.Imm)
	expect.Equal(t, TagJALR, i.Op.Tag())
}

func (DecodeSuite) TestNegativeImmediate(t *testing.T) {
	instr, err := Decode(0xFFF10093)
	expect.Nil(t, err)
	i, ok := instr.(I)
	expect.True(t, ok)
	expect.Equal(t, uint32(1), i.Rd)
	expect.Equal(t, uint32(2), i.Rs1)
	expect.Equal(t, int32(-1), i.Imm)
}

func (DecodeSuite) TestCompressedEncodingRejected(t *testing.T) {
	_, err := Decode(0x00000001)
	expect.NotNil(t, err)

	_, err = Decode(0x00000002)
	expect.NotNil(t, err)
}

func (DecodeSuite) TestOpaqueFallback(t *testing.T) {
	// SYSTEM tag (0b11100), e.g. ECALL, whose only nonzero bits are the
	// opcode.
	word := uint32(0b1110011)
	instr, err := Decode(word)
	expect.Nil(t, err)
	o, ok := instr.(Opaque)
	expect.True(t, ok)
	expect.Equal(t, TagSYSTEM, o.Op.Tag())
}

// reassembleI rebuilds the 32-bit word bits from an I-type's fields using
// the same bit positions Decode extracted them from.
func reassembleI(i I) uint32 {
	var a bitfield.Appender
	a.Append(uint32(i.Op), 7)
	a.Append(i.Rd, 5)
	a.Append(i.Funct3, 3)
	a.Append(i.Rs1, 5)
	a.Append(uint32(i.Imm)&0xFFF, 12)
	return a.Uint32()
}

func reassembleR(r R) uint32 {
	var a bitfield.Appender
	a.Append(uint32(r.Op), 7)
	a.Append(r.Rd, 5)
	a.Append(r.Funct3, 3)
	a.Append(r.Rs1, 5)
	a.Append(r.Rs2, 5)
	a.Append(r.Funct7, 7)
	return a.Uint32()
}

// reassembleStore rebuilds an S-type (STORE) word from its fields.
func reassembleStore(s S) uint32 {
	imm := uint32(s.Imm)
	var a bitfield.Appender
	a.Append(uint32(s.Op), 7)
	a.Append(imm&0x1F, 5)
	a.Append(s.Funct3, 3)
	a.Append(s.Rs1, 5)
	a.Append(s.Rs2, 5)
	a.Append((imm>>5)&0x7F, 7)
	return a.Uint32()
}

// reassembleBranch rebuilds a B-type (BRANCH) word from an S-variant.
func reassembleBranch(s S) uint32 {
	imm := uint32(s.Imm)
	var a bitfield.Appender
	a.Append(uint32(s.Op), 7)
	a.Append((imm>>11)&0x1, 1)
	a.Append((imm>>1)&0xF, 4)
	a.Append(s.Funct3, 3)
	a.Append(s.Rs1, 5)
	a.Append(s.Rs2, 5)
	a.Append((imm>>5)&0x3F, 6)
	a.Append((imm>>12)&0x1, 1)
	return a.Uint32()
}

func reassembleU(u U) uint32 {
	var a bitfield.Appender
	a.Append(uint32(u.Op), 7)
	a.Append(u.Rd, 5)
	a.Append((uint32(u.Imm)>>12)&0xFFFFF, 20)
	return a.Uint32()
}

// reassembleJal rebuilds a J-type (JAL) word from a U-variant.
func reassembleJal(u U) uint32 {
	imm := uint32(u.Imm)
	var a bitfield.Appender
	a.Append(uint32(u.Op), 7)
	a.Append(u.Rd, 5)
	a.Append((imm>>12)&0xFF, 8)
	a.Append((imm>>11)&0x1, 1)
	a.Append((imm>>1)&0x3FF, 10)
	a.Append((imm>>20)&0x1, 1)
	return a.Uint32()
}

func (DecodeSuite) TestImmediateReconstructionRoundTrip(t *testing.T) {
	words := []uint32{
		0x00800513, // addi
		0xFFF10093, // addi with negative immediate
		0x00008067, // jalr
		0x02B50533, // mul (R-type)
		0x00112023, // sw x1, 0(x2)
		0xFE209EE3, // bne-shaped word (arbitrary STORE/BRANCH bit pattern)
		0x00000537, // lui x10, 0
		0xFFFFF06F, // jal x0, -2 (every J-type immediate bit set)
	}

	for _, word := range words {
		instr, err := Decode(word)
		expect.Nil(t, err)

		var got uint32
		switch v := instr.(type) {
		case I:
			got = reassembleI(v)
		case R:
			got = reassembleR(v)
		case S:
			if v.Op.Tag() == TagBRANCH {
				got = reassembleBranch(v)
			} else {
				got = reassembleStore(v)
			}
		case U:
			if v.Op.Tag() == TagJAL {
				got = reassembleJal(v)
			} else {
				got = reassembleU(v)
			}
		default:
			continue
		}

		expect.Equal(t, word, got)
	}
}

func (DecodeSuite) TestSequenceDecodesConsecutiveWords(t *testing.T) {
	data := []byte{
		0x13, 0x05, 0x80, 0x00, // addi a0, zero, 8 (little-endian)
		0x67, 0x80, 0x00, 0x00, // jalr return
	}

	instructions, err := Sequence(data)
	expect.Nil(t, err)
	expect.Equal(t, 2, len(instructions))

	_, ok := instructions[0].(I)
	expect.True(t, ok)
}

func (DecodeSuite) TestSequenceRejectsPartialWord(t *testing.T) {
	_, err := Sequence([]byte{0x13, 0x05, 0x80})
	expect.NotNil(t, err)
}
