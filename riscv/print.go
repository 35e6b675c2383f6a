package riscv

import "fmt"

const (
	funct7SUB = 0x20
	funct7MUL = 0x01
	funct7SRA = 0x20
)

// Print renders a decoded instruction as a single-line C-like pseudocode
// expression, per the base integer instruction set's register-register,
// register-immediate, and load/jump dispatch rules. Any instruction this
// module can't structurally interpret — including every Opaque tag — falls
// through to a placeholder rather than panicking: the printer is a display
// aid, not a validator.
func Print(instr Instruction) string {
	switch v := instr.(type) {
	case R:
		return printR(v)
	case I:
		return printI(v)
	case S:
		return printS(v)
	case U:
		return printU(v)
	default:
		return "??? (fall-through)"
	}
}

func printR(r R) string {
	if r.Op.Tag() != TagOP {
		return "??? (fall-through)"
	}

	switch r.Funct3 {
	case 0b000:
		switch r.Funct7 {
		case 0:
			return fmt.Sprintf("x%d = x%d + x%d", r.Rd, r.Rs1, r.Rs2)
		case funct7SUB:
			return fmt.Sprintf("x%d = x%d - x%d", r.Rd, r.Rs1, r.Rs2)
		case funct7MUL:
			return fmt.Sprintf("x%d = x%d * x%d", r.Rd, r.Rs1, r.Rs2)
		}
	case 0b001:
		return fmt.Sprintf("x%d = x%d << x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b010:
		return fmt.Sprintf("x%d = x%d < x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b011:
		return fmt.Sprintf("x%d = x%d <u x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b100:
		return fmt.Sprintf("x%d = x%d ^ x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b101:
		if r.Funct7 == funct7SRA {
			return fmt.Sprintf("x%d = x%d >>a x%d", r.Rd, r.Rs1, r.Rs2)
		}
		return fmt.Sprintf("x%d = x%d >> x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b110:
		return fmt.Sprintf("x%d = x%d | x%d", r.Rd, r.Rs1, r.Rs2)
	case 0b111:
		return fmt.Sprintf("x%d = x%d & x%d", r.Rd, r.Rs1, r.Rs2)
	}

	return "??? (fall-through)"
}

var loadMnemonic = map[uint32]string{
	0b000: "LB",
	0b001: "LH",
	0b010: "LW",
	0b100: "LBU",
	0b101: "LHU",
}

func printI(i I) string {
	switch i.Op.Tag() {
	case TagLOAD:
		op, ok := loadMnemonic[i.Funct3]
		if !ok {
			return "??? (fall-through)"
		}
		return fmt.Sprintf("x%d = %s(x%d + %d)", i.Rd, op, i.Rs1, i.Imm)

	case TagOP_IMM:
		return printOpImm(i)

	case TagJALR:
		if i.Rd == 0 && i.Rs1 == 1 && i.Imm == 0 {
			return "return"
		}
		return fmt.Sprintf("x%d = pc + 4; pc = x%d + %d", i.Rd, i.Rs1, i.Imm)
	}

	return "??? (fall-through)"
}

func printOpImm(i I) string {
	switch i.Funct3 {
	case 0b000:
		return fmt.Sprintf("x%d = x%d + %d", i.Rd, i.Rs1, i.Imm)
	case 0b010:
		return fmt.Sprintf("x%d = x%d < %d", i.Rd, i.Rs1, i.Imm)
	case 0b011:
		return fmt.Sprintf("x%d = x%d <u %d", i.Rd, i.Rs1, i.Imm)
	case 0b100:
		return fmt.Sprintf("x%d = x%d ^ %d", i.Rd, i.Rs1, i.Imm)
	case 0b110:
		return fmt.Sprintf("x%d = x%d | %d", i.Rd, i.Rs1, i.Imm)
	case 0b111:
		return fmt.Sprintf("x%d = x%d & %d", i.Rd, i.Rs1, i.Imm)
	case 0b001:
		return fmt.Sprintf("x%d = x%d << %d", i.Rd, i.Rs1, i.Imm&0x1F)
	case 0b101:
		if i.Imm&0x20 != 0 {
			return fmt.Sprintf("x%d = x%d >>a %d", i.Rd, i.Rs1, i.Imm&0x1F)
		}
		return fmt.Sprintf("x%d = x%d >> %d", i.Rd, i.Rs1, i.Imm&0x1F)
	}

	return "??? (fall-through)"
}

func printS(s S) string {
	switch s.Op.Tag() {
	case TagSTORE:
		op, ok := map[uint32]string{0b000: "SB", 0b001: "SH", 0b010: "SW"}[s.Funct3]
		if !ok {
			return "??? (fall-through)"
		}
		return fmt.Sprintf("%s(x%d + %d) = x%d", op, s.Rs1, s.Imm, s.Rs2)

	case TagBRANCH:
		op, ok := map[uint32]string{
			0b000: "==",
			0b001: "!=",
			0b100: "<",
			0b101: ">=",
			0b110: "<u",
			0b111: ">=u",
		}[s.Funct3]
		if !ok {
			return "??? (fall-through)"
		}
		return fmt.Sprintf("if (x%d %s x%d) pc += %d", s.Rs1, op, s.Rs2, s.Imm)
	}

	return "??? (fall-through)"
}

func printU(u U) string {
	switch u.Op.Tag() {
	case TagLUI:
		return fmt.Sprintf("x%d = %d", u.Rd, u.Imm)
	case TagAUIPC:
		return fmt.Sprintf("x%d = pc + %d", u.Rd, u.Imm)
	case TagJAL:
		if u.Rd == 0 {
			return fmt.Sprintf("pc += %d", u.Imm)
		}
		return fmt.Sprintf("x%d = pc + 4; pc += %d", u.Rd, u.Imm)
	}

	return "??? (fall-through)"
}
