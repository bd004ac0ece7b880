package bytecode

import (
	"fmt"
	"strings"
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	PC       int
	Opcode   byte
	Mnemonic string
	Operands []byte
}

// String renders the original display form: mnemonic, then operand bytes in
// angle brackets when present, e.g. "dload_1" or "putfield<0 2>".
func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Mnemonic
	}
	parts := make([]string, len(in.Operands))
	for i, b := range in.Operands {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return fmt.Sprintf("%s<%s>", in.Mnemonic, strings.Join(parts, " "))
}

// Disassemble decodes a Code attribute's bytecode into instructions. Opcodes
// outside the standard set decode as "unknown 0xNN" with no operands and the
// scan continues at the next byte; truncated operands are an error.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	pc := 0
	for pc < len(code) {
		op := code[pc]
		info := ops[op]
		if info.name == "" {
			out = append(out, Instruction{PC: pc, Opcode: op, Mnemonic: fmt.Sprintf("unknown 0x%02x", op)})
			pc++
			continue
		}

		in := Instruction{PC: pc, Opcode: op, Mnemonic: info.name}
		size := 1
		switch {
		case info.variable:
			n, err := variableSize(code, pc)
			if err != nil {
				return nil, err
			}
			in.Operands = append([]byte(nil), code[pc+1:pc+n]...)
			size = n
		default:
			if pc+1+info.operands > len(code) {
				return nil, fmt.Errorf("truncated operands for %s at pc %d", info.name, pc)
			}
			in.Operands = append([]byte(nil), code[pc+1:pc+1+info.operands]...)
			size = 1 + info.operands
		}
		out = append(out, in)
		pc += size
	}
	return out, nil
}

// variableSize computes the full length of tableswitch, lookupswitch and
// wide, including the 4-byte alignment padding the switches carry.
func variableSize(code []byte, pc int) (int, error) {
	op := code[pc]
	switch op {
	case opWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		// wide iinc takes two 2-byte operands, every other widened opcode one.
		n := 4
		if code[pc+1] == opIinc {
			n = 6
		}
		if pc+n > len(code) {
			return 0, fmt.Errorf("truncated wide at pc %d", pc)
		}
		return n, nil
	case opTableswitch, opLookupswitch:
		// Pad to the next 4-byte boundary relative to the code start.
		base := pc + 1
		base += (4 - base%4) % 4
		if op == opTableswitch {
			if base+12 > len(code) {
				return 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
			}
			low := int(int32(be32(code[base+4:])))
			high := int(int32(be32(code[base+8:])))
			if high < low {
				return 0, fmt.Errorf("tableswitch at pc %d has high %d < low %d", pc, high, low)
			}
			end := base + 12 + 4*(high-low+1)
			if end > len(code) {
				return 0, fmt.Errorf("truncated tableswitch at pc %d", pc)
			}
			return end - pc, nil
		}
		if base+8 > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		npairs := int(int32(be32(code[base+4:])))
		if npairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d has negative npairs", pc)
		}
		end := base + 8 + 8*npairs
		if end > len(code) {
			return 0, fmt.Errorf("truncated lookupswitch at pc %d", pc)
		}
		return end - pc, nil
	}
	return 0, fmt.Errorf("opcode 0x%02x is not variable-length", op)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Format renders a whole code block, one instruction per line with pc.
func Format(code []byte) (string, error) {
	instrs, err := Disassemble(code)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, in := range instrs {
		fmt.Fprintf(&b, "%4d: %s\n", in.PC, in)
	}
	return b.String(), nil
}
