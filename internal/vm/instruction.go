package vm

import "fmt"

// Instruction is the fixed 4-byte encoding: 1 opcode + 3 operand bytes.
// Immutable once constructed. The signed and unsigned 16-bit immediates are
// derived views over (B,C), never stored separately: jumps and small literals
// read SBX, constant-pool and global indices read UBX.
type Instruction struct {
	Op Opcode
	A  byte
	B  byte
	C  byte
}

// SBX is the signed 16-bit immediate packed big-endian into (B,C)
func (ins Instruction) SBX() int16 {
	return int16(uint16(ins.B)<<8 | uint16(ins.C))
}

// UBX is the unsigned 16-bit immediate packed big-endian into (B,C)
func (ins Instruction) UBX() uint16 {
	return uint16(ins.B)<<8 | uint16(ins.C)
}

// MakeSBX packs a signed immediate into an instruction.
func MakeSBX(op Opcode, a byte, imm int16) Instruction {
	return Instruction{Op: op, A: a, B: byte(uint16(imm) >> 8), C: byte(uint16(imm))}
}

// MakeUBX packs an unsigned immediate into an instruction.
func MakeUBX(op Opcode, a byte, imm uint16) Instruction {
	return Instruction{Op: op, A: a, B: byte(imm >> 8), C: byte(imm)}
}

// String formats the instruction according to its operand shape.
func (ins Instruction) String() string {
	name := ins.Op.Name()
	switch ins.Op.Shape() {
	case ShapeThreeReg:
		return fmt.Sprintf("%-16s r%d, r%d, r%d", name, ins.A, ins.B, ins.C)
	case ShapeTwoReg:
		return fmt.Sprintf("%-16s r%d, r%d, %d", name, ins.A, ins.B, ins.C)
	default:
		return fmt.Sprintf("%-16s %d, %d, %d", name, ins.A, ins.B, ins.C)
	}
}
