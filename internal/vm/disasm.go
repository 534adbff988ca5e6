package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a loaded program.
func Disassemble(p *Program, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))
	sb.WriteString(fmt.Sprintf("version %s, entry %d, %d constants, %d globals\n",
		p.Version, p.EntryPoint, len(p.Constants), p.GlobalCount))

	lastLine := -1
	for i, ins := range p.Instructions {
		sb.WriteString(fmt.Sprintf("%04d ", i))

		line := -1
		if entry, ok := p.Debug.Lookup(i); ok {
			line = entry.Line
		}
		if line >= 0 && line != lastLine {
			sb.WriteString(fmt.Sprintf("%4d ", line))
			lastLine = line
		} else {
			sb.WriteString("   | ")
		}

		sb.WriteString(ins.String())
		if note := constantNote(p, ins); note != "" {
			sb.WriteString("  ; ")
			sb.WriteString(note)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// constantNote annotates instructions that reference the constant pool.
func constantNote(p *Program, ins Instruction) string {
	var idx int
	switch ins.Op {
	case OpLoadConst, OpNewObject:
		idx = int(ins.UBX())
	case OpCall, OpNewLambda, OpAsyncCall, OpCallExtern:
		idx = int(ins.B)
	default:
		return ""
	}
	if idx < 0 || idx >= len(p.Constants) {
		return "<bad constant>"
	}
	c := p.Constants[idx]
	switch c.Kind {
	case ConstFunction:
		return fmt.Sprintf("%s/%d @%d", c.Function.Name, c.Function.ParamCount, c.Function.CodeIndex)
	case ConstClass:
		return fmt.Sprintf("class %s", c.Class.Name)
	default:
		return c.Value.Inspect()
	}
}
