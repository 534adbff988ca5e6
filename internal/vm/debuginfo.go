package vm

// DebugInfo is the optional debug section of a bytecode document: four
// parallel tables loaded once and read-only thereafter.
type DebugInfo struct {
	SourceMap []SourceMapEntry `json:"sourceMap"`
	Functions []FunctionRange  `json:"functions"`
	Variables []VariableRange  `json:"variables"`
	Files     []SourceFile     `json:"files"`
}

// SourceMapEntry maps one instruction index to a source position
type SourceMapEntry struct {
	Instruction int `json:"instruction"`
	Line        int `json:"line"`
	Column      int `json:"column"`
	File        int `json:"file"`
}

// FunctionRange names an instruction-index span
type FunctionRange struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Variable storage locations
const (
	StorageRegister = "register"
	StorageGlobal   = "global"
	StorageConstant = "constant"
)

// VariableRange describes where a named source variable lives over an
// instruction-index span
type VariableRange struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Storage string `json:"storage"`
	Index   int    `json:"index"`
}

// SourceFile is a referenced source path, optionally with embedded content
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
}

// Lookup resolves an instruction index to its source position. ok is false
// when the instruction has no mapping.
func (d *DebugInfo) Lookup(instruction int) (entry SourceMapEntry, ok bool) {
	if d == nil {
		return SourceMapEntry{}, false
	}
	for _, e := range d.SourceMap {
		if e.Instruction == instruction {
			return e, true
		}
	}
	return SourceMapEntry{}, false
}

// InstructionForLine finds the first instruction mapped to (line, fileIndex).
func (d *DebugInfo) InstructionForLine(line, fileIndex int) (int, bool) {
	if d == nil {
		return 0, false
	}
	best := -1
	for _, e := range d.SourceMap {
		if e.Line == line && e.File == fileIndex {
			if best < 0 || e.Instruction < best {
				best = e.Instruction
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// FunctionAt returns the name of the function range covering instruction,
// or "" when none covers it.
func (d *DebugInfo) FunctionAt(instruction int) string {
	if d == nil {
		return ""
	}
	for _, f := range d.Functions {
		if instruction >= f.Start && instruction <= f.End {
			return f.Name
		}
	}
	return ""
}

// VariablesAt returns the variable ranges live at instruction.
func (d *DebugInfo) VariablesAt(instruction int) []VariableRange {
	if d == nil {
		return nil
	}
	var live []VariableRange
	for _, v := range d.Variables {
		if instruction >= v.Start && instruction <= v.End {
			live = append(live, v)
		}
	}
	return live
}
