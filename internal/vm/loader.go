package vm

import (
	"encoding/json"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/veloxvm/velox/internal/config"
)

var loaderLog = commonlog.GetLogger("velox.loader")

// rawDocument mirrors the versioned JSON bytecode format. globalCount and
// debug use RawMessage so malformed values degrade instead of failing the
// whole document.
type rawDocument struct {
	Version      string           `json:"version"`
	Constants    []rawConstant    `json:"constants"`
	Instructions []rawInstruction `json:"instructions"`
	EntryPoint   *int             `json:"entryPoint"`
	GlobalCount  json.RawMessage  `json:"globalCount"`
	Debug        json.RawMessage  `json:"debug"`
}

type rawConstant struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rawInstruction struct {
	Opcode byte `json:"opcode"`
	A      byte `json:"a"`
	B      byte `json:"b"`
	C      byte `json:"c"`
}

type rawFunction struct {
	ParameterCount int    `json:"parameterCount"`
	RegisterCount  int    `json:"registerCount"`
	CodeIndex      int    `json:"codeIndex"`
	Name           string `json:"name"`
}

type rawClass struct {
	Name        string   `json:"name"`
	FieldCount  int      `json:"fieldCount"`
	MethodCount int      `json:"methodCount"`
	Fields      []string `json:"fields"`
}

// Load deserializes a JSON bytecode document into a Program. Top-level
// parse failures, missing required fields and an out-of-range entry point
// are fatal. A malformed debug section degrades to "no debug info" with a
// warning; a malformed or absent globalCount defaults to 0.
func Load(data []byte) (*Program, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}

	if doc.Version == "" {
		return nil, fmt.Errorf("%w: version", ErrMissingField)
	}
	if doc.Version != config.FormatVersion {
		loaderLog.Warningf("bytecode version %q differs from supported %q, loading anyway", doc.Version, config.FormatVersion)
	}

	if doc.Instructions == nil {
		return nil, fmt.Errorf("%w: instructions", ErrMissingField)
	}
	if doc.EntryPoint == nil {
		return nil, fmt.Errorf("%w: entryPoint", ErrMissingField)
	}
	if *doc.EntryPoint < 0 || *doc.EntryPoint >= len(doc.Instructions) {
		return nil, fmt.Errorf("%w: %d (have %d instructions)", ErrBadEntryPoint, *doc.EntryPoint, len(doc.Instructions))
	}

	prog := &Program{
		Version:    doc.Version,
		EntryPoint: *doc.EntryPoint,
	}

	prog.Instructions = make([]Instruction, len(doc.Instructions))
	for i, ri := range doc.Instructions {
		prog.Instructions[i] = Instruction{Op: Opcode(ri.Opcode), A: ri.A, B: ri.B, C: ri.C}
	}

	for i, rc := range doc.Constants {
		c, err := decodeConstant(rc)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		prog.Constants = append(prog.Constants, c)
	}

	if len(doc.GlobalCount) > 0 {
		var n int
		if err := json.Unmarshal(doc.GlobalCount, &n); err != nil || n < 0 {
			loaderLog.Warningf("malformed globalCount, defaulting to 0")
		} else {
			prog.GlobalCount = n
		}
	}

	if len(doc.Debug) > 0 {
		var info DebugInfo
		if err := json.Unmarshal(doc.Debug, &info); err != nil {
			loaderLog.Warningf("malformed debug section, proceeding without debug info: %v", err)
		} else {
			prog.Debug = &info
		}
	}

	return prog, nil
}

func decodeConstant(rc rawConstant) (Constant, error) {
	switch rc.Type {
	case "null":
		return Constant{Kind: ConstValue, Value: Null()}, nil
	case "bool":
		var v bool
		if err := json.Unmarshal(rc.Value, &v); err != nil {
			return Constant{}, fmt.Errorf("%w: bool constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstValue, Value: Bool(v)}, nil
	case "int":
		var v int32
		if err := json.Unmarshal(rc.Value, &v); err != nil {
			return Constant{}, fmt.Errorf("%w: int constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstValue, Value: Int(v)}, nil
	case "float":
		var v float32
		if err := json.Unmarshal(rc.Value, &v); err != nil {
			return Constant{}, fmt.Errorf("%w: float constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstValue, Value: Float(v)}, nil
	case "double":
		var v float64
		if err := json.Unmarshal(rc.Value, &v); err != nil {
			return Constant{}, fmt.Errorf("%w: double constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstValue, Value: Double(v)}, nil
	case "string":
		var v string
		if err := json.Unmarshal(rc.Value, &v); err != nil {
			return Constant{}, fmt.Errorf("%w: string constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstValue, Value: Str(v)}, nil
	case "function":
		var fn rawFunction
		if err := json.Unmarshal(rc.Value, &fn); err != nil {
			return Constant{}, fmt.Errorf("%w: function constant: %v", ErrBadDocument, err)
		}
		if fn.RegisterCount <= 0 || fn.RegisterCount > config.DefaultRegisterCount {
			return Constant{}, fmt.Errorf("%w: function %q register count %d", ErrBadDocument, fn.Name, fn.RegisterCount)
		}
		return Constant{Kind: ConstFunction, Function: &FunctionMeta{
			Name:          fn.Name,
			ParamCount:    fn.ParameterCount,
			RegisterCount: fn.RegisterCount,
			CodeIndex:     fn.CodeIndex,
		}}, nil
	case "class":
		var cl rawClass
		if err := json.Unmarshal(rc.Value, &cl); err != nil {
			return Constant{}, fmt.Errorf("%w: class constant: %v", ErrBadDocument, err)
		}
		return Constant{Kind: ConstClass, Class: &ClassMeta{
			Name:        cl.Name,
			FieldCount:  cl.FieldCount,
			MethodCount: cl.MethodCount,
			Fields:      cl.Fields,
		}}, nil
	default:
		return Constant{}, fmt.Errorf("%w: unknown constant type %q", ErrBadDocument, rc.Type)
	}
}
