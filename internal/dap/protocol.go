// Package dap implements the Debug Adapter Protocol surface of the Velox VM
package dap

import "encoding/json"

// Message is the base DAP envelope shared by requests, responses and events
type Message struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// request fields
	Command   string          `json:"command,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// response fields
	RequestSeq int    `json:"request_seq,omitempty"`
	Success    bool   `json:"success,omitempty"`
	ErrMessage string `json:"message,omitempty"`

	// event fields
	Event string `json:"event,omitempty"`

	Body any `json:"body,omitempty"`
}

// Capabilities advertised in the initialize response
type Capabilities struct {
	SupportsConfigurationDoneRequest bool `json:"supportsConfigurationDoneRequest"`
	SupportsEvaluateForHovers        bool `json:"supportsEvaluateForHovers"`
}

// LaunchArguments configures a debug session
type LaunchArguments struct {
	Program     string `json:"program,omitempty"`
	StopOnEntry bool   `json:"stopOnEntry,omitempty"`
}

// SetBreakpointsArguments carries a full breakpoint set for one source
type SetBreakpointsArguments struct {
	Source      Source             `json:"source"`
	Breakpoints []SourceBreakpoint `json:"breakpoints,omitempty"`
	Lines       []int              `json:"lines,omitempty"`
}

type Source struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

type SourceBreakpoint struct {
	Line      int    `json:"line"`
	Condition string `json:"condition,omitempty"`
}

// Breakpoint is the response entry for one requested breakpoint
type Breakpoint struct {
	ID       int     `json:"id,omitempty"`
	Verified bool    `json:"verified"`
	Message  string  `json:"message,omitempty"`
	Line     int     `json:"line,omitempty"`
	Source   *Source `json:"source,omitempty"`
}

type SetBreakpointsResponseBody struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
}

// Thread: the VM reports a single interpreter thread per session
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type ThreadsResponseBody struct {
	Threads []Thread `json:"threads"`
}

type StackTraceArguments struct {
	ThreadID   int `json:"threadId"`
	StartFrame int `json:"startFrame,omitempty"`
	Levels     int `json:"levels,omitempty"`
}

type StackFrame struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Source *Source `json:"source,omitempty"`
	Line   int     `json:"line"`
	Column int     `json:"column"`
}

type StackTraceResponseBody struct {
	StackFrames []StackFrame `json:"stackFrames"`
	TotalFrames int          `json:"totalFrames"`
}

type ScopesArguments struct {
	FrameID int `json:"frameId"`
}

type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
	Expensive          bool   `json:"expensive"`
}

type ScopesResponseBody struct {
	Scopes []Scope `json:"scopes"`
}

type VariablesArguments struct {
	VariablesReference int `json:"variablesReference"`
}

type Variable struct {
	Name               string `json:"name"`
	Value              string `json:"value"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
}

type VariablesResponseBody struct {
	Variables []Variable `json:"variables"`
}

type ContinueResponseBody struct {
	AllThreadsContinued bool `json:"allThreadsContinued"`
}

// UploadBytecodeArguments carries a JSON bytecode document as a string
type UploadBytecodeArguments struct {
	Bytecode string `json:"bytecode"`
}

// Event bodies

type StoppedEventBody struct {
	Reason            string `json:"reason"`
	ThreadID          int    `json:"threadId"`
	AllThreadsStopped bool   `json:"allThreadsStopped"`
}

type OutputEventBody struct {
	Category string `json:"category"`
	Output   string `json:"output"`
}

type ProcessEventBody struct {
	Name            string `json:"name"`
	IsLocalProcess  bool   `json:"isLocalProcess"`
	StartMethod     string `json:"startMethod"`
	PointerSize     int    `json:"pointerSize,omitempty"`
	SystemProcessID int    `json:"systemProcessId,omitempty"`
}
