package dap

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/veloxvm/velox/internal/config"
	"github.com/veloxvm/velox/internal/vm"
)

// testClient drives a Session over in-memory pipes and records every
// message the session emits.
type testClient struct {
	t   *testing.T
	ch  *Channel
	log []Message
	seq int
}

func newTestClient(t *testing.T, prog *vm.Program) (*testClient, *Session) {
	t.Helper()
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	session := NewSession(NewChannel(serverIn, serverOut), prog, config.Default())
	go func() { _ = session.Serve() }()

	return &testClient{t: t, ch: NewChannel(clientIn, clientOut)}, session
}

func (c *testClient) read() Message {
	c.t.Helper()
	payload, err := c.ch.ReadMessage()
	if err != nil {
		c.t.Fatalf("read failed: %s", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.t.Fatalf("bad message %q: %s", payload, err)
	}
	c.log = append(c.log, msg)
	return msg
}

// request sends one request and reads until its response arrives; events
// received along the way are kept in the log.
func (c *testClient) request(command string, args any) Message {
	c.t.Helper()
	c.seq++
	req := &Message{Seq: c.seq, Type: "request", Command: command}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			c.t.Fatalf("bad arguments: %s", err)
		}
		req.Arguments = raw
	}
	if err := c.ch.WriteMessage(req); err != nil {
		c.t.Fatalf("write failed: %s", err)
	}
	for {
		msg := c.read()
		if msg.Type == "response" && msg.RequestSeq == req.Seq {
			if msg.Command != command {
				c.t.Errorf("response command mismatch. got=%q, want=%q", msg.Command, command)
			}
			return msg
		}
	}
}

func (c *testClient) mustSucceed(command string, args any) Message {
	c.t.Helper()
	resp := c.request(command, args)
	if !resp.Success {
		c.t.Fatalf("%s failed: %s", command, resp.ErrMessage)
	}
	return resp
}

// waitEvent blocks until an event with the given name has been received,
// checking already-logged messages first.
func (c *testClient) waitEvent(name string) Message {
	c.t.Helper()
	for _, msg := range c.log {
		if msg.Type == "event" && msg.Event == name {
			return msg
		}
	}
	for {
		msg := c.read()
		if msg.Type == "event" && msg.Event == name {
			return msg
		}
	}
}

func body(t *testing.T, msg Message) map[string]any {
	t.Helper()
	m, ok := msg.Body.(map[string]any)
	if !ok {
		t.Fatalf("message has no object body: %+v", msg)
	}
	return m
}

// testBytecode returns a document computing 7 into r0, with a two-line
// source map so stepping and breakpoints have something to bind to.
func testBytecode() string {
	return fmt.Sprintf(`{
		"version": "1.0.0",
		"constants": [],
		"instructions": [
			{"opcode": %d, "a": 0, "b": 0, "c": 7},
			{"opcode": %d, "a": 0, "b": 0, "c": 0}
		],
		"entryPoint": 0,
		"debug": {
			"sourceMap": [
				{"instruction": 0, "line": 1, "column": 1, "file": 0},
				{"instruction": 1, "line": 2, "column": 1, "file": 0}
			],
			"files": [{"path": "main.vx"}]
		}
	}`, byte(vm.OpLoadKInt16), byte(vm.OpHalt))
}

func TestInitializeHandshake(t *testing.T) {
	client, _ := newTestClient(t, nil)

	resp := client.mustSucceed("initialize", nil)
	caps := body(t, resp)
	if caps["supportsConfigurationDoneRequest"] != true {
		t.Errorf("missing configurationDone capability: %v", caps)
	}
	client.waitEvent("initialized")
}

func TestLaunchWithoutProgramFails(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.mustSucceed("initialize", nil)

	resp := client.request("launch", LaunchArguments{})
	if resp.Success {
		t.Errorf("launch without a program should fail")
	}
}

func TestEvaluateIsUnsupported(t *testing.T) {
	client, _ := newTestClient(t, nil)
	resp := client.request("evaluate", map[string]string{"expression": "1+1"})
	if resp.Success {
		t.Errorf("evaluate should fail")
	}
	if resp.ErrMessage == "" {
		t.Errorf("failure response is missing a message")
	}
}

func TestUnknownCommandFails(t *testing.T) {
	client, _ := newTestClient(t, nil)
	resp := client.request("definitelyNotACommand", nil)
	if resp.Success {
		t.Errorf("unknown command should fail")
	}
}

func TestThreads(t *testing.T) {
	client, _ := newTestClient(t, nil)
	resp := client.mustSucceed("threads", nil)
	b := body(t, resp)
	threads := b["threads"].([]any)
	if len(threads) != 1 {
		t.Fatalf("wrong thread count. got=%d, want=1", len(threads))
	}
}

func TestUploadAndRunToCompletion(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.mustSucceed("initialize", nil)
	client.mustSucceed("uploadBytecode", UploadBytecodeArguments{Bytecode: testBytecode()})
	client.mustSucceed("launch", LaunchArguments{})
	client.mustSucceed("configurationDone", nil)
	client.mustSucceed("continue", nil)

	client.waitEvent("terminated")

	var sawResult bool
	for _, msg := range client.log {
		if msg.Type == "event" && msg.Event == "output" {
			if out, ok := msg.Body.(map[string]any); ok {
				if s, _ := out["output"].(string); s == "result: 7\n" {
					sawResult = true
				}
			}
		}
	}
	if !sawResult {
		t.Errorf("no result output event seen in %d messages", len(client.log))
	}
}

func TestUploadBadBytecodeFails(t *testing.T) {
	client, _ := newTestClient(t, nil)
	resp := client.request("uploadBytecode", UploadBytecodeArguments{Bytecode: "{broken"})
	if resp.Success {
		t.Errorf("malformed bytecode should be rejected")
	}
}

func TestStopOnEntryAndInspection(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.mustSucceed("initialize", nil)
	client.mustSucceed("uploadBytecode", UploadBytecodeArguments{Bytecode: testBytecode()})
	client.mustSucceed("launch", LaunchArguments{StopOnEntry: true})
	client.mustSucceed("continue", nil)

	stopped := client.waitEvent("stopped")
	sb := body(t, stopped)
	if sb["reason"] != "entry" {
		t.Errorf("wrong stop reason. got=%v, want=entry", sb["reason"])
	}

	trace := client.mustSucceed("stackTrace", StackTraceArguments{ThreadID: 1})
	tb := body(t, trace)
	frames := tb["stackFrames"].([]any)
	if len(frames) != 1 {
		t.Fatalf("wrong frame count. got=%d, want=1", len(frames))
	}
	top := frames[0].(map[string]any)
	if top["line"] != float64(1) {
		t.Errorf("wrong line. got=%v, want=1", top["line"])
	}

	scopes := client.mustSucceed("scopes", ScopesArguments{FrameID: 0})
	scb := body(t, scopes)
	if len(scb["scopes"].([]any)) != 2 {
		t.Errorf("expected register and global scopes: %v", scb)
	}

	client.mustSucceed("continue", nil)
	client.waitEvent("terminated")
}

func TestSetBreakpointsResponse(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.mustSucceed("initialize", nil)
	client.mustSucceed("uploadBytecode", UploadBytecodeArguments{Bytecode: testBytecode()})
	client.mustSucceed("launch", LaunchArguments{StopOnEntry: true})

	resp := client.mustSucceed("setBreakpoints", SetBreakpointsArguments{
		Source:      Source{Path: "main.vx"},
		Breakpoints: []SourceBreakpoint{{Line: 2}, {Line: 42}},
	})
	b := body(t, resp)
	bps := b["breakpoints"].([]any)
	if len(bps) != 2 {
		t.Fatalf("wrong breakpoint count. got=%d, want=2", len(bps))
	}
	first := bps[0].(map[string]any)
	second := bps[1].(map[string]any)
	if first["verified"] != true {
		t.Errorf("line 2 should verify: %v", first)
	}
	if second["verified"] != false {
		t.Errorf("line 42 should not verify: %v", second)
	}
	if reason, _ := second["message"].(string); reason == "" {
		t.Errorf("unverified breakpoint is missing its reason")
	}
}

func TestDisconnectTerminates(t *testing.T) {
	client, _ := newTestClient(t, nil)
	client.mustSucceed("initialize", nil)
	client.mustSucceed("disconnect", nil)
	client.waitEvent("terminated")
}

func TestMalformedMessageIsIgnored(t *testing.T) {
	client, _ := newTestClient(t, nil)

	// not a request; the session must keep serving
	if err := client.ch.WriteMessage(&Message{Seq: 99, Type: "event", Event: "noise"}); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	client.mustSucceed("threads", nil)
}
