package dap

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"testing"
)

func TestChannelRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := NewChannel(strings.NewReader(""), &buf)
	if err := out.WriteMessage(&Message{Seq: 1, Type: "request", Command: "initialize"}); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if !strings.HasPrefix(buf.String(), "Content-Length: ") {
		t.Errorf("outbound message not Content-Length framed: %q", buf.String())
	}

	in := NewChannel(&buf, io.Discard)
	payload, err := in.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %s", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %s", err)
	}
	if msg.Seq != 1 || msg.Command != "initialize" {
		t.Errorf("wrong message: %+v", msg)
	}
}

// Extra headers between Content-Length and the blank separator are consumed.
func TestChannelExtraHeaders(t *testing.T) {
	body := `{"seq":2,"type":"request"}`
	raw := "Content-Length: " + strconv.Itoa(len(body)) + "\r\nContent-Type: application/json\r\n\r\n" + body
	ch := NewChannel(strings.NewReader(raw), io.Discard)

	payload, err := ch.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %s", err)
	}
	if string(payload) != body {
		t.Errorf("wrong payload. got=%q, want=%q", payload, body)
	}
}

// A bare JSON object on one line is accepted without framing.
func TestChannelRawLineFallback(t *testing.T) {
	ch := NewChannel(strings.NewReader(`{"seq":3,"type":"request","command":"threads"}`+"\n"), io.Discard)
	payload, err := ch.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %s", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("payload is not JSON: %s", err)
	}
	if msg.Command != "threads" {
		t.Errorf("wrong command: %q", msg.Command)
	}
}

func TestChannelEOF(t *testing.T) {
	ch := NewChannel(strings.NewReader(""), io.Discard)
	if _, err := ch.ReadMessage(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestChannelBadFraming(t *testing.T) {
	ch := NewChannel(strings.NewReader("GARBAGE\n"), io.Discard)
	if _, err := ch.ReadMessage(); err == nil {
		t.Errorf("expected framing error")
	}
}

// Blank lines between messages are skipped.
func TestChannelSkipsBlankLines(t *testing.T) {
	ch := NewChannel(strings.NewReader("\r\n\r\n"+`{"seq":4,"type":"request"}`+"\n"), io.Discard)
	payload, err := ch.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %s", err)
	}
	if !strings.Contains(string(payload), `"seq":4`) {
		t.Errorf("wrong payload: %q", payload)
	}
}
