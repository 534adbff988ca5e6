package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Channel frames DAP messages over a byte stream (standard I/O or an
// accepted TCP connection). Outbound messages are always Content-Length
// framed; inbound accepts either framing or, as a fallback, a single raw
// JSON object on one line beginning with '{'.
type Channel struct {
	reader *bufio.Reader
	writer io.Writer
	wmu    sync.Mutex
}

func NewChannel(r io.Reader, w io.Writer) *Channel {
	return &Channel{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// ReadMessage returns the next message payload. io.EOF means the transport
// closed and the session should terminate.
func (c *Channel) ReadMessage() ([]byte, error) {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) == "" {
				return nil, io.EOF
			}
			if err != io.EOF {
				return nil, err
			}
		}
		trimmed := strings.TrimRight(line, "\r\n")

		if trimmed == "" {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue // blank line between messages
		}

		if strings.HasPrefix(trimmed, "Content-Length:") {
			lengthStr := strings.TrimSpace(strings.TrimPrefix(trimmed, "Content-Length:"))
			length, convErr := strconv.Atoi(lengthStr)
			if convErr != nil {
				return nil, fmt.Errorf("bad Content-Length header %q", lengthStr)
			}

			// consume remaining headers up to the blank separator
			for {
				hdr, hdrErr := c.reader.ReadString('\n')
				if hdrErr != nil {
					return nil, hdrErr
				}
				if strings.TrimRight(hdr, "\r\n") == "" {
					break
				}
			}

			content := make([]byte, length)
			if _, readErr := io.ReadFull(c.reader, content); readErr != nil {
				return nil, readErr
			}
			return content, nil
		}

		// raw single-line JSON fallback
		if strings.HasPrefix(trimmed, "{") {
			return []byte(trimmed), nil
		}

		return nil, fmt.Errorf("unrecognized message framing: %q", trimmed)
	}
}

// WriteMessage marshals and frames one outbound message. Safe for
// concurrent use: the interpreter goroutine emits events while the session
// goroutine emits responses.
func (c *Channel) WriteMessage(msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := fmt.Fprintf(c.writer, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err = c.writer.Write(payload)
	return err
}
