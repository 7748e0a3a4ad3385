package provider

import (
	"io"
	"strings"
	"testing"
)

func TestSSEReader(t *testing.T) {
	input := "event: message\nid: 1\ndata: first\n\n: comment line\ndata: second\ndata: continued\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	first, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if first.Event != "message" || first.ID != "1" || first.Data != "first" {
		t.Errorf("first event = %+v", first)
	}

	second, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if second.Data != "second\ncontinued" {
		t.Errorf("multiline data = %q, want joined with newline", second.Data)
	}

	if _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestSSEReaderUnterminatedFinalEvent(t *testing.T) {
	reader := NewSSEReader(strings.NewReader("data: tail\n"))

	event, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if event.Data != "tail" {
		t.Errorf("Data = %q, want tail", event.Data)
	}

	if _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestSSEReaderCRLF(t *testing.T) {
	reader := NewSSEReader(strings.NewReader("data: windows\r\n\r\n"))

	event, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if event.Data != "windows" {
		t.Errorf("Data = %q, want windows", event.Data)
	}
}
