package respcodec

import (
	"bytes"
	"testing"
)

func TestWriter_simpleTypes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.SimpleString("OK")
	w.Error("ERR boom")
	w.Integer(42)
	w.BulkString([]byte("hello"))
	w.NullBulk()
	w.NullArray()
	w.Flush()

	want := "+OK\r\n-ERR boom\r\n:42\r\n$5\r\nhello\r\n$-1\r\n*-1\r\n"
	if buf.String() != want {
		t.Errorf("encoded = %q, want %q", buf.String(), want)
	}
}

func TestWriter_arrayOfBulkStrings(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.ArrayHeader(2)
	w.BulkString([]byte("a"))
	w.BulkString([]byte("bc"))
	w.Flush()

	want := "*2\r\n$1\r\na\r\n$2\r\nbc\r\n"
	if buf.String() != want {
		t.Errorf("encoded = %q, want %q", buf.String(), want)
	}
}

func TestReader_readCommand(t *testing.T) {
	raw := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"
	r := NewReader(bytes.NewBufferString(raw))

	args, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand() error = %v", err)
	}
	want := []string{"SET", "k", "v"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestReader_roundTripWithWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.ArrayHeader(2)
	w.BulkString([]byte("GET"))
	w.BulkString([]byte("key-with spaces"))
	w.Flush()

	r := NewReader(&buf)
	args, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand() error = %v", err)
	}
	if len(args) != 2 || args[0] != "GET" || args[1] != "key-with spaces" {
		t.Errorf("args = %v, want [GET, \"key-with spaces\"]", args)
	}
}

func TestReader_rejectsNonArrayLeadByte(t *testing.T) {
	r := NewReader(bytes.NewBufferString("+OK\r\n"))
	if _, err := r.ReadCommand(); err == nil {
		t.Fatal("ReadCommand() on a non-array line succeeded, want a protocol error")
	}
}

func TestReader_negativeBulkLengthIsEmptyString(t *testing.T) {
	raw := "*1\r\n$-1\r\n"
	r := NewReader(bytes.NewBufferString(raw))
	args, err := r.ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand() error = %v", err)
	}
	if len(args) != 1 || args[0] != "" {
		t.Errorf("args = %v, want one empty string", args)
	}
}
