package duplexrpc

import "testing"

func TestReadInt32LE(t *testing.T) {
	b := []byte{0x2A, 0x00, 0x00, 0x00}
	if got := readInt32LE(b); got != 42 {
		t.Fatalf("readInt32LE(%v) = %d, want 42", b, got)
	}
}

func TestConcatBytesLeavesInputsUntouched(t *testing.T) {
	a := []byte("abc")
	b := []byte("def")
	out := concatBytes(a, b)
	if string(out) != "abcdef" {
		t.Fatalf("concatBytes = %q, want abcdef", out)
	}
	out[0] = 'z'
	if a[0] != 'a' {
		t.Fatalf("concatBytes mutated its first input")
	}
}

func TestSplitAt(t *testing.T) {
	head, tail := splitAt([]byte("hello world"), 5)
	if string(head) != "hello" || string(tail) != " world" {
		t.Fatalf("splitAt = %q, %q", head, tail)
	}
}

func TestSplitBeforeByte(t *testing.T) {
	head, tail, found := splitBeforeByte([]byte("abc\x1Edef"), 0x1E)
	if !found || string(head) != "abc" || string(tail) != "\x1Edef" {
		t.Fatalf("splitBeforeByte = %q, %q, %v", head, tail, found)
	}

	head, tail, found = splitBeforeByte([]byte("abc"), 0x1E)
	if found || string(head) != "abc" || tail != nil {
		t.Fatalf("splitBeforeByte with no sentinel = %q, %q, %v", head, tail, found)
	}
}

func TestSplitAfterByte(t *testing.T) {
	head, tail, found := splitAfterByte([]byte("abc\ndef"), '\n')
	if !found || string(head) != "abc\n" || string(tail) != "def" {
		t.Fatalf("splitAfterByte = %q, %q, %v", head, tail, found)
	}
}
