package gpio

import (
	"errors"
	"testing"
)

var _ Reader = (*FakeReader)(nil)
var _ Reader = (*RealReader)(nil)

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader(
		[]bool{false, false},
		[]bool{true, false},
		[]bool{false, true},
	)

	want := [][]bool{
		{false, false},
		{true, false},
		{false, true},
		{false, true}, // exhausted: last sample repeats
	}
	for i, w := range want {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("read %d: unexpected error: %v", i, err)
		}
		if len(got) != len(w) || got[0] != w[0] || got[1] != w[1] {
			t.Errorf("read %d: got %v, want %v", i, got, w)
		}
	}
}

func TestFakeReaderReturnsCopy(t *testing.T) {
	f := NewFakeReader([]bool{true})
	got, _ := f.Read()
	got[0] = false

	again, _ := f.Read()
	if !again[0] {
		t.Error("caller modified the scripted sample")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader()
	if _, err := f.Read(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]bool{true})
	f.ReadError = errors.New("gpio gone")

	if _, err := f.Read(); !errors.Is(err, f.ReadError) {
		t.Errorf("got %v, want %v", err, f.ReadError)
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([]bool{true})
	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
