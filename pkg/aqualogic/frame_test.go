package aqualogic

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeKey_LocalWired(t *testing.T) {
	got := EncodeKey(0x0100)
	want := []byte{0x10, 0x02, 0x00, 0x02, 0x00, 0x01, 0x00, 0x01, 0x00, 0x16, 0x10, 0x03}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeKey mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeKey_StuffsDLE(t *testing.T) {
	got := EncodeKey(0x0010)
	want := []byte{
		0x10, 0x02,
		0x00, 0x02, 0x10, 0x00, 0x00, 0x10, 0x00, 0x00,
		0x00, 0x34,
		0x10, 0x03,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EncodeKey mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeKey_Wireless(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader(EncodeKey(0x00080000)))
	f, err := fr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Type != FrameWirelessKey {
		t.Errorf("type = %v, want %v", f.Type, FrameWirelessKey)
	}
	want := []byte{0x01, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00}
	if diff := cmp.Diff(want, f.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameReader_RoundTrip(t *testing.T) {
	data := []byte{0x10, 0x00, 0x10, 0x03, 0xdf}
	fr := NewFrameReader(bytes.NewReader(EncodeFrame(FrameDisplayUpdate, data)))

	f, err := fr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Type != FrameDisplayUpdate {
		t.Errorf("type = %v, want %v", f.Type, FrameDisplayUpdate)
	}
	if diff := cmp.Diff(data, f.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	if _, err := fr.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestFrameReader_SkipsNoiseAndBadChecksum(t *testing.T) {
	bad := EncodeFrame(FrameKeepAlive, nil)
	bad[len(bad)-3]++ // corrupt checksum low byte

	var stream []byte
	stream = append(stream, 0xff, 0x00, 0x10, 0x55)
	stream = append(stream, bad...)
	stream = append(stream, EncodeFrame(FrameLEDs, []byte{1, 0, 0, 0, 0, 0, 0, 0})...)

	fr := NewFrameReader(bytes.NewReader(stream))

	if _, err := fr.Next(); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}

	f, err := fr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Type != FrameLEDs {
		t.Errorf("type = %v, want %v", f.Type, FrameLEDs)
	}
}

func TestFrameReader_RestartOnSTX(t *testing.T) {
	var stream []byte
	stream = append(stream, frameDLE, frameSTX, 0x01, 0x03, 'x')
	stream = append(stream, EncodeFrame(FrameKeepAlive, nil)...)

	f, err := NewFrameReader(bytes.NewReader(stream)).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Type != FrameKeepAlive {
		t.Errorf("type = %v, want %v", f.Type, FrameKeepAlive)
	}
}
