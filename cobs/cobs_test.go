package cobs

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, src []byte) {
	t.Helper()
	encBuf := make([]byte, EncodedLen(len(src)))
	n := Encode(encBuf, src)
	encoded := encBuf[:n]

	if encoded[n-1] != 0x00 {
		t.Fatalf("encoded frame must end in a zero delimiter, got %x", encoded)
	}
	for _, b := range encoded[:n-1] {
		if b == 0x00 {
			t.Fatalf("encoded frame contains an interior zero byte: %x", encoded)
		}
	}

	decBuf := make([]byte, len(src)+16)
	dn := Decode(decBuf, encoded[:n-1])
	decoded := decBuf[:dn]

	if !bytes.Equal(decoded, src) {
		t.Fatalf("round trip mismatch: src=%x decoded=%x (encoded=%x)", src, decoded, encoded)
	}
}

func TestRoundTripFixed(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x00, 0x00},
		{0x01, 0x02, 0x03},
		{0x11, 0x00, 0x22, 0x00, 0x00, 0x33},
		bytes.Repeat([]byte{0xAA}, 254),
		bytes.Repeat([]byte{0xAA}, 255),
		bytes.Repeat([]byte{0x00}, 10),
	}
	for _, c := range cases {
		roundTrip(t, c)
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := rng.Intn(120)
		buf := make([]byte, n)
		rng.Read(buf)
		roundTrip(t, buf)
	}
}

func TestEncodedLenBound(t *testing.T) {
	for n := 0; n <= 600; n++ {
		want := n + (n+253)/254 + 1
		if got := EncodedLen(n); got != want {
			t.Fatalf("EncodedLen(%d) = %d, want %d", n, got, want)
		}
	}
}
