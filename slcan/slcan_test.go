package slcan

import (
	"testing"

	"github.com/lufla/softcan"
)

func TestEncodeDecode(t *testing.T) {
	cases := []struct {
		name  string
		frame softcan.Frame
		line  string
	}{
		{
			name:  "data frame",
			frame: softcan.MustFrame(0x123, []byte{0xDE, 0xAD, 0xBE, 0xEF}),
			line:  "t1234DEADBEEF",
		},
		{
			name:  "empty frame",
			frame: softcan.MustFrame(0x7FF, nil),
			line:  "t7FF0",
		},
		{
			name:  "full payload",
			frame: softcan.MustFrame(0x001, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
			line:  "t00180102030405060708",
		},
	}

	for _, tc := range cases {
		if got := Encode(tc.frame); got != tc.line {
			t.Fatalf("%s: Encode() = %q, want %q", tc.name, got, tc.line)
		}
		got, err := Decode(tc.line)
		if err != nil {
			t.Fatalf("%s: Decode() error = %v", tc.name, err)
		}
		if got != tc.frame {
			t.Fatalf("%s: Decode() = %+v, want %+v", tc.name, got, tc.frame)
		}
	}
}

func TestEncodeClampsDLC(t *testing.T) {
	f := softcan.Frame{ID: 0x100, DLC: 12}
	for i := range f.Data {
		f.Data[i] = byte(i)
	}
	line := Encode(f)
	if line[4] != '8' {
		t.Fatalf("encoded dlc = %q, want '8'", line[4])
	}
	if len(line) != 5+16 {
		t.Fatalf("encoded length = %d, want %d", len(line), 5+16)
	}
}

func TestDecodeTolerance(t *testing.T) {
	// Lowercase hex and serial line endings are accepted.
	f, err := Decode("t1232dead\r")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := softcan.MustFrame(0x123, []byte{0xDE, 0xAD})
	if f != want {
		t.Fatalf("got %+v, want %+v", f, want)
	}
}

func TestDecodeRejects(t *testing.T) {
	bad := []string{
		"",
		"x123",
		"T12345678",        // extended
		"r1230",            // remote
		"t12",              // truncated header
		"t8000",            // id out of range
		"t123A",            // dlc not a digit in range... 'A'-'0' = 17
		"t12320A",          // data too short for dlc
		"t1232DEADBE",      // data too long for dlc
		"t1232DEXX",        // bad hex
	}
	for _, line := range bad {
		if _, err := Decode(line); err == nil {
			t.Fatalf("Decode(%q) should fail", line)
		}
	}
}
