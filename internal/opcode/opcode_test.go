package opcode

import "testing"

func TestLengthFixed(t *testing.T) {
	code := []byte{Aload, 3, Return}
	n, ok := Length(code, 0)
	if !ok || n != 2 {
		t.Fatalf("aload length = %d, %v, want 2, true", n, ok)
	}
	n, ok = Length(code, 2)
	if !ok || n != 1 {
		t.Fatalf("return length = %d, %v, want 1, true", n, ok)
	}
}

func TestLengthWideIinc(t *testing.T) {
	code := []byte{Wide, Iinc, 0, 1, 0, 2}
	n, ok := Length(code, 0)
	if !ok || n != 6 {
		t.Fatalf("wide iinc length = %d, %v, want 6, true", n, ok)
	}
}

func TestLengthWideLoad(t *testing.T) {
	code := []byte{Wide, Aload, 0, 1}
	n, ok := Length(code, 0)
	if !ok || n != 4 {
		t.Fatalf("wide aload length = %d, %v, want 4, true", n, ok)
	}
}

func TestPadding(t *testing.T) {
	cases := map[int]int{0: 3, 1: 2, 2: 1, 3: 0, 4: 3, 8: 3}
	for offset, want := range cases {
		if got := Padding(offset); got != want {
			t.Errorf("Padding(%d) = %d, want %d", offset, got, want)
		}
	}
}

func TestTableswitchLength(t *testing.T) {
	// tableswitch at offset 1 => padding = (3-1)%4 = 2
	code := make([]byte, 1+1+2+12+8) // opcode byte context + tableswitch
	code[0] = Nop
	code[1] = Tableswitch
	// default = 0, low = 0, high = 1 (2 entries)
	putU32(code, 1+1+2+0, 0)
	putU32(code, 1+1+2+4, 0)
	putU32(code, 1+1+2+8, 1)
	n, ok := Length(code, 1)
	if !ok {
		t.Fatalf("tableswitch length not ok")
	}
	want := 1 + 2 + 12 + 2*4
	if n != want {
		t.Fatalf("tableswitch length = %d, want %d", n, want)
	}
}

func TestLookupswitchLength(t *testing.T) {
	code := make([]byte, 1+1+2+8+16)
	code[0] = Nop
	code[1] = Lookupswitch
	putU32(code, 1+1+2+0, 0)
	putU32(code, 1+1+2+4, 2)
	n, ok := Length(code, 1)
	if !ok {
		t.Fatalf("lookupswitch length not ok")
	}
	want := 1 + 2 + 8 + 2*8
	if n != want {
		t.Fatalf("lookupswitch length = %d, want %d", n, want)
	}
}

func TestBranchOffset16(t *testing.T) {
	code := []byte{Ifeq, 0xff, 0xfd} // -3
	target := BranchOffset16(code, 0)
	if target != -3 {
		t.Fatalf("BranchOffset16 = %d, want -3", target)
	}
}

func putU32(b []byte, offset int, v uint32) {
	b[offset] = byte(v >> 24)
	b[offset+1] = byte(v >> 16)
	b[offset+2] = byte(v >> 8)
	b[offset+3] = byte(v)
}
