package classfile

import (
	"encoding/hex"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"
)

// bytecodeFixtures bundles several named hex-encoded bytecode bodies
// into one txtar archive, the way a multi-case fixture set is kept as
// a single readable block instead of scattered byte-slice literals.
const bytecodeFixtures = `
-- straightline.hex --
2a b1
-- branching.hex --
03 99 00 05 04 ac 05 ac
`

func loadBytecodeFixture(t *testing.T, name string) []byte {
	t.Helper()
	archive := txtar.Parse([]byte(bytecodeFixtures))
	for _, f := range archive.Files {
		if f.Name != name {
			continue
		}
		hexDigits := strings.Join(strings.Fields(string(f.Data)), "")
		data, err := hex.DecodeString(hexDigits)
		if err != nil {
			t.Fatalf("fixture %s: invalid hex: %v", name, err)
		}
		return data
	}
	t.Fatalf("fixture %s not found in archive", name)
	return nil
}

func TestScanClassFromTxtarFixtures(t *testing.T) {
	cases := []struct {
		fixture    string
		wantBlocks int
	}{
		{"straightline.hex", 1},
		{"branching.hex", 3},
	}

	for _, c := range cases {
		cp := newCPBuilder()
		codeAttrNameIdx := cp.addUTF8("Code")
		thisNameIdx := cp.addUTF8("Fixture")
		thisClass := cp.addClass(thisNameIdx)
		superNameIdx := cp.addUTF8("java/lang/Object")
		superClass := cp.addClass(superNameIdx)
		methodNameIdx := cp.addUTF8("run")
		methodDescIdx := cp.addUTF8("()V")

		bytecode := loadBytecodeFixture(t, c.fixture)
		data := buildClassWithMethod(cp, thisClass, superClass, methodNameIdx, methodDescIdx, codeAttrNameIdx, bytecode, nil)

		class, err := ScanClass(0, data)
		if err != nil {
			t.Fatalf("%s: ScanClass: %v", c.fixture, err)
		}
		if got := len(class.Methods[0].CFG.Blocks); got != c.wantBlocks {
			t.Errorf("%s: Blocks = %d, want %d", c.fixture, got, c.wantBlocks)
		}
	}
}
