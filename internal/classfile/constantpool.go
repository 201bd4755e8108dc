package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Constant pool tag values, JVMS §4.4.
const (
	tagUTF8               = 1
	tagInteger             = 3
	tagFloat               = 4
	tagLong                = 5
	tagDouble              = 6
	tagClass               = 7
	tagString              = 8
	tagFieldref            = 9
	tagMethodref           = 10
	tagInterfaceMethodref  = 11
	tagNameAndType         = 12
	tagMethodHandle        = 15
	tagMethodType          = 16
	tagDynamic             = 17
	tagInvokeDynamic       = 18
	tagModule              = 19
	tagPackage             = 20
)

// cpEntry is a single decoded constant pool slot. Long and Double
// entries occupy two indices in the JVM's numbering (JVMS §4.4.5); we
// record that by leaving the following index unset (kind 0 / nil) and
// never addressing it.
type cpEntry struct {
	tag byte

	utf8 string

	integer int32
	float32v float32
	long     int64
	double   float64

	// name/class/string/nameAndType point at other constant pool indices.
	nameIndex  uint16
	classIndex uint16

	// ref entries (Fieldref/Methodref/InterfaceMethodref)
	classRefIndex       uint16
	nameAndTypeRefIndex uint16

	descriptorIndex uint16

	bootstrapMethodAttrIndex uint16
}

// constantPool is 1-indexed per the JVM spec; index 0 is never valid.
type constantPool struct {
	entries []cpEntry
}

func (cp *constantPool) get(index uint16) (cpEntry, error) {
	if int(index) <= 0 || int(index) >= len(cp.entries) {
		return cpEntry{}, fmt.Errorf("classfile: constant pool index %d out of range", index)
	}
	return cp.entries[index], nil
}

func (cp *constantPool) utf8(index uint16) (string, error) {
	e, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if e.tag != tagUTF8 {
		return "", fmt.Errorf("classfile: constant pool index %d is not Utf8 (tag %d)", index, e.tag)
	}
	return e.utf8, nil
}

// className resolves a Class constant pool entry to its internal-form
// name, e.g. "java/lang/String".
func (cp *constantPool) className(index uint16) (string, error) {
	e, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if e.tag != tagClass {
		return "", fmt.Errorf("classfile: constant pool index %d is not Class (tag %d)", index, e.tag)
	}
	return cp.utf8(e.nameIndex)
}

// string resolves a String constant pool entry to its literal value.
func (cp *constantPool) string(index uint16) (string, error) {
	e, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if e.tag != tagString {
		return "", fmt.Errorf("classfile: constant pool index %d is not String (tag %d)", index, e.tag)
	}
	return cp.utf8(e.nameIndex)
}

// nameAndType resolves a NameAndType entry to (name, descriptor).
func (cp *constantPool) nameAndType(index uint16) (name, descriptor string, err error) {
	e, err := cp.get(index)
	if err != nil {
		return "", "", err
	}
	if e.tag != tagNameAndType {
		return "", "", fmt.Errorf("classfile: constant pool index %d is not NameAndType (tag %d)", index, e.tag)
	}
	name, err = cp.utf8(e.nameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.utf8(e.descriptorIndex)
	return name, descriptor, err
}

// methodRef resolves a Methodref/InterfaceMethodref entry to
// (ownerClass, name, descriptor).
func (cp *constantPool) methodRef(index uint16) (owner, name, descriptor string, err error) {
	e, err := cp.get(index)
	if err != nil {
		return "", "", "", err
	}
	if e.tag != tagMethodref && e.tag != tagInterfaceMethodref {
		return "", "", "", fmt.Errorf("classfile: constant pool index %d is not a method ref (tag %d)", index, e.tag)
	}
	owner, err = cp.className(e.classRefIndex)
	if err != nil {
		return "", "", "", err
	}
	name, descriptor, err = cp.nameAndType(e.nameAndTypeRefIndex)
	return owner, name, descriptor, err
}

// fieldRef resolves a Fieldref entry to (ownerClass, name, descriptor).
func (cp *constantPool) fieldRef(index uint16) (owner, name, descriptor string, err error) {
	e, err := cp.get(index)
	if err != nil {
		return "", "", "", err
	}
	if e.tag != tagFieldref {
		return "", "", "", fmt.Errorf("classfile: constant pool index %d is not Fieldref (tag %d)", index, e.tag)
	}
	owner, err = cp.className(e.classRefIndex)
	if err != nil {
		return "", "", "", err
	}
	name, descriptor, err = cp.nameAndType(e.nameAndTypeRefIndex)
	return owner, name, descriptor, err
}

// invokeDynamicDescriptor resolves an InvokeDynamic entry to its
// NameAndType descriptor.
func (cp *constantPool) invokeDynamicDescriptor(index uint16) (string, error) {
	e, err := cp.get(index)
	if err != nil {
		return "", err
	}
	if e.tag != tagInvokeDynamic {
		return "", fmt.Errorf("classfile: constant pool index %d is not InvokeDynamic (tag %d)", index, e.tag)
	}
	_, descriptor, err := cp.nameAndType(e.nameAndTypeRefIndex)
	return descriptor, err
}

func parseConstantPool(r *reader) (*constantPool, error) {
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading constant_pool_count: %w", err)
	}
	entries := make([]cpEntry, count)
	for i := 1; i < int(count); i++ {
		tag, err := r.u1()
		if err != nil {
			return nil, fmt.Errorf("classfile: reading constant pool tag at index %d: %w", i, err)
		}
		entry, wide, err := parseConstantPoolEntry(r, tag)
		if err != nil {
			return nil, fmt.Errorf("classfile: constant pool index %d: %w", i, err)
		}
		entries[i] = entry
		if wide {
			// Long/Double occupy the next index too; leave it zeroed
			// and skip it, per JVMS 4.4.5.
			i++
		}
	}
	return &constantPool{entries: entries}, nil
}

func parseConstantPoolEntry(r *reader, tag byte) (entry cpEntry, wide bool, err error) {
	entry.tag = tag
	switch tag {
	case tagUTF8:
		length, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		raw, err := r.bytes(int(length))
		if err != nil {
			return entry, false, err
		}
		entry.utf8 = string(raw)
	case tagInteger:
		v, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		entry.integer = int32(v)
	case tagFloat:
		v, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		entry.float32v = math.Float32frombits(v)
	case tagLong:
		hi, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		lo, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		entry.long = int64(binary.BigEndian.Uint64(append(u32Bytes(hi), u32Bytes(lo)...)))
		wide = true
	case tagDouble:
		hi, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		lo, err := r.u4()
		if err != nil {
			return entry, false, err
		}
		bits := binary.BigEndian.Uint64(append(u32Bytes(hi), u32Bytes(lo)...))
		entry.double = math.Float64frombits(bits)
		wide = true
	case tagClass:
		v, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		entry.nameIndex = v
	case tagString:
		v, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		entry.nameIndex = v
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
		classIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		natIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		entry.classRefIndex = classIdx
		entry.nameAndTypeRefIndex = natIdx
	case tagNameAndType:
		nameIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		entry.nameIndex = nameIdx
		entry.descriptorIndex = descIdx
	case tagMethodHandle:
		if err := r.skip(1); err != nil {
			return entry, false, err
		}
		if _, err := r.u2(); err != nil {
			return entry, false, err
		}
	case tagMethodType:
		if _, err := r.u2(); err != nil {
			return entry, false, err
		}
	case tagDynamic, tagInvokeDynamic:
		bmIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		natIdx, err := r.u2()
		if err != nil {
			return entry, false, err
		}
		entry.bootstrapMethodAttrIndex = bmIdx
		entry.nameAndTypeRefIndex = natIdx
	case tagModule, tagPackage:
		if _, err := r.u2(); err != nil {
			return entry, false, err
		}
	default:
		return entry, false, fmt.Errorf("unrecognized constant pool tag %d", tag)
	}
	return entry, wide, nil
}

func u32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
