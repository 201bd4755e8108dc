package classfile

import "encoding/binary"

// cpBuilder assembles a constant pool for hand-built class file fixtures.
// Indices start at 1, matching the JVM's constant pool numbering.
type cpBuilder struct {
	buf     []byte
	count   uint16
	entries uint16
}

func newCPBuilder() *cpBuilder {
	return &cpBuilder{count: 1}
}

func (b *cpBuilder) addUTF8(s string) uint16 {
	b.buf = append(b.buf, tagUTF8)
	b.buf = appendU16(b.buf, uint16(len(s)))
	b.buf = append(b.buf, []byte(s)...)
	return b.next()
}

func (b *cpBuilder) addClass(nameUTF8 uint16) uint16 {
	b.buf = append(b.buf, tagClass)
	b.buf = appendU16(b.buf, nameUTF8)
	return b.next()
}

func (b *cpBuilder) addNameAndType(nameUTF8, descUTF8 uint16) uint16 {
	b.buf = append(b.buf, tagNameAndType)
	b.buf = appendU16(b.buf, nameUTF8)
	b.buf = appendU16(b.buf, descUTF8)
	return b.next()
}

func (b *cpBuilder) addMethodref(classIdx, natIdx uint16) uint16 {
	b.buf = append(b.buf, tagMethodref)
	b.buf = appendU16(b.buf, classIdx)
	b.buf = appendU16(b.buf, natIdx)
	return b.next()
}

func (b *cpBuilder) addFieldref(classIdx, natIdx uint16) uint16 {
	b.buf = append(b.buf, tagFieldref)
	b.buf = appendU16(b.buf, classIdx)
	b.buf = appendU16(b.buf, natIdx)
	return b.next()
}

func (b *cpBuilder) addString(utf8Idx uint16) uint16 {
	b.buf = append(b.buf, tagString)
	b.buf = appendU16(b.buf, utf8Idx)
	return b.next()
}

func (b *cpBuilder) addInteger(v int32) uint16 {
	b.buf = append(b.buf, tagInteger)
	b.buf = appendU32(b.buf, uint32(v))
	return b.next()
}

func (b *cpBuilder) next() uint16 {
	idx := b.count
	b.count++
	b.entries++
	return idx
}

// count the constant_pool_count field (highest index + 1).
func (b *cpBuilder) poolCount() uint16 { return b.count }

func appendU16(b []byte, v uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, v)
	return append(b, out...)
}

func appendU32(b []byte, v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return append(b, out...)
}

// classBuilder assembles a minimal class file around a pre-built
// constant pool and a single method's Code attribute.
type classBuilder struct {
	cp         *cpBuilder
	thisClass  uint16
	superClass uint16
}

// buildClassWithMethod assembles a full class file with one method
// named methodName/methodDesc whose Code attribute carries bytecode.
// maxStack/maxLocals are fixed at 8 since the tests never overflow
// them; the exception table is written from handlers; no LineNumberTable.
func buildClassWithMethod(cp *cpBuilder, thisClass, superClass uint16, methodNameIdx, methodDescIdx uint16, codeAttrNameIdx uint16, bytecode []byte, handlers []exceptionTableEntry) []byte {
	var out []byte
	out = appendU32(out, classFileMagic)
	out = appendU16(out, 0)  // minor
	out = appendU16(out, 61) // major

	out = appendU16(out, cp.poolCount())
	out = append(out, cp.buf...)

	out = appendU16(out, 0x0021) // access_flags: public super
	out = appendU16(out, thisClass)
	out = appendU16(out, superClass)
	out = appendU16(out, 0) // interfaces_count

	out = appendU16(out, 0) // fields_count

	out = appendU16(out, 1) // methods_count
	out = appendU16(out, 0x0001) // access_flags: public
	out = appendU16(out, methodNameIdx)
	out = appendU16(out, methodDescIdx)
	out = appendU16(out, 1) // attributes_count (Code)

	var code []byte
	code = appendU16(code, 8) // max_stack
	code = appendU16(code, 8) // max_locals
	code = appendU32(code, uint32(len(bytecode)))
	code = append(code, bytecode...)
	code = appendU16(code, uint16(len(handlers)))
	for _, h := range handlers {
		code = appendU16(code, h.startPC)
		code = appendU16(code, h.endPC)
		code = appendU16(code, h.handlerPC)
		code = appendU16(code, h.catchType)
	}
	code = appendU16(code, 0) // Code attributes_count

	out = appendU16(out, codeAttrNameIdx)
	out = appendU32(out, uint32(len(code)))
	out = append(out, code...)

	out = appendU16(out, 0) // class attributes_count
	return out
}

type exceptionTableEntry struct {
	startPC, endPC, handlerPC, catchType uint16
}
