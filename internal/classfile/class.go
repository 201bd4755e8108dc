package classfile

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/ir"
)

const classFileMagic = 0xCAFEBABE

// Access flag bits relevant to fields and methods, JVMS §4.5/§4.6.
const (
	accPublic    = 0x0001
	accStatic    = 0x0008
	accVolatile  = 0x0040
	accBridge    = 0x0040
	accSynthetic = 0x1000
	accAbstract  = 0x0400
)

// ScanClass decodes a single class file's bytes into ir.Class.
// artifactIndex identifies the originating ir.Artifact so rule findings
// can be attributed back to a JAR entry or loose file.
func ScanClass(artifactIndex int, data []byte) (ir.Class, error) {
	r := newReader(data)

	magic, err := r.u4()
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: reading magic: %w", err)
	}
	if magic != classFileMagic {
		return ir.Class{}, fmt.Errorf("classfile: bad magic %#x", magic)
	}
	if err := r.skip(4); err != nil { // minor_version, major_version
		return ir.Class{}, fmt.Errorf("classfile: reading version: %w", err)
	}

	cp, err := parseConstantPool(r)
	if err != nil {
		return ir.Class{}, err
	}

	if err := r.skip(2); err != nil { // access_flags
		return ir.Class{}, fmt.Errorf("classfile: reading class access_flags: %w", err)
	}
	thisClassIdx, err := r.u2()
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: reading this_class: %w", err)
	}
	className, err := cp.className(thisClassIdx)
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: resolving this_class: %w", err)
	}

	superClassIdx, err := r.u2()
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: reading super_class: %w", err)
	}
	var superName string
	if superClassIdx != 0 {
		superName, err = cp.className(superClassIdx)
		if err != nil {
			return ir.Class{}, fmt.Errorf("classfile: resolving super_class: %w", err)
		}
	}

	interfacesCount, err := r.u2()
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: reading interfaces_count: %w", err)
	}
	interfaces := make([]string, 0, interfacesCount)
	for i := 0; i < int(interfacesCount); i++ {
		idx, err := r.u2()
		if err != nil {
			return ir.Class{}, err
		}
		name, err := cp.className(idx)
		if err != nil {
			return ir.Class{}, err
		}
		interfaces = append(interfaces, name)
	}

	fields, err := parseFields(r, cp)
	if err != nil {
		return ir.Class{}, err
	}

	methods, err := parseMethods(r, cp)
	if err != nil {
		return ir.Class{}, err
	}

	classAttrs, err := readAttributes(r, cp)
	if err != nil {
		return ir.Class{}, fmt.Errorf("classfile: reading class attributes: %w", err)
	}
	var sourceFile string
	if data, ok := findAttribute(classAttrs, "SourceFile"); ok {
		sfr := newReader(data)
		idx, err := sfr.u2()
		if err == nil {
			sourceFile, _ = cp.utf8(idx)
		}
	}
	_, isRecord := findAttribute(classAttrs, "Record")

	return ir.Class{
		Name:              className,
		SourceFile:        sourceFile,
		SuperName:         superName,
		Interfaces:        interfaces,
		ReferencedClasses: referencedClasses(cp),
		Fields:            fields,
		Methods:           methods,
		ArtifactIndex:     artifactIndex,
		IsRecord:          isRecord,
	}, nil
}

func parseFields(r *reader, cp *constantPool) ([]ir.Field, error) {
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading fields_count: %w", err)
	}
	fields := make([]ir.Field, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, fmt.Errorf("classfile: reading field attributes: %w", err)
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := cp.utf8(descIdx)
		if err != nil {
			return nil, err
		}
		_ = attrs
		fields = append(fields, ir.Field{
			Name:        name,
			Descriptor:  descriptor,
			IsStatic:    accessFlags&accStatic != 0,
			IsVolatile:  accessFlags&accVolatile != 0,
			IsSynthetic: accessFlags&accSynthetic != 0,
		})
	}
	return fields, nil
}

func parseMethods(r *reader, cp *constantPool) ([]ir.Method, error) {
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading methods_count: %w", err)
	}
	methods := make([]ir.Method, 0, count)
	for i := 0; i < int(count); i++ {
		accessFlags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, fmt.Errorf("classfile: reading method attributes: %w", err)
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := cp.utf8(descIdx)
		if err != nil {
			return nil, err
		}

		method := ir.Method{
			Name:       name,
			Descriptor: descriptor,
			Access: ir.MethodAccess{
				IsPublic:    accessFlags&accPublic != 0,
				IsStatic:    accessFlags&accStatic != 0,
				IsAbstract:  accessFlags&accAbstract != 0,
				IsSynthetic: accessFlags&accSynthetic != 0,
				IsBridge:    accessFlags&accBridge != 0,
			},
		}

		if data, ok := findAttribute(attrs, "Signature"); ok {
			sr := newReader(data)
			if idx, err := sr.u2(); err == nil {
				method.Signature, _ = cp.utf8(idx)
			}
		}

		if data, ok := findAttribute(attrs, "Code"); ok {
			code, err := parseCodeAttribute(data, cp)
			if err != nil {
				return nil, fmt.Errorf("classfile: method %s%s: %w", name, descriptor, err)
			}
			method.Bytecode = code.bytecode
			method.LineNumbers = code.lineNumbers
			method.LocalVariableTypes = code.localVariableTypes
			method.ExceptionHandlers = code.exceptionHandlers

			instructions, calls, literals, err := decodeInstructions(code.bytecode, cp)
			if err != nil {
				return nil, fmt.Errorf("classfile: method %s%s: %w", name, descriptor, err)
			}
			method.Calls = calls
			method.StringLiterals = literals
			method.CFG = buildCFG(instructions, code.bytecode, code.exceptionHandlers)
		}

		methods = append(methods, method)
	}
	return methods, nil
}

// referencedClasses collects every class name literally present in the
// constant pool, deduplicated and in constant-pool order.
func referencedClasses(cp *constantPool) []string {
	seen := map[string]bool{}
	var out []string
	for i := 1; i < len(cp.entries); i++ {
		if cp.entries[i].tag != tagClass {
			continue
		}
		name, err := cp.className(uint16(i))
		if err != nil || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
