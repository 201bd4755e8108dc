package classfile

import (
	"fmt"

	"github.com/kengotoda/inspequte/internal/ir"
)

// rawAttribute is a single attribute_info entry before interpretation:
// just its name and raw bytes.
type rawAttribute struct {
	name string
	data []byte
}

func readAttributes(r *reader, cp *constantPool) ([]rawAttribute, error) {
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading attributes_count: %w", err)
	}
	attrs := make([]rawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, fmt.Errorf("classfile: reading attribute_name_index: %w", err)
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return nil, fmt.Errorf("classfile: resolving attribute name: %w", err)
		}
		length, err := r.u4()
		if err != nil {
			return nil, fmt.Errorf("classfile: reading attribute_length for %q: %w", name, err)
		}
		data, err := r.bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("classfile: reading attribute body for %q: %w", name, err)
		}
		attrs = append(attrs, rawAttribute{name: name, data: data})
	}
	return attrs, nil
}

func findAttribute(attrs []rawAttribute, name string) ([]byte, bool) {
	for _, a := range attrs {
		if a.name == name {
			return a.data, true
		}
	}
	return nil, false
}

// parsedCode is the decoded Code attribute of a single method.
type parsedCode struct {
	bytecode           []byte
	lineNumbers        []ir.LineEntry
	localVariableTypes []ir.LocalVariableType
	exceptionHandlers  []ir.ExceptionHandler
}

func parseCodeAttribute(data []byte, cp *constantPool) (parsedCode, error) {
	r := newReader(data)
	if err := r.skip(2); err != nil { // max_stack
		return parsedCode{}, err
	}
	if err := r.skip(2); err != nil { // max_locals
		return parsedCode{}, err
	}
	codeLength, err := r.u4()
	if err != nil {
		return parsedCode{}, fmt.Errorf("classfile: reading code_length: %w", err)
	}
	bytecode, err := r.bytes(int(codeLength))
	if err != nil {
		return parsedCode{}, fmt.Errorf("classfile: reading code: %w", err)
	}

	handlers, err := parseExceptionTable(r, cp)
	if err != nil {
		return parsedCode{}, err
	}

	attrs, err := readAttributes(r, cp)
	if err != nil {
		return parsedCode{}, fmt.Errorf("classfile: reading Code attributes: %w", err)
	}

	var lines []ir.LineEntry
	if data, ok := findAttribute(attrs, "LineNumberTable"); ok {
		lines, err = parseLineNumberTable(data)
		if err != nil {
			return parsedCode{}, err
		}
	}

	var localTypes []ir.LocalVariableType
	if data, ok := findAttribute(attrs, "LocalVariableTypeTable"); ok {
		localTypes, err = parseLocalVariableTypeTable(data, cp)
		if err != nil {
			return parsedCode{}, err
		}
	}

	return parsedCode{
		bytecode:           bytecode,
		lineNumbers:        lines,
		localVariableTypes: localTypes,
		exceptionHandlers:  handlers,
	}, nil
}

func parseExceptionTable(r *reader, cp *constantPool) ([]ir.ExceptionHandler, error) {
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading exception_table_length: %w", err)
	}
	handlers := make([]ir.ExceptionHandler, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		endPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		catchTypeIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		var caught string
		if catchTypeIdx != 0 {
			caught, err = cp.className(catchTypeIdx)
			if err != nil {
				return nil, fmt.Errorf("classfile: resolving catch_type: %w", err)
			}
		}
		handlers = append(handlers, ir.ExceptionHandler{
			StartPC:    uint32(startPC),
			EndPC:      uint32(endPC),
			HandlerPC:  uint32(handlerPC),
			CaughtType: caught,
		})
	}
	return handlers, nil
}

func parseLineNumberTable(data []byte) ([]ir.LineEntry, error) {
	r := newReader(data)
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading line_number_table_length: %w", err)
	}
	entries := make([]ir.LineEntry, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		line, err := r.u2()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ir.LineEntry{StartPC: uint32(startPC), Line: int(line)})
	}
	return entries, nil
}

func parseLocalVariableTypeTable(data []byte, cp *constantPool) ([]ir.LocalVariableType, error) {
	r := newReader(data)
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading local_variable_type_table_length: %w", err)
	}
	entries := make([]ir.LocalVariableType, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		length, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		sigIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		index, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		signature, err := cp.utf8(sigIdx)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ir.LocalVariableType{
			StartPC:    uint32(startPC),
			Length:     uint32(length),
			Name:       name,
			Signature:  signature,
			LocalIndex: int(index),
		})
	}
	return entries, nil
}

func parseExceptionsAttribute(data []byte, cp *constantPool) ([]string, error) {
	r := newReader(data)
	count, err := r.u2()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading number_of_exceptions: %w", err)
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.className(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}
