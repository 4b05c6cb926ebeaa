// Package classfile builds and serializes target class files: a
// deduplicating constant pool, field/method tables and attribute blobs,
// written big-endian in the classic layout.
package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
)

const (
	Magic        = 0xCAFEBABE
	MajorVersion = 52 // first LTS target the runtime supports
	MinorVersion = 0
)

// Access flags for classes, fields and methods.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccVarargs   = 0x0080
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
)

// ClassFile is one class ready for serialization. Indices reference the
// attached constant pool.
type ClassFile struct {
	Pool        *Pool
	AccessFlags uint16
	ThisClass   uint16
	SuperClass  uint16
	Interfaces  []uint16
	Fields      []Field
	Methods     []Method
	Attributes  []Attribute
}

// Field is one field_info record.
type Field struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// Method is one method_info record.
type Method struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []Attribute
}

// Attribute is a named blob; Code, InnerClasses and the rest all share
// this shape on the wire.
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// New starts a class file with a fresh pool and the usual access flags.
func New() *ClassFile {
	return &ClassFile{
		Pool:        NewPool(),
		AccessFlags: AccPublic | AccSuper,
	}
}

// Write serializes the class file. The pool must be complete: everything
// referenced by index has to be interned before calling Write.
func (cf *ClassFile) Write(w io.Writer) error {
	if err := cf.Pool.Err(); err != nil {
		return err
	}
	be := func(v any) error { return binary.Write(w, binary.BigEndian, v) }

	if err := be(uint32(Magic)); err != nil {
		return err
	}
	if err := be(uint16(MinorVersion)); err != nil {
		return err
	}
	if err := be(uint16(MajorVersion)); err != nil {
		return err
	}
	if err := cf.Pool.write(w); err != nil {
		return err
	}
	if err := be(cf.AccessFlags); err != nil {
		return err
	}
	if err := be(cf.ThisClass); err != nil {
		return err
	}
	if err := be(cf.SuperClass); err != nil {
		return err
	}
	if err := be(uint16(len(cf.Interfaces))); err != nil {
		return err
	}
	for _, iface := range cf.Interfaces {
		if err := be(iface); err != nil {
			return err
		}
	}
	if err := be(uint16(len(cf.Fields))); err != nil {
		return err
	}
	for i := range cf.Fields {
		f := &cf.Fields[i]
		if err := be(f.AccessFlags); err != nil {
			return err
		}
		if err := be(f.NameIndex); err != nil {
			return err
		}
		if err := be(f.DescriptorIndex); err != nil {
			return err
		}
		if err := writeAttributes(w, f.Attributes); err != nil {
			return err
		}
	}
	if err := be(uint16(len(cf.Methods))); err != nil {
		return err
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if err := be(m.AccessFlags); err != nil {
			return err
		}
		if err := be(m.NameIndex); err != nil {
			return err
		}
		if err := be(m.DescriptorIndex); err != nil {
			return err
		}
		if err := writeAttributes(w, m.Attributes); err != nil {
			return err
		}
	}
	return writeAttributes(w, cf.Attributes)
}

// Bytes serializes into a fresh buffer.
func (cf *ClassFile) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := cf.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeAttributes(w io.Writer, attrs []Attribute) error {
	if err := binary.Write(w, binary.BigEndian, uint16(len(attrs))); err != nil {
		return err
	}
	for i := range attrs {
		if err := binary.Write(w, binary.BigEndian, attrs[i].NameIndex); err != nil {
			return err
		}
		if err := binary.Write(w, binary.BigEndian, uint32(len(attrs[i].Info))); err != nil {
			return err
		}
		if _, err := w.Write(attrs[i].Info); err != nil {
			return err
		}
	}
	return nil
}
