package classfile

import (
	"bytes"
	"encoding/binary"
)

// CodeAttr assembles a Code attribute: stack and frame sizes, the
// instruction stream, an empty exception table and no nested attributes.
func CodeAttr(p *Pool, maxStack, maxLocals uint16, code []byte) Attribute {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, maxStack)
	binary.Write(&buf, binary.BigEndian, maxLocals)
	binary.Write(&buf, binary.BigEndian, uint32(len(code)))
	buf.Write(code)
	binary.Write(&buf, binary.BigEndian, uint16(0)) // exception table
	binary.Write(&buf, binary.BigEndian, uint16(0)) // attributes
	return Attribute{NameIndex: p.Utf8("Code"), Info: buf.Bytes()}
}

// InnerClassesAttr records synthetic member classes so tooling can tie
// helpers back to their owner.
type InnerClassRef struct {
	Inner, Outer string // internal names
	SimpleName   string
	AccessFlags  uint16
}

func InnerClassesAttr(p *Pool, refs []InnerClassRef) Attribute {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(refs)))
	for _, ref := range refs {
		binary.Write(&buf, binary.BigEndian, p.Class(ref.Inner))
		binary.Write(&buf, binary.BigEndian, p.Class(ref.Outer))
		binary.Write(&buf, binary.BigEndian, p.Utf8(ref.SimpleName))
		binary.Write(&buf, binary.BigEndian, ref.AccessFlags)
	}
	return Attribute{NameIndex: p.Utf8("InnerClasses"), Info: buf.Bytes()}
}

// SourceFileAttr names the originating unit for stack traces.
func SourceFileAttr(p *Pool, file string) Attribute {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, p.Utf8(file))
	return Attribute{NameIndex: p.Utf8("SourceFile"), Info: buf.Bytes()}
}
