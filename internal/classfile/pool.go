package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags.
const (
	tagUtf8            = 1
	tagInteger         = 3
	tagFloat           = 4
	tagLong            = 5
	tagDouble          = 6
	tagClass           = 7
	tagString          = 8
	tagFieldref        = 9
	tagMethodref       = 10
	tagInterfaceMethod = 11
	tagNameAndType     = 12
)

type poolEntry struct {
	tag   uint8
	str   string // tagUtf8
	i32   int32  // tagInteger
	i64   int64  // tagLong
	f64   float64
	a, b  uint16 // index operands
	short bool   // single index operand
}

// Pool is a deduplicating constant pool. Interning methods never fail at
// the call site; an overflow past the 16-bit index space is latched and
// surfaced by Err.
type Pool struct {
	entries []poolEntry
	index   map[string]uint16
	next    int // next free index; wide entries burn two
	err     error
}

func NewPool() *Pool {
	return &Pool{index: make(map[string]uint16), next: 1}
}

// Err reports a latched overflow.
func (p *Pool) Err() error { return p.err }

// Count is the serialized constant_pool_count: highest index plus one.
func (p *Pool) Count() uint16 {
	return uint16(p.next)
}

func (p *Pool) intern(key string, e poolEntry) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	width := 1
	if e.tag == tagLong || e.tag == tagDouble {
		width = 2
	}
	if p.next+width > math.MaxUint16 {
		if p.err == nil {
			p.err = fmt.Errorf("constant pool overflow at %d entries", len(p.entries))
		}
		return 0
	}
	idx := uint16(p.next)
	p.next += width
	p.entries = append(p.entries, e)
	p.index[key] = idx
	return idx
}

// Utf8 interns a modified-UTF8 string entry. An entry past the format's
// 16-bit length prefix is latched like an index overflow, never truncated.
func (p *Pool) Utf8(s string) uint16 {
	if len(s) > math.MaxUint16 {
		if p.err == nil {
			p.err = fmt.Errorf("utf8 constant of %d bytes exceeds the format limit", len(s))
		}
		return 0
	}
	return p.intern("u:"+s, poolEntry{tag: tagUtf8, str: s})
}

// Class interns a class reference by internal name.
func (p *Pool) Class(internal string) uint16 {
	name := p.Utf8(internal)
	return p.intern("c:"+internal, poolEntry{tag: tagClass, a: name, short: true})
}

// String interns a string literal constant.
func (p *Pool) String(s string) uint16 {
	val := p.Utf8(s)
	return p.intern("s:"+s, poolEntry{tag: tagString, a: val, short: true})
}

// Int interns a 32-bit integer constant.
func (p *Pool) Int(v int32) uint16 {
	return p.intern(fmt.Sprintf("i:%d", v), poolEntry{tag: tagInteger, i32: v})
}

// Long interns a wide integer constant; it occupies two pool slots.
func (p *Pool) Long(v int64) uint16 {
	return p.intern(fmt.Sprintf("l:%d", v), poolEntry{tag: tagLong, i64: v})
}

// Double interns a wide float constant; it occupies two pool slots.
func (p *Pool) Double(v float64) uint16 {
	return p.intern(fmt.Sprintf("d:%x", math.Float64bits(v)), poolEntry{tag: tagDouble, f64: v})
}

// NameAndType interns a name/descriptor pair.
func (p *Pool) NameAndType(name, desc string) uint16 {
	n, d := p.Utf8(name), p.Utf8(desc)
	return p.intern("nt:"+name+":"+desc,
		poolEntry{tag: tagNameAndType, a: n, b: d})
}

// Methodref interns a class method reference.
func (p *Pool) Methodref(class, name, desc string) uint16 {
	c := p.Class(class)
	nt := p.NameAndType(name, desc)
	return p.intern("m:"+class+"."+name+":"+desc,
		poolEntry{tag: tagMethodref, a: c, b: nt})
}

// InterfaceMethodref interns an interface method reference.
func (p *Pool) InterfaceMethodref(class, name, desc string) uint16 {
	c := p.Class(class)
	nt := p.NameAndType(name, desc)
	return p.intern("im:"+class+"."+name+":"+desc,
		poolEntry{tag: tagInterfaceMethod, a: c, b: nt})
}

// Fieldref interns a field reference.
func (p *Pool) Fieldref(class, name, desc string) uint16 {
	c := p.Class(class)
	nt := p.NameAndType(name, desc)
	return p.intern("f:"+class+"."+name+":"+desc,
		poolEntry{tag: tagFieldref, a: c, b: nt})
}

func (p *Pool) write(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, p.Count()); err != nil {
		return err
	}
	for i := range p.entries {
		e := &p.entries[i]
		if err := binary.Write(w, binary.BigEndian, e.tag); err != nil {
			return err
		}
		var err error
		switch e.tag {
		case tagUtf8:
			if err = binary.Write(w, binary.BigEndian, uint16(len(e.str))); err == nil {
				_, err = w.Write([]byte(e.str))
			}
		case tagInteger:
			err = binary.Write(w, binary.BigEndian, e.i32)
		case tagLong:
			err = binary.Write(w, binary.BigEndian, e.i64)
		case tagDouble:
			err = binary.Write(w, binary.BigEndian, e.f64)
		default:
			if err = binary.Write(w, binary.BigEndian, e.a); err == nil && !e.short {
				err = binary.Write(w, binary.BigEndian, e.b)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}
