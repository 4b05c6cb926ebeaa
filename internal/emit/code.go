package emit

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"lumen/internal/types"
)

// slotKind is the verification category of one operand stack entry. Wide
// kinds count as two units toward the frame's stack depth.
type slotKind uint8

const (
	slotInt slotKind = iota
	slotLong
	slotDouble
	slotRef
)

func (s slotKind) units() int {
	if s == slotLong || s == slotDouble {
		return 2
	}
	return 1
}

func (s slotKind) String() string {
	switch s {
	case slotInt:
		return "int"
	case slotLong:
		return "long"
	case slotDouble:
		return "double"
	case slotRef:
		return "ref"
	}
	return "?"
}

// kindOf maps a checked type to its stack category. Unit has no slot.
func kindOf(reg *types.Registry, id types.TypeID) (slotKind, bool) {
	b := reg.Builtins()
	switch id {
	case b.Int, b.Bool:
		return slotInt, true
	case b.Long:
		return slotLong, true
	case b.Double:
		return slotDouble, true
	case b.Unit:
		return 0, false
	}
	return slotRef, true
}

// Label marks a join point in the instruction stream.
type Label int

type fixup struct {
	op    int // opcode position, branch offsets are relative to it
	label Label
}

// Code assembles one method body. It tracks the operand stack shape as it
// goes; every jump records the shape it carries to its target, and binding
// a label checks all carried shapes agree. A disagreement is a lowering
// bug, latched and surfaced by Err.
type Code struct {
	buf      []byte
	stack    []slotKind
	depth    int // current depth in units
	maxDepth int

	nextLabel Label
	bound     map[Label]int
	joins     map[Label][]slotKind
	fixups    []fixup

	// dead marks the point after an unconditional transfer; the next
	// bound label revives the stream with the shape its jumps carried.
	dead bool
	err  error
}

func NewCode() *Code {
	return &Code{
		bound: make(map[Label]int),
		joins: make(map[Label][]slotKind),
	}
}

// Err reports the first latched shape or range violation.
func (c *Code) Err() error { return c.err }

// MaxStack is the peak operand depth in units.
func (c *Code) MaxStack() int { return c.maxDepth }

func (c *Code) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

// Push records a value entering the stack.
func (c *Code) Push(k slotKind) {
	c.stack = append(c.stack, k)
	c.depth += k.units()
	if c.depth > c.maxDepth {
		c.maxDepth = c.depth
	}
}

// Pop records a value leaving the stack and returns its kind.
func (c *Code) Pop() slotKind {
	if len(c.stack) == 0 {
		c.fail("operand stack underflow at pc %d", len(c.buf))
		return slotInt
	}
	k := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.depth -= k.units()
	return k
}

func (c *Code) snapshot() []slotKind {
	cp := make([]slotKind, len(c.stack))
	copy(cp, c.stack)
	return cp
}

// Op appends a bare opcode.
func (c *Code) Op(op byte) {
	c.buf = append(c.buf, op)
}

// Op1 appends an opcode with one operand byte.
func (c *Code) Op1(op, operand byte) {
	c.buf = append(c.buf, op, operand)
}

// Op2 appends an opcode with a 16-bit operand.
func (c *Code) Op2(op byte, operand uint16) {
	c.buf = append(c.buf, op, byte(operand>>8), byte(operand))
}

// NewLabel allocates an unbound label.
func (c *Code) NewLabel() Label {
	c.nextLabel++
	return c.nextLabel
}

// Jump emits a branch to a label, recording the stack shape the edge
// carries. An unconditional goto kills the fallthrough path.
func (c *Code) Jump(op byte, l Label) {
	c.recordJoin(l)
	pos := len(c.buf)
	c.Op2(op, 0) // patched by Finish
	c.fixups = append(c.fixups, fixup{op: pos, label: l})
	if op == opGoto {
		c.dead = true
	}
}

// Bind places a label at the current position and reconciles the shapes
// arriving here.
func (c *Code) Bind(l Label) {
	if _, ok := c.bound[l]; ok {
		c.fail("label %d bound twice", l)
		return
	}
	c.bound[l] = len(c.buf)
	join, seen := c.joins[l]
	if c.dead {
		// only the jumped-in shape survives
		if seen {
			c.stack = append(c.stack[:0], join...)
			c.depth = 0
			for _, k := range c.stack {
				c.depth += k.units()
			}
		}
		c.dead = false
		return
	}
	if seen && !sameShape(c.stack, join) {
		c.fail("stack shape mismatch at join: fallthrough %v, jump %v", c.stack, join)
	}
	if !seen {
		// fix the shape here so backward branches can be validated
		c.joins[l] = c.snapshot()
	}
}

func (c *Code) recordJoin(l Label) {
	if prev, ok := c.joins[l]; ok {
		if !sameShape(prev, c.stack) {
			c.fail("stack shape mismatch at join: %v vs %v", prev, c.stack)
		}
		return
	}
	c.joins[l] = c.snapshot()
}

// Load emits the load instruction for a local slot and pushes its kind.
func (c *Code) Load(k slotKind, slot int) {
	if slot > 0xFF {
		c.fail("local slot %d exceeds single-byte addressing", slot)
		return
	}
	var op byte
	switch k {
	case slotInt:
		op = opIload
	case slotLong:
		op = opLload
	case slotDouble:
		op = opDload
	default:
		op = opAload
	}
	c.Op1(op, byte(slot))
	c.Push(k)
}

// Store emits the store instruction for a local slot, popping the value.
func (c *Code) Store(k slotKind, slot int) {
	if slot > 0xFF {
		c.fail("local slot %d exceeds single-byte addressing", slot)
		return
	}
	var op byte
	switch k {
	case slotInt:
		op = opIstore
	case slotLong:
		op = opLstore
	case slotDouble:
		op = opDstore
	default:
		op = opAstore
	}
	c.Op1(op, byte(slot))
	c.Pop()
}

// MarkDead declares the following code unreachable (after return/throw).
func (c *Code) MarkDead() {
	c.dead = true
	c.stack = c.stack[:0]
	c.depth = 0
}

// Finish patches every branch and returns the instruction stream.
func (c *Code) Finish() ([]byte, error) {
	for _, f := range c.fixups {
		target, ok := c.bound[f.label]
		if !ok {
			c.fail("branch to unbound label %d", f.label)
			break
		}
		off, err := safecast.Conv[int16](target - f.op)
		if err != nil {
			c.fail("branch offset %d exceeds 16-bit range", target-f.op)
			break
		}
		binary.BigEndian.PutUint16(c.buf[f.op+1:], uint16(off))
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.buf, nil
}

func sameShape(a, b []slotKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
