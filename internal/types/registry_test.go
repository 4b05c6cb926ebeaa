package types

import "testing"

func TestDescriptors(t *testing.T) {
	r := NewRegistry()
	b := r.Builtins()

	tests := []struct {
		name string
		id   TypeID
		want string
	}{
		{"int", b.Int, "I"},
		{"long", b.Long, "J"},
		{"double", b.Double, "D"},
		{"bool", b.Bool, "Z"},
		{"unit", b.Unit, "V"},
		{"string", b.String, "Ljava/lang/String;"},
		{"deferred", b.Deferred, "Llumen/rt/Deferred;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Descriptor(tt.id); got != tt.want {
				t.Fatalf("Descriptor = %q, want %q", got, tt.want)
			}
		})
	}

	arr := r.RegisterArray(b.Int)
	if got := r.Descriptor(arr); got != "[I" {
		t.Fatalf("array descriptor = %q", got)
	}
	if got := r.MethodDescriptor([]TypeID{b.Int, b.String}, b.Long); got != "(ILjava/lang/String;)J" {
		t.Fatalf("method descriptor = %q", got)
	}
}

func TestClassInterningDedups(t *testing.T) {
	r := NewRegistry()
	a := r.RegisterClass("demo.Shape")
	b := r.RegisterClass("demo.Shape")
	if a != b {
		t.Fatalf("same qualified name interned twice: %d vs %d", a, b)
	}
	if r.InternalName(a) != "demo/Shape" {
		t.Fatalf("internal name = %q", r.InternalName(a))
	}
}

func TestWideningMatrix(t *testing.T) {
	r := NewRegistry()
	b := r.Builtins()
	cases := []struct {
		from, to TypeID
		ok       bool
	}{
		{b.Int, b.Long, true},
		{b.Int, b.Double, true},
		{b.Long, b.Double, true},
		{b.Long, b.Int, false},
		{b.Double, b.Long, false},
		{b.Bool, b.Int, false},
	}
	for _, c := range cases {
		if got := r.CanWiden(c.from, c.to); got != c.ok {
			t.Fatalf("CanWiden(%s, %s) = %v, want %v", r.String(c.from), r.String(c.to), got, c.ok)
		}
	}
}

func TestBoxingPairs(t *testing.T) {
	r := NewRegistry()
	b := r.Builtins()
	boxed, ok := r.Boxed(b.Int)
	if !ok || boxed != b.BoxedInt {
		t.Fatalf("Boxed(Int) = %d, %v", boxed, ok)
	}
	prim, ok := r.Unboxed(b.BoxedDbl)
	if !ok || prim != b.Double {
		t.Fatalf("Unboxed(Double box) = %d, %v", prim, ok)
	}
	if _, ok := r.Boxed(b.String); ok {
		t.Fatal("String must not box")
	}
}

func TestSubtyping(t *testing.T) {
	r := NewRegistry()
	b := r.Builtins()
	base := r.RegisterClass("demo.Shape")
	variant := r.RegisterClass("demo.Shape$Circle")
	r.SetSuper(variant, base)

	if !r.IsSubtype(variant, base) {
		t.Fatal("variant must be subtype of its sum base")
	}
	if !r.IsSubtype(variant, b.Object) {
		t.Fatal("reference types are subtypes of the universal base")
	}
	if r.IsSubtype(base, variant) {
		t.Fatal("subtyping is not symmetric")
	}
	if r.IsSubtype(b.Int, b.Long) {
		t.Fatal("primitives only subtype themselves")
	}
}

func TestWidths(t *testing.T) {
	r := NewRegistry()
	b := r.Builtins()
	if r.Get(b.Long).Width() != 2 || r.Get(b.Double).Width() != 2 {
		t.Fatal("wide primitives must take two slots")
	}
	if r.Get(b.Int).Width() != 1 || r.Get(b.String).Width() != 1 {
		t.Fatal("narrow types must take one slot")
	}
	if r.Get(b.Unit).Width() != 0 {
		t.Fatal("unit occupies no slot")
	}
}
