package lower

import (
	"lumen/internal/sema"
)

// SumLayout is the class shape of one declared sum type: an abstract base
// class plus one final subclass per variant. Nullary variants additionally
// get a singleton instance stored as a static field on the base.
type SumLayout struct {
	Base     *sema.Declared
	Internal string // base class internal name
	Variants []*VariantShape
}

// VariantShape is one lowered variant.
type VariantShape struct {
	Ctor     *sema.VariantCtor
	Internal string // Owner$Name
	// SingletonField names the static field on the base class holding
	// the one shared instance; empty for payload-carrying variants.
	SingletonField string
}

// ByName finds a variant shape by source name.
func (s *SumLayout) ByName(name string) *VariantShape {
	for _, v := range s.Variants {
		if v.Ctor.Name == name {
			return v
		}
	}
	return nil
}

func (m *Module) layoutSums() {
	reg := m.Res.Reg
	for _, d := range m.Res.Decls {
		if len(d.Variants) == 0 {
			continue
		}
		layout := &SumLayout{
			Base:     d,
			Internal: reg.InternalName(d.Type),
			Variants: make([]*VariantShape, 0, len(d.Variants)),
		}
		for _, ctor := range d.Variants {
			shape := &VariantShape{
				Ctor:     ctor,
				Internal: reg.InternalName(ctor.Type),
			}
			if ctor.Nullary() {
				shape.SingletonField = ctor.Name
			}
			layout.Variants = append(layout.Variants, shape)
		}
		m.Sums[d.Type] = layout
	}
}
