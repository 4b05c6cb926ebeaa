package emit

// Runtime contract: class names and descriptors the emitted code links
// against. The runtime library ships separately; the compiler only agrees
// on these shapes.
const (
	rtDeferred = "lumen/rt/Deferred"
	rtBlock    = "lumen/rt/Block"
	rtCell     = "lumen/rt/Cell"

	// static factories on Deferred
	descSpawn   = "(Llumen/rt/Block;)Llumen/rt/Deferred;"
	descWithin  = "(JLlumen/rt/Block;)Llumen/rt/Deferred;"
	descAllOf   = "([Llumen/rt/Deferred;)Llumen/rt/Deferred;"
	descFirstOf = "([Llumen/rt/Deferred;)Llumen/rt/Deferred;"

	// instance surface
	descGet = "()Ljava/lang/Object;"

	// Block is the single-method interface deferred bodies implement
	descCall = "()Ljava/lang/Object;"

	// Cell wraps one mutable captured binding
	descCellInit = "(Ljava/lang/Object;)V"
	descCellGet  = "()Ljava/lang/Object;"
	descCellSet  = "(Ljava/lang/Object;)V"
)

// boxing pairs: wrapper class, valueOf descriptor, unbox method and its
// descriptor, keyed by the primitive descriptor char
var boxTable = map[byte]struct {
	wrapper   string
	valueOf   string
	unboxName string
	unboxDesc string
}{
	'I': {"java/lang/Integer", "(I)Ljava/lang/Integer;", "intValue", "()I"},
	'J': {"java/lang/Long", "(J)Ljava/lang/Long;", "longValue", "()J"},
	'D': {"java/lang/Double", "(D)Ljava/lang/Double;", "doubleValue", "()D"},
	'Z': {"java/lang/Boolean", "(Z)Ljava/lang/Boolean;", "booleanValue", "()Z"},
}
