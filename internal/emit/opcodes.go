package emit

// Instruction opcodes, classic mnemonics.
const (
	opNop          = 0x00
	opAconstNull   = 0x01
	opIconstM1     = 0x02
	opIconst0      = 0x03
	opIconst1      = 0x04
	opIconst2      = 0x05
	opIconst3      = 0x06
	opIconst4      = 0x07
	opIconst5      = 0x08
	opLconst0      = 0x09
	opLconst1      = 0x0A
	opDconst0      = 0x0E
	opDconst1      = 0x0F
	opBipush       = 0x10
	opSipush       = 0x11
	opLdc          = 0x12
	opLdcW         = 0x13
	opLdc2W        = 0x14
	opIload        = 0x15
	opLload        = 0x16
	opDload        = 0x18
	opAload        = 0x19
	opAaload       = 0x32
	opIstore       = 0x36
	opLstore       = 0x37
	opDstore       = 0x39
	opAstore       = 0x3A
	opIastore      = 0x4F
	opLastore      = 0x50
	opDastore      = 0x52
	opAastore      = 0x53
	opBastore      = 0x54
	opPop          = 0x57
	opPop2         = 0x58
	opDup          = 0x59
	opIadd         = 0x60
	opLadd         = 0x61
	opDadd         = 0x63
	opIsub         = 0x64
	opLsub         = 0x65
	opDsub         = 0x67
	opImul         = 0x68
	opLmul         = 0x69
	opDmul         = 0x6B
	opIdiv         = 0x6C
	opLdiv         = 0x6D
	opDdiv         = 0x6F
	opIrem         = 0x70
	opLrem         = 0x71
	opDrem         = 0x73
	opIneg         = 0x74
	opLneg         = 0x75
	opDneg         = 0x77
	opI2l          = 0x85
	opI2d          = 0x87
	opL2d          = 0x8A
	opLcmp         = 0x94
	opDcmpl        = 0x97
	opIfeq         = 0x99
	opIfne         = 0x9A
	opIflt         = 0x9B
	opIfge         = 0x9C
	opIfgt         = 0x9D
	opIfle         = 0x9E
	opIfIcmpeq     = 0x9F
	opIfIcmpne     = 0xA0
	opIfIcmplt     = 0xA1
	opIfIcmpge     = 0xA2
	opIfIcmpgt     = 0xA3
	opIfIcmple     = 0xA4
	opIfAcmpeq     = 0xA5
	opIfAcmpne     = 0xA6
	opGoto         = 0xA7
	opIreturn      = 0xAC
	opLreturn      = 0xAD
	opDreturn      = 0xAF
	opAreturn      = 0xB0
	opReturn       = 0xB1
	opGetstatic    = 0xB2
	opPutstatic    = 0xB3
	opGetfield     = 0xB4
	opPutfield     = 0xB5
	opInvvirtual   = 0xB6
	opInvspecial   = 0xB7
	opInvstatic    = 0xB8
	opInvinterface = 0xB9
	opNew          = 0xBB
	opNewarray     = 0xBC
	opAnewarray    = 0xBD
	opAthrow       = 0xBF
	opCheckcast    = 0xC0
	opInstanceof   = 0xC1
)
