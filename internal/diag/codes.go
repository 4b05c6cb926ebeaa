package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// I/O и входные блобы
	IOLoadError   Code = 1001
	IODecodeError Code = 1002

	// Символы и импорты
	SemInfo                 Code = 3000
	SemUnresolvedType       Code = 3001
	SemUnresolvedSymbol     Code = 3002
	SemDuplicateDeclaration Code = 3003
	SemAmbiguousImport      Code = 3004

	// Типизация и вызовы
	SemTypeMismatch        Code = 3100
	SemAmbiguousCall       Code = 3101
	SemNoApplicableOverload Code = 3102
	SemUnknownField        Code = 3103
	SemNotAssignable       Code = 3104
	SemBadOperandTypes     Code = 3105
	SemConditionNotBool    Code = 3106

	// Лоуэринг паттернов и захватов
	LowNonExhaustiveMatch    Code = 4001
	LowRedundantArm          Code = 4002
	LowInvalidCaptureContext Code = 4003
	LowBadPattern            Code = 4004
	LowGuardNotBool          Code = 4005

	// Эмиттер
	EmitInternalLowering Code = 5001
	EmitUnitTooLarge     Code = 5002
)

func (c Code) String() string {
	return fmt.Sprintf("LUM%04d", uint16(c))
}

// Name returns the stable mnemonic for the code, used in golden output
// and by external consumers that match on diagnostics.
func (c Code) Name() string {
	switch c {
	case IOLoadError:
		return "LoadError"
	case IODecodeError:
		return "DecodeError"
	case SemUnresolvedType:
		return "UnresolvedType"
	case SemUnresolvedSymbol:
		return "UnresolvedSymbol"
	case SemDuplicateDeclaration:
		return "DuplicateDeclaration"
	case SemAmbiguousImport:
		return "AmbiguousImport"
	case SemTypeMismatch:
		return "TypeMismatch"
	case SemAmbiguousCall:
		return "AmbiguousCall"
	case SemNoApplicableOverload:
		return "NoApplicableOverload"
	case SemUnknownField:
		return "UnknownField"
	case SemNotAssignable:
		return "NotAssignable"
	case SemBadOperandTypes:
		return "BadOperandTypes"
	case SemConditionNotBool:
		return "ConditionNotBool"
	case LowNonExhaustiveMatch:
		return "NonExhaustiveMatch"
	case LowRedundantArm:
		return "RedundantArm"
	case LowInvalidCaptureContext:
		return "InvalidCaptureContext"
	case LowBadPattern:
		return "BadPattern"
	case LowGuardNotBool:
		return "GuardNotBool"
	case EmitInternalLowering:
		return "InternalLoweringError"
	case EmitUnitTooLarge:
		return "UnitTooLarge"
	}
	return "Unknown"
}
