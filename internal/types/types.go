package types

import (
	"fmt"
	"time"
)

// Common system-wide constants
const (
	// File size limits
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB per source unit
	// Rationale: Prevents memory exhaustion from generated
	// files while covering effectively all hand-written C# sources.

	// DefaultDebounce is the quiescence window after which buffered
	// file changes are flushed as a single batch.
	DefaultDebounce = 1 * time.Second

	// DefaultRetryBackoff is the pause between optimistic-concurrency
	// retries when a snapshot swap loses a race.
	DefaultRetryBackoff = 50 * time.Millisecond
)

// ProjectID identifies one project within a workspace snapshot.
type ProjectID uint32

// UnitID identifies one source unit within a workspace snapshot.
// IDs are stable across incremental updates of the same unit but are
// reassigned on full reloads.
type UnitID uint32

// SymbolID identifies a declared symbol within a snapshot generation.
type SymbolID uint64

// SymbolKind classifies a declared symbol.
type SymbolKind uint8

const (
	KindUnknown SymbolKind = iota
	KindNamespace
	KindClass
	KindInterface
	KindStruct
	KindRecord
	KindEnum
	KindMethod
	KindConstructor
	KindProperty
	KindField
	KindEvent
	KindDelegate
)

func (k SymbolKind) String() string {
	switch k {
	case KindNamespace:
		return "namespace"
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindStruct:
		return "struct"
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindProperty:
		return "property"
	case KindField:
		return "field"
	case KindEvent:
		return "event"
	case KindDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// SymbolRef is a resolvable handle to one declared symbol: the value stored
// in the symbol index and returned from searches. A name may map to many
// refs (overloads, partial types, same name across projects).
type SymbolRef struct {
	ID      SymbolID
	Name    string
	Kind    SymbolKind
	Project ProjectID
	Unit    UnitID
	Path    string
	Line    int // 1-based
	Column  int // 1-based
}

func (r SymbolRef) String() string {
	return fmt.Sprintf("%s %s (%s:%d:%d)", r.Kind, r.Name, r.Path, r.Line, r.Column)
}
