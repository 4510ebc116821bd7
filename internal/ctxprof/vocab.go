// Package ctxprof decodes contextual instrumentation profiles: counters
// attached to a call-context tree, stored in a bitstream container.
package ctxprof

import "fmt"

// Magic is the literal that opens every container.
const Magic = "CTXP"

// CurrentVersion is the highest container version this reader understands.
const CurrentVersion uint64 = 4

// BlockID identifies a block in the container. IDs below FirstValid are
// reserved by the bitstream format itself.
type BlockID uint32

const (
	FirstValid BlockID = 8

	MetadataBlockID            BlockID = FirstValid
	ContextsSectionBlockID     BlockID = FirstValid + 1
	ContextRootBlockID         BlockID = FirstValid + 2
	ContextNodeBlockID         BlockID = FirstValid + 3
	FlatProfilesSectionBlockID BlockID = FirstValid + 4
	FlatProfileBlockID         BlockID = FirstValid + 5
	UnhandledBlockID           BlockID = FirstValid + 6

	LastValid BlockID = UnhandledBlockID
)

// Known reports whether id is one of the container's block IDs. Anything
// else is not an error by itself; callers decide whether to skip it.
func (id BlockID) Known() bool {
	return id >= FirstValid && id <= LastValid
}

func (id BlockID) String() string {
	switch id {
	case MetadataBlockID:
		return "Metadata"
	case ContextsSectionBlockID:
		return "ContextsSection"
	case ContextRootBlockID:
		return "ContextRoot"
	case ContextNodeBlockID:
		return "ContextNode"
	case FlatProfilesSectionBlockID:
		return "FlatProfilesSection"
	case FlatProfileBlockID:
		return "FlatProfile"
	case UnhandledBlockID:
		return "Unhandled"
	default:
		return fmt.Sprintf("Block(%d)", uint32(id))
	}
}

// RecordKind is the code of a record.
type RecordKind uint32

const (
	RecordInvalid RecordKind = iota
	RecordVersion
	RecordGUID
	RecordCallsiteIndex
	RecordCounters
	RecordTotalRootEntryCount
)

// Known reports whether k is a record code this reader understands.
func (k RecordKind) Known() bool {
	return k >= RecordVersion && k <= RecordTotalRootEntryCount
}

func (k RecordKind) String() string {
	switch k {
	case RecordVersion:
		return "Version"
	case RecordGUID:
		return "Guid"
	case RecordCallsiteIndex:
		return "CallsiteIndex"
	case RecordCounters:
		return "Counters"
	case RecordTotalRootEntryCount:
		return "TotalRootEntryCount"
	default:
		return fmt.Sprintf("Record(%d)", uint32(k))
	}
}

// Kind is the logical kind of a context block being decoded.
type Kind int

const (
	KindRoot Kind = iota
	KindNode
	KindFlat
)

func (k Kind) blockID() BlockID {
	switch k {
	case KindRoot:
		return ContextRootBlockID
	case KindNode:
		return ContextNodeBlockID
	default:
		return FlatProfileBlockID
	}
}

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root context"
	case KindNode:
		return "context node"
	case KindFlat:
		return "flat profile"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
