package object

import (
	"math"

	"go.uber.org/atomic"
)

// Type is the logical type of a value, as seen by commands.
type Type int

const (
	TypeString Type = iota
	TypeList
	TypeSet
	TypeZSet
	TypeHash
	TypeStream
	TypeModule
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	case TypeHash:
		return "hash"
	case TypeStream:
		return "stream"
	case TypeModule:
		return "module"
	default:
		return "unknown"
	}
}

// Encoding is the in-memory representation backing a value.
type Encoding int

const (
	EncodingRaw Encoding = iota
	EncodingQuicklist
	EncodingListpack
	EncodingHashTable
	EncodingSkiplist
	EncodingStream
	EncodingModule
)

func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingQuicklist:
		return "quicklist"
	case EncodingListpack:
		return "listpack"
	case EncodingHashTable:
		return "hashtable"
	case EncodingSkiplist:
		return "skiplist"
	case EncodingStream:
		return "stream"
	case EncodingModule:
		return "module"
	default:
		return "unknown"
	}
}

// UnknownEffort is reported for values whose free effort cannot be
// estimated. It is larger than any threshold.
const UnknownEffort uint64 = math.MaxUint64

// MaxListpackEntries is the entry count above which sets, hashes and sorted
// sets leave their compact encoding.
const MaxListpackEntries = 128

// Value is one of the value kinds defined in this package. The set of kinds
// is closed: external extensions go through Module.
type Value interface {
	Type() Type
	Encoding() Encoding
	// FreeEffort returns the amount of work needed to release the value,
	// proportional to the number of allocations it is made of.
	FreeEffort(key string, dbid int) uint64
	release()
}

// Object is a reference counted handle on a Value.
type Object struct {
	refcount atomic.Int32
	value    Value
}

// New wraps v in an Object owned once by the caller.
func New(v Value) *Object {
	o := &Object{value: v}
	o.refcount.Store(1)
	return o
}

func (o *Object) Value() Value {
	return o.value
}
func (o *Object) Type() Type {
	return o.value.Type()
}
func (o *Object) Encoding() Encoding {
	return o.value.Encoding()
}
func (o *Object) RefCount() int32 {
	return o.refcount.Load()
}

// Shared reports whether more than one owner holds the object.
func (o *Object) Shared() bool {
	return o.refcount.Load() > 1
}

func (o *Object) FreeEffort(key string, dbid int) uint64 {
	return o.value.FreeEffort(key, dbid)
}

// IncrRef registers a new owner and returns o.
func (o *Object) IncrRef() *Object {
	o.refcount.Inc()
	return o
}

// DecrRef drops one owner. The last owner releases the underlying value.
func (o *Object) DecrRef() {
	switch n := o.refcount.Dec(); {
	case n == 0:
		o.value.release()
	case n < 0:
		panic("object: DecrRef against refcount <= 0")
	}
}
