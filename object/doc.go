// Package object implements the reference counted values stored in the
// keyspace.
//
// Every value kind knows how much work releasing it costs (FreeEffort) and
// how to release itself. The estimate is proportional to the number of
// allocations the value is made of, not to the number of logical entries:
// a list reports its node count, a stream its macro node count, and any
// compact encoding reports a single allocation.
//
//	set := object.NewSet()
//	set.Add("a", "b", "c")
//	obj := object.New(set)
//	obj.FreeEffort("key", 0) // 1, still listpack encoded
package object
