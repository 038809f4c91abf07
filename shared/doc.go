// Package shared provides the state shared by every instance
// of one coprocessor class on a server.
//
// Each class gets exactly one Data map for the life of the
// process, no matter how many regions load the class. Entries
// are never evicted: a class that caches per-key state here is
// responsible for bounding it.
package shared
