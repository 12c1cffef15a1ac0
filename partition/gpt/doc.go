// Package gpt reads GUID Partition Tables.
//
// It is the read-only side of the tooling: it parses and validates the primary
// header and partition array of an existing GPT, resolves partitions by name or
// index, and checks that the backup header and backup array agree with the
// primary copy. It never writes to the device; see the fixup package for that.
package gpt
