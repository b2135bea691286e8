// Package accrs implements the core of an adaptive compressed-cache
// replacement strategy: a two-tier in-memory buffer cache.
//
// Hot pages live uncompressed in the "raw" tier. When memory pressure forces
// a page out of the raw tier it is not discarded; a clock sweep compresses it
// and migrates it into the "comp" tier. A later lookup for such a page
// decompresses it and promotes it back, avoiding a disk re-read. The two
// tiers share a single memory budget split by a ratio that can be rebalanced
// at runtime.
//
// The raw tier is approximately LRU (clock sweep over a decaying popularity
// counter) and the comp tier is approximately FIFO (generations stamped per
// sweep, evicted lowest-generation first).
//
// Most callers should use the [github.com/quay/accrs/libcache] package, which
// assembles a tier pair and exposes a small method set. This package is the
// data model and the machinery: [Buffer], [List], and [CacheContext].
package accrs
