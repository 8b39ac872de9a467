// Package leafsearch implements the leaf search execution engine of a
// distributed log/metric search system: given a search request fanned out
// from a root node and a catalog of immutable remote index splits, it opens
// the splits it needs, rewrites and prunes the request per split, prefetches
// exactly the bytes a query will touch, executes the query, and streams the
// per-split responses into a single merged partial result.
//
// The on-disk inverted index format, the remote blob store's transport, and
// root-level scatter/gather are external collaborators; this package
// consumes them through the interfaces in the index and storage
// subpackages.
package leafsearch
