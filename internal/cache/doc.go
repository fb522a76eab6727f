// Package cache implements the bounded LRU cache shared by every worker.
//
// Entries are ordered by recency in a doubly linked list and indexed by a map,
// so Get, Put and Remove are O(1). One mutex guards all three; the cache is the
// single cross-worker synchronization point of the server.
package cache
