// Package mongo implements the bookmark store on MongoDB.
//
// Bookmarks live in one collection with their language and license
// associations embedded, so every [Store.Write] is a single-document update
// and therefore atomic. Integer ids are allocated from a counters
// collection to keep them compatible with the SQLite store.
//
// Timestamps are stored as BSON dates and lose sub-millisecond precision.
package mongo
