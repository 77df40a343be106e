// Package session orchestrates detection, boundary editing and persistence
// for one document at a time.
//
// A Session is the single owner of a document's in-memory chunk set. Edits
// run synchronously under its lock; every successful edit marks the session
// dirty and arms a debounced autosave, so a burst of edits produces one
// draft write after the quiet interval. Manual save and finalize cancel any
// pending autosave before writing, and a failed write leaves the set in
// memory and dirty so the next attempt can retry. Version numbers come from
// the storage layer and only ever increase; concurrent sessions on the same
// document are not coordinated beyond last write wins.
//
// The Manager caches sessions in an LRU keyed by document id. Evicted or
// dropped sessions flush unsaved edits on the way out.
package session
