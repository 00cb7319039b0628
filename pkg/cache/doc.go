// Package cache keeps a bounded map of [Entry] values, keyed by door ID, device UID or credential
// ID, that can be written to and read back from disk as JSON.
//
// A [Cache] exported with [Cache.Export] or [Cache.ExportToFile] stores credentials in the clear,
// so access controls should be used to prevent third parties from reading or tampering with the
// data.
package cache
