// Package watcher keeps a document store in step with an inbox directory.
//
// Files dropped into the inbox are uploaded, rewritten files replace their
// earlier upload, and removed files delete it. fsnotify supplies the raw
// events; a debouncer coalesces the bursts editors and copy tools produce
// before anything reaches the store.
//
// Usage:
//
//	inbox, err := watcher.NewInbox(dir, ingester, docStore, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	return inbox.Run(ctx) // blocks until ctx is cancelled
package watcher
