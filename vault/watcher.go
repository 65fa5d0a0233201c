package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch keeps the cache in step with document files changed by other
// processes (an editor, git checkout, a sync tool) until ctx is done.
// A file whose version is older than the cached copy is ignored, so the
// client's own atomic writes never roll the cache back.
func (c *Client) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch vault: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				c.handleEvent(ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.logger.Warn("vault watcher error", "error", err)
			}
		}
	}()
	c.logger.Debug("watching vault", "dir", c.dir)
	return nil
}

// handleEvent applies one file system event to the cache.
func (c *Client) handleEvent(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
		return
	}
	id := strings.TrimSuffix(name, docExt)

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if _, err := os.Stat(ev.Name); errors.Is(err, os.ErrNotExist) {
			c.forget(id)
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		c.refresh(id, ev.Name)
	}
}

// refresh re-reads one document file unless the cache already holds the same
// or a newer version.
func (c *Client) refresh(id, path string) {
	doc, err := readDocument(path)
	if err != nil {
		// Partially written files show up as decode errors; the final
		// write triggers another event.
		c.logger.Debug("skipping unreadable document", "file", filepath.Base(path), "error", err)
		return
	}
	if doc.ID == "" {
		doc.ID = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.docs[doc.ID]; ok && cur.Version >= doc.Version {
		return
	}
	c.docs[doc.ID] = doc
	c.search.ReindexDocument(doc)
	c.logger.Info("document changed on disk", "document_id", doc.ID, "version", doc.Version)
}

// forget drops a document whose file was removed.
func (c *Client) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return
	}
	delete(c.docs, id)
	c.search.RemoveDocument(id)
	c.logger.Info("document removed on disk", "document_id", id)
}
