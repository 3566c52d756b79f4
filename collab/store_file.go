package collab

import (
	"fmt"
	"os"
	"path/filepath"
)

// document persistence. The on-disk format is the full op log, which a
// replica replays on load; the blob is opaque to everything outside this
// package.

var storeLog = LogFn(LogLevelDebug, "store")

func DefaultStoragePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		dataDir = filepath.Join(homeDir, ".local/share")
	}
	return filepath.Join(dataDir, "meshdraw", "document.meshdoc")
}

func (self *Document) SaveBytes() []byte {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return EncodeDocumentOps(self.store.AllOps())
}

// Save writes to the document's storage path. A document with no storage
// path saves nowhere, mirroring an unnamed scratch document.
func (self *Document) Save() error {
	self.stateLock.Lock()
	path := self.storagePath
	self.stateLock.Unlock()
	if path == "" {
		return nil
	}
	return self.SaveTo(path)
}

func (self *Document) SaveTo(path string) error {
	data := self.SaveBytes()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create document dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	self.stateLock.Lock()
	self.storagePath = path
	self.dirty = false
	self.stateLock.Unlock()
	storeLog("saved %d bytes to %s", len(data), path)
	return nil
}

func LoadDocumentBytes(data []byte) (*Document, error) {
	ops, err := DecodeDocumentOps(data)
	if err != nil {
		return nil, err
	}
	return newDocumentFromOps(ops)
}

func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	document, err := LoadDocumentBytes(data)
	if err != nil {
		return nil, err
	}
	document.storagePath = path
	return document, nil
}
