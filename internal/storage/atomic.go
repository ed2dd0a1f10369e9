package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
)

// writeAtomic writes data to a temp file beside path, fsyncs it, and renames
// it over path. Per spec.md §4.2: "write to temp file, fsync, rename.
// Readers that race with a writer see either the prior or new whole file."
//
// The rename+fsync pair is retried a few times with a short backoff to
// absorb transient filesystem errors (EINTR on fsync, stale-handle races on
// network filesystems) rather than surfacing a spurious write failure.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return newStorageError("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return newStorageError("create_temp", dir, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return newStorageError("write", tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return newStorageError("chmod", tmpPath, err)
	}

	err = retry.Do(
		func() error { return tmp.Sync() },
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.Context(context.Background()),
		retry.LastErrorOnly(true),
	)
	closeErr := tmp.Close()
	if err != nil {
		return newStorageError("fsync", tmpPath, err)
	}
	if closeErr != nil {
		return newStorageError("close", tmpPath, closeErr)
	}

	err = retry.Do(
		func() error { return os.Rename(tmpPath, path) },
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.Context(context.Background()),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return newStorageError("rename", path, err)
	}
	cleanup = false

	if dirf, err := os.Open(dir); err == nil {
		dirf.Sync()
		dirf.Close()
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, newStorageError("read", path, err)
	}
	return data, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newestMtime(paths ...string) time.Time {
	var latest time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}
