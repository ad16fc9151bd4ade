package watcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// eligibleExts are the invoice document types the pipeline can process.
var eligibleExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Eligible reports whether the file name has a processable extension.
// Hidden files and partial uploads (dotfiles, ~ suffixes) are skipped.
func Eligible(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return false
	}
	return eligibleExts[strings.ToLower(filepath.Ext(name))]
}

// Watcher scans an incoming directory for invoice documents.
type Watcher struct {
	incomingDir string
}

// New creates a Watcher over the given incoming directory.
func New(incomingDir string) *Watcher {
	return &Watcher{incomingDir: incomingDir}
}

// Next returns the file name of the oldest eligible document in the incoming
// directory, or "" when the directory holds nothing to process.
func (w *Watcher) Next() (string, error) {
	entries, err := os.ReadDir(w.incomingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", eris.Wrapf(err, "watcher: read dir %s", w.incomingDir)
	}

	var oldest string
	var oldestMod int64
	for _, entry := range entries {
		if entry.IsDir() || !Eligible(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if oldest == "" || mod < oldestMod {
			oldest = entry.Name()
			oldestMod = mod
		}
	}

	return oldest, nil
}

// List returns all eligible file names in the incoming directory, sorted by
// directory order.
func (w *Watcher) List() ([]string, error) {
	entries, err := os.ReadDir(w.incomingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, eris.Wrapf(err, "watcher: read dir %s", w.incomingDir)
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !Eligible(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// Archive moves a processed document out of the incoming directory. On a name
// collision in the destination the file gets a short uuid prefix.
func (w *Watcher) Archive(name, processedDir string) (string, error) {
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "watcher: create %s", processedDir)
	}

	src := filepath.Join(w.incomingDir, name)
	dstName := name
	dst := filepath.Join(processedDir, dstName)
	if _, err := os.Stat(dst); err == nil {
		dstName = uuid.NewString()[:8] + "_" + name
		dst = filepath.Join(processedDir, dstName)
	}

	if err := os.Rename(src, dst); err != nil {
		return "", eris.Wrapf(err, "watcher: archive %s", name)
	}

	zap.L().Info("watcher: archived processed file",
		zap.String("file", name),
		zap.String("dest", dst))
	return dstName, nil
}
