package serve

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
)

// folderWatcher reports the changes done to the files in the served
// folder. Only the top level of the folder is watched. Nothing is cached,
// the files are still read from disk on each request.
type folderWatcher struct {
	folder      string
	watcher     *fsnotify.Watcher
	metrics     *metrics
	errorKernel *errorKernel
}

var watchedOps = []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename, fsnotify.Chmod}

// newFolderWatcher will prepare and return a *folderWatcher for folder.
// Call run to start handling the events.
func newFolderWatcher(folder string, m *metrics, ek *errorKernel) (*folderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error: newFolderWatcher: failed to create new watcher: %w", err)
	}

	err = watcher.Add(folder)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("error: newFolderWatcher: failed to add watcher for %v: %w", folder, err)
	}

	fw := folderWatcher{
		folder:      folder,
		watcher:     watcher,
		metrics:     m,
		errorKernel: ek,
	}

	return &fw, nil
}

// run will handle the events from the watcher until close is called.
func (fw *folderWatcher) run() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			for _, op := range watchedOps {
				if event.Has(op) {
					fw.metrics.promFolderEventsTotal.With(prometheus.Labels{"op": op.String()}).Inc()
				}
			}
			fw.errorKernel.logDebug("folderWatcher: got file event", "name", event.Name, "op", event.Op.String())

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.errorKernel.logWarn("folderWatcher: file watcher error", "folder", fw.folder, "error", err)
		}
	}
}

func (fw *folderWatcher) close() error {
	return fw.watcher.Close()
}
