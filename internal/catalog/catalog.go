package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/driftwave/wavecore/internal/flashmap"
)

// Catalog is the in-RAM list of parsed wavetable descriptors. On the
// host there is no FAT filesystem: Mount walks a directory of .wav
// files and assigns each a synthetic contiguous-address run inside the
// backing flashmap.Region, so the engine never has to cross a cluster
// discontinuity in a single read.
type Catalog struct {
	mu      sync.RWMutex
	root    string
	region  *flashmap.Region
	entries []Entry
	logger  *log.Logger
}

// Mount walks root (standing in for the external flash's root
// directory) and builds the initial catalog.
func Mount(root string, region *flashmap.Region, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Catalog{root: root, region: region, logger: logger}
	if err := c.Rescan(); err != nil {
		return nil, err
	}
	return c, nil
}

// Watch starts an fsnotify watcher on root and calls Rescan on every
// create/rename/remove/write event, the host analogue of a FAT change
// notification. The returned watcher must be closed by the caller
// when the catalog is torn down.
func (c *Catalog) Watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(c.root); err != nil {
		w.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Write) != 0 {
					if err := c.Rescan(); err != nil {
						c.logger.Error("catalog rescan failed", "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.logger.Error("catalog watch error", "err", err)
			}
		}
	}()
	return w, nil
}

// Rescan walks the root directory tree and rebuilds the entry list
// from scratch. Non-.wav files and dotfiles (standing in for deleted
// and hidden FAT attributes) are skipped.
func (c *Catalog) Rescan() error {
	type dirNode struct {
		path  string
		index int // this directory's own entry index, -1 for root
	}

	var entries []Entry
	dirIndex := map[string]int{c.root: -1}

	// Breadth-first so a directory's own entry is appended before its
	// children are scanned, giving children a valid parent index.
	queue := []dirNode{{path: c.root, index: -1}}
	var cursor uint32

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		children, err := os.ReadDir(node.path)
		if err != nil {
			return err
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

		for _, ch := range children {
			name := ch.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := filepath.Join(node.path, name)

			if ch.IsDir() {
				idx := len(entries)
				entries = append(entries, Entry{
					Name:        name,
					LongName:    name,
					IsDirectory: true,
					Valid:       true,
					Dir:         node.index,
				})
				dirIndex[full] = idx
				queue = append(queue, dirNode{path: full, index: idx})
				continue
			}

			if !strings.EqualFold(filepath.Ext(name), ".wav") {
				continue
			}
			e, size, err := c.scanFile(full, cursor)
			if err != nil {
				c.logger.Warn("catalog: skipping unreadable wavetable", "file", full, "err", err)
				continue
			}
			e.Name = name
			e.LongName = name
			e.Dir = node.index
			entries = append(entries, e)
			cursor += size
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	c.logger.Info("catalog rescanned", "entries", len(entries), "root", c.root)
	return nil
}

// scanFile parses one .wav file's RIFF header and computes its
// synthetic cluster-chain bookkeeping. cursor is the next free byte
// offset into the backing flashmap.Region; scanFile returns the
// number of bytes it consumed so the caller can advance cursor for
// the next file. Since the host store is a single contiguous mapped
// region rather than a real FAT volume, every file is contiguous by
// construction and the last-contiguous-cluster marker always equals
// the file's own single synthetic cluster run.
func (c *Catalog) scanFile(path string, cursor uint32) (Entry, uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, 0, err
	}

	var e Entry
	h, err := parseWAV(raw)
	if err != nil {
		e.Valid = false
		return e, uint32(len(raw)), nil
	}

	switch h.format {
	case 1: // WAVE_FORMAT_PCM
		e.Format = FormatPCM
	case 3: // WAVE_FORMAT_IEEE_FLOAT
		e.Format = FormatFloat
	default:
		e.Valid = false
		return e, uint32(len(raw)), nil
	}

	e.Channels = int(h.channels)
	e.ByteDepth = h.byteDepth
	e.Metadata = h.metadata
	e.DataSize = h.dataSize
	e.SizeBytes = uint32(len(raw))
	e.FirstCluster = cursor
	e.StartAddr = cursor + uint32(h.dataOffset)
	e.EndAddr = cursor + uint32(len(raw))
	e.LastContiguousCluster = e.FirstCluster

	if fc, ok := clmFrameCount(h.metadata); ok && fc > 0 {
		e.FrameCount = fc
		e.SampleCount = fc * FrameSize
	} else if e.ByteDepth > 0 && e.Channels > 0 {
		e.SampleCount = e.DataSize / uint32(e.ByteDepth*e.Channels)
	}

	e.validate()

	if c.region != nil {
		_ = c.region.Write(int(e.FirstCluster), raw)
	}

	return e, uint32(len(raw)), nil
}

// Entries returns a snapshot of the current catalog rows.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Entry returns the entry at idx, or false if idx is out of range.
func (c *Catalog) Entry(idx int) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if idx < 0 || idx >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// Enter resolves an encoder press on a directory entry: given the
// index of a directory entry, returns the index of its first member,
// or ok=false if the directory is empty.
func (c *Catalog) Enter(dirIdx int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, e := range c.entries {
		if e.Dir == dirIdx {
			return i, true
		}
	}
	return 0, false
}

// Bounds returns the first and last index sharing dir as their parent.
// Up/down navigation inside a directory clamps to these.
func (c *Catalog) Bounds(dir int) (first, last int, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	first, last = -1, -1
	for i, e := range c.entries {
		if e.Dir == dir {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	return first, last, first != -1
}
