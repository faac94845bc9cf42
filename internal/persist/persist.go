// Package persist implements the configuration persistor: an
// append-only ring of fixed-size records (magic header + index byte +
// concatenated module payloads) across one or more erase-sectors of a
// flashmap.Region, with throttled scheduling and erase-on-wrap. The
// record index increases monotonically across sectors so restore can
// find the newest record after an arbitrary power loss.
package persist

import (
	"bytes"
	"encoding/binary"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/driftwave/wavecore/internal/config"
	"github.com/driftwave/wavecore/internal/flashmap"
	"github.com/driftwave/wavecore/internal/wcerr"
)

// recordMagic identifies a valid config record header. noIndex is the
// sentinel meaning "this sector carries no recognizable record".
const (
	recordMagic    uint32 = 0x57434647 // "WCFG"
	headerSize            = 5         // 4-byte magic + 1-byte index
	noIndex        int    = 255
)

// sectorState tracks what Restore discovered about one reserved
// sector: whether any word in it differs from the erased 0xFF fill
// (dirty), and the index byte of the record at its very first slot, if
// any.
type sectorState struct {
	dirty bool
	index int
}

// Persistor owns the sector ring buffer. The reserved erase-sectors
// are addressed as contiguous ranges inside one flashmap.Region, the
// host simulator's stand-in for several independently-erasable
// on-chip flash sectors.
type Persistor struct {
	region      *flashmap.Region
	registry    *config.Registry
	logger      *log.Logger
	sectorSize  int
	sectorCount int
	recordSize  int

	sectors []sectorState

	currentSector int
	currentOffset int // -1 until the first save
	currentIndex  int

	scheduleSave bool
	saveBooked   time.Time
	throttle     time.Duration
}

// New creates a Persistor over region, split into sectorCount sectors
// of sectorSize bytes. throttle is the minimum interval between
// booked saves: 10s is right for a single-sector layout, 60s for
// multi-sector ones.
func New(region *flashmap.Region, registry *config.Registry, sectorCount, sectorSize int, throttle time.Duration, logger *log.Logger) *Persistor {
	if logger == nil {
		logger = log.Default()
	}
	recordSize := headerSize
	for _, s := range registry.Savers() {
		recordSize += len(s.SaveState())
	}
	sectors := make([]sectorState, sectorCount)
	for i := range sectors {
		sectors[i].index = noIndex
	}
	return &Persistor{
		region:        region,
		registry:      registry,
		logger:        logger,
		sectorSize:    sectorSize,
		sectorCount:   sectorCount,
		recordSize:    recordSize,
		sectors:       sectors,
		currentOffset: -1,
		throttle:      throttle,
	}
}

// ScheduleSave books a save request, recording the time it was booked
// so Save can enforce the throttle deadline.
func (p *Persistor) ScheduleSave() {
	p.scheduleSave = true
	p.saveBooked = now()
}

// now is a seam so tests can control elapsed time without faking the
// wall clock globally; production callers never override it.
var now = time.Now

// Save writes one new record, rebinding to a clean sector first when
// the current one is full. It is a no-op unless forced or a booked
// save's throttle deadline has elapsed. The candidate sector, index,
// and offset live in locals until the write has succeeded, so a
// no-space abort or a programming fault leaves the in-memory state
// (including the booked-save flag) exactly as it was. After a move to a
// new sector the sector it left is erased once the new record is on
// flash; if that erase fails, the sector stays dirty until Restore
// erases it.
func (p *Persistor) Save(force bool) error {
	if !force && (!p.scheduleSave || now().Sub(p.saveBooked) < p.throttle) {
		return nil
	}

	sector, index, offset := p.currentSector, p.currentIndex, p.currentOffset
	rebound := false
	if offset == -1 {
		offset = 0
	} else {
		offset += p.recordSize
		if offset > p.sectorSize-p.recordSize {
			var ok bool
			sector, index, ok = p.cleanSector()
			if !ok {
				return wcerr.ErrNoConfigSpace
			}
			offset = 0
			rebound = true
		}
	}

	buf := p.assembleRecord(index)
	if err := p.burstWrite(sector*p.sectorSize+offset, buf); err != nil {
		return err
	}

	prev := p.currentSector
	p.currentSector, p.currentIndex, p.currentOffset = sector, index, offset
	if rebound {
		p.sectors[sector].index = index
		p.sectors[sector].dirty = true
	}
	p.scheduleSave = false

	// Erase-on-wrap: the sector just left holds only superseded records.
	if rebound {
		if err := p.eraseSector(prev); err != nil {
			p.logger.Warn("config save: erasing previous sector failed", "sector", prev, "err", err)
		}
	}

	p.logger.Info("config saved", "bytes", len(buf), "sector", sector, "offset", offset, "index", index)
	return nil
}

// cleanSector searches for a clean sector with a different id than the
// current one, returning its id and the next record index (advanced
// modulo sectorCount+1). It mutates nothing; Save commits the binding
// only after the record is on flash.
func (p *Persistor) cleanSector() (sector, index int, ok bool) {
	for i, s := range p.sectors {
		if !s.dirty && i != p.currentSector {
			return i, (p.currentIndex + 1) % (p.sectorCount + 1), true
		}
	}
	return 0, 0, false
}

// assembleRecord builds the header + concatenated module payload
// buffer for a record carrying the given index byte.
func (p *Persistor) assembleRecord(index int) []byte {
	buf := make([]byte, 0, p.recordSize)
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], recordMagic)
	hdr[4] = byte(index)
	buf = append(buf, hdr...)
	for _, s := range p.registry.Savers() {
		buf = append(buf, s.SaveState()...)
	}
	return buf
}

// burstWrite programs buf at byte offset base in 16-byte bursts, the
// host analogue of a 128-bit flash-word programming loop. The
// region's unmap/remap pair in flashmap.Region.Write stands in for
// the unlock/lock sequence around each burst.
func (p *Persistor) burstWrite(base int, buf []byte) error {
	const burst = 16
	for off := 0; off < len(buf); off += burst {
		end := off + burst
		if end > len(buf) {
			end = len(buf)
		}
		if err := p.region.Write(base+off, buf[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// Restore rebuilds the in-memory state from flash: it inspects
// every reserved sector for dirtiness and a leading record index,
// determines the active sector by finding the longest consecutive
// index+1 chain from the lowest index, erases every dirty sector other
// than the active one (and the active one too if it carries no valid
// index), then scans the active
// sector forward for the last matching record and dispatches its
// payload to each registered Saver.
func (p *Persistor) Restore() error {
	for i := range p.sectors {
		base := i * p.sectorSize
		raw, err := p.region.Read(base, p.sectorSize)
		if err != nil {
			return err
		}
		p.sectors[i].dirty = sectorIsDirty(raw)
		p.sectors[i].index = noIndex
		if len(raw) >= headerSize && binary.LittleEndian.Uint32(raw[0:4]) == recordMagic {
			p.sectors[i].index = int(raw[4])
		}
	}

	// Sort sector ids by their discovered index ascending before
	// walking the chain.
	order := make([]int, p.sectorCount)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return p.sectors[order[a]].index < p.sectors[order[b]].index })

	head := order[0]
	index := p.sectors[head].index
	activeSector := head
	if index == noIndex {
		activeSector = 0
		index = 0
	} else {
		for _, i := range order[1:] {
			if p.sectors[i].index == index+1 {
				index++
				activeSector = i
			} else {
				break
			}
		}
	}
	p.currentSector = activeSector
	p.currentIndex = index

	for i, s := range p.sectors {
		if s.dirty && (i != activeSector || s.index == noIndex) {
			if err := p.eraseSector(i); err != nil {
				return err
			}
		}
	}

	base := activeSector * p.sectorSize
	raw, err := p.region.Read(base, p.sectorSize)
	if err != nil {
		return err
	}

	pos := 0
	p.currentOffset = -1
	for pos <= p.sectorSize-p.recordSize {
		if binary.LittleEndian.Uint32(raw[pos:pos+4]) != recordMagic {
			break
		}
		p.currentOffset = pos
		pos += p.recordSize
	}

	if p.currentOffset == -1 {
		return nil
	}

	payload := raw[p.currentOffset+headerSize : p.currentOffset+p.recordSize]
	cursor := 0
	for _, s := range p.registry.Savers() {
		n := len(s.SaveState())
		if cursor+n > len(payload) {
			break
		}
		if err := s.LoadState(payload[cursor : cursor+n]); err != nil {
			p.logger.Warn("config restore: saver rejected payload", "key", s.Key(), "err", err)
		}
		cursor += n
	}
	return nil
}

func sectorIsDirty(raw []byte) bool {
	blank := bytes.Repeat([]byte{0xFF}, len(raw))
	return !bytes.Equal(raw, blank)
}

func (p *Persistor) eraseSector(i int) error {
	blank := make([]byte, p.sectorSize)
	for j := range blank {
		blank[j] = 0xFF
	}
	if err := p.region.Write(i*p.sectorSize, blank); err != nil {
		return err
	}
	p.sectors[i].dirty = false
	p.sectors[i].index = noIndex
	return nil
}

// Erase implements the "clear config" command: every reserved sector
// is erased and all in-memory tracking reset.
func (p *Persistor) Erase() error {
	for i := range p.sectors {
		if err := p.eraseSector(i); err != nil {
			return err
		}
	}
	p.currentSector = 0
	p.currentOffset = -1
	p.currentIndex = 0
	p.logger.Info("config erased")
	return nil
}
