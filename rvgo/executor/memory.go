package executor

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// The addressable space is 2 GiB of 32-bit words (addresses are byte
// granular, storage is word granular). Memory is allocated in pages of
// records so that a mostly-empty address space stays cheap, while word
// lookup remains O(1): page map hit plus an index into a flat array.
const (
	// MaxMemoryWords is the number of addressable 32-bit words.
	MaxMemoryWords = 1 << 29

	PageAddrSize = 10 // words per page = 1 KiW = 4 KiB of values
	PageWords    = 1 << PageAddrSize
	PageWordMask = PageWords - 1
	PageKeySize  = 29 - PageAddrSize
	MaxPageCount = 1 << PageKeySize
)

// MemoryRecord is one 32-bit memory word together with the provenance of its
// most recent access: the shard and the intra-shard timestamp that last
// touched it. Shard 0 is reserved for memory initialization.
type MemoryRecord struct {
	Value     uint32 `json:"value"`
	Shard     uint32 `json:"shard"`
	Timestamp uint32 `json:"timestamp"`
}

// Untouched reports whether the record still carries its initialization
// provenance, i.e. no shard has accessed the word yet.
func (r *MemoryRecord) Untouched() bool {
	return r.Shard == 0 && r.Timestamp == 0
}

// Page is a fixed run of word records. Pages are never de-allocated:
// once a page exists, it stays in memory.
type Page [PageWords]MemoryRecord

// Memory is the paged store of per-word records. It is purely a substrate:
// it mutates records and knows nothing about trace events or seeding,
// the executor layers those on top.
type Memory struct {
	pages map[uint32]*Page

	// two caches: instructions are fetched from one page while data lives in
	// another. This avoids a map lookup on nearly every access.
	lastPageKeys [2]uint32
	lastPage     [2]*Page
}

func NewMemory() *Memory {
	return &Memory{
		pages:        make(map[uint32]*Page),
		lastPageKeys: [2]uint32{^uint32(0), ^uint32(0)}, // default to invalid keys, to not match any pages
	}
}

func (m *Memory) PageCount() int {
	return len(m.pages)
}

func (m *Memory) AllocPage(pageIndex uint32) *Page {
	p := &Page{}
	m.pages[pageIndex] = p
	return p
}

func (m *Memory) pageLookup(pageIndex uint32) (*Page, bool) {
	// hit caches
	if pageIndex == m.lastPageKeys[0] {
		return m.lastPage[0], true
	}
	if pageIndex == m.lastPageKeys[1] {
		return m.lastPage[1], true
	}
	p, ok := m.pages[pageIndex]

	// only cache existing pages.
	if ok {
		m.lastPageKeys[1] = m.lastPageKeys[0]
		m.lastPage[1] = m.lastPage[0]
		m.lastPageKeys[0] = pageIndex
		m.lastPage[0] = p
	}

	return p, ok
}

// Entry returns a pointer to the record of the word containing addr,
// allocating the page if needed. The caller must have validated the address;
// addresses beyond the addressable space are a programming error.
func (m *Memory) Entry(addr uint32) *MemoryRecord {
	wordIndex := addr >> 2
	pageIndex := wordIndex >> PageAddrSize
	p, ok := m.pageLookup(pageIndex)
	if !ok {
		p = m.AllocPage(pageIndex)
	}
	return &p[wordIndex&PageWordMask]
}

// Lookup returns a copy of the record of the word containing addr, without
// allocating. ok is false when the page was never written, in which case the
// zero record is returned.
func (m *Memory) Lookup(addr uint32) (rec MemoryRecord, ok bool) {
	wordIndex := addr >> 2
	p, exists := m.pageLookup(wordIndex >> PageAddrSize)
	if !exists {
		return MemoryRecord{}, false
	}
	return p[wordIndex&PageWordMask], true
}

// ReadWord returns the current value of the word containing addr.
// Untouched words read as zero.
func (m *Memory) ReadWord(addr uint32) uint32 {
	rec, _ := m.Lookup(addr)
	return rec.Value
}

// WriteWord updates the word containing addr with the given value and stamps
// it with the shard/timestamp pair, as one record.
func (m *Memory) WriteWord(addr uint32, value, shard, timestamp uint32) {
	*m.Entry(addr) = MemoryRecord{Value: value, Shard: shard, Timestamp: timestamp}
}

// ReadRange reads count words starting at addr. See BulkReadWords for the
// range precondition.
func (m *Memory) ReadRange(addr uint32, count int) []uint32 {
	return BulkReadWords(m, addr, count)
}

// WriteRange writes values starting at addr, stamping every touched word
// with the shard/timestamp pair. See BulkWriteWords for the precondition.
func (m *Memory) WriteRange(addr uint32, values []uint32, shard, timestamp uint32) {
	BulkWriteWords(m, addr, values, shard, timestamp)
}

// CopyRange copies count word values from srcAddr to dstAddr. Destination
// provenance is left as-is; stamping is the caller's responsibility.
func (m *Memory) CopyRange(srcAddr, dstAddr uint32, count int) {
	BulkCopyWords(m, srcAddr, dstAddr, count)
}

// pageRun returns the in-page record slice covering up to count words
// starting at wordIndex, allocating the page when alloc is set. The slice
// never crosses a page boundary; the caller loops.
func (m *Memory) pageRun(wordIndex uint32, count int, alloc bool) []MemoryRecord {
	pageIndex := wordIndex >> PageAddrSize
	pageAddr := wordIndex & PageWordMask
	p, ok := m.pageLookup(pageIndex)
	if !ok {
		if !alloc {
			p = nil
		} else {
			p = m.AllocPage(pageIndex)
		}
	}
	n := PageWords - int(pageAddr)
	if n > count {
		n = count
	}
	if p == nil {
		return nil // absent page: n zero words, caller handles
	}
	return p[pageAddr : int(pageAddr)+n]
}

type pageEntry struct {
	Index uint32 `json:"index"`
	Data  *Page  `json:"data"`
}

func (m *Memory) MarshalJSON() ([]byte, error) {
	pages := make([]pageEntry, 0, len(m.pages))
	for k, p := range m.pages {
		pages = append(pages, pageEntry{Index: k, Data: p})
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Index < pages[j].Index
	})
	return json.Marshal(pages)
}

func (m *Memory) UnmarshalJSON(data []byte) error {
	var pages []pageEntry
	if err := json.Unmarshal(data, &pages); err != nil {
		return err
	}
	m.pages = make(map[uint32]*Page)
	m.lastPageKeys = [2]uint32{^uint32(0), ^uint32(0)}
	m.lastPage = [2]*Page{nil, nil}
	for i, p := range pages {
		if _, ok := m.pages[p.Index]; ok {
			return fmt.Errorf("cannot load duplicate page, entry %d, page index %d", i, p.Index)
		}
		m.pages[p.Index] = p.Data
	}
	return nil
}

// Serialize writes the memory in a simple binary format which can be read
// again using Deserialize. The format is a simple concatenation of fields,
// with a prefixed item count for repeating items and big endian encoding
// for numbers.
//
// len(PageCount)    uint64
// For each page (order is arbitrary):
//
//	page index          uint32
//	page records        PageWords x (value uint32, shard uint32, timestamp uint32)
func (m *Memory) Serialize(out io.Writer) error {
	if err := binary.Write(out, binary.BigEndian, uint64(m.PageCount())); err != nil {
		return err
	}
	for pageIndex, page := range m.pages {
		if err := binary.Write(out, binary.BigEndian, pageIndex); err != nil {
			return err
		}
		if err := binary.Write(out, binary.BigEndian, page); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Deserialize(in io.Reader) error {
	var pageCount uint64
	if err := binary.Read(in, binary.BigEndian, &pageCount); err != nil {
		return err
	}
	for i := uint64(0); i < pageCount; i++ {
		var pageIndex uint32
		if err := binary.Read(in, binary.BigEndian, &pageIndex); err != nil {
			return err
		}
		page := m.AllocPage(pageIndex)
		if err := binary.Read(in, binary.BigEndian, page); err != nil {
			return err
		}
	}
	return nil
}

// Usage returns a human readable estimate of the value footprint of the
// allocated pages.
func (m *Memory) Usage() string {
	total := uint64(len(m.pages)) * PageWords * 4
	const unit = 1024
	if total < unit {
		return fmt.Sprintf("%d B", total)
	}
	div, exp := uint64(unit), 0
	for n := total / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	// KiB, MiB, GiB, TiB, ...
	return fmt.Sprintf("%.1f %ciB", float64(total)/float64(div), "KMGTPE"[exp])
}
