package executor

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// decodedCacheSize bounds the decoded-instruction cache. Big enough to keep
// the working set of a typical guest hot loop decoded once.
const decodedCacheSize = 1 << 16

// Program is the immutable decoded program image: raw instruction words at a
// contiguous base address, the entry point, and the initial memory image.
// The binary itself is parsed elsewhere (see LoadELF); the executor never
// touches a binary format.
type Program struct {
	// Instructions are the raw instruction words, word i at PCBase + 4*i.
	Instructions []uint32
	// PCBase is the address of the first instruction word.
	PCBase uint32
	// PCStart is the entry point.
	PCStart uint32
	// Image is the initial memory content (word address -> value), including
	// the instruction words.
	Image map[uint32]uint32

	// decoded instructions, filled lazily on fetch
	decoded *lru.Cache[uint32, Instruction]
}

// NewProgram builds a program image. The instruction words are mirrored into
// the memory image so that data reads of code observe the same bytes the
// executor fetches.
func NewProgram(instructions []uint32, pcBase, pcStart uint32, image map[uint32]uint32) (*Program, error) {
	if pcBase&3 != 0 || pcStart&3 != 0 {
		return nil, fmt.Errorf("program addresses must be word-aligned: base %08x start %08x", pcBase, pcStart)
	}
	if image == nil {
		image = make(map[uint32]uint32, len(instructions))
	}
	for i, word := range instructions {
		image[pcBase+uint32(4*i)] = word
	}
	cache, err := lru.New[uint32, Instruction](decodedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Program{
		Instructions: instructions,
		PCBase:       pcBase,
		PCStart:      pcStart,
		Image:        image,
		decoded:      cache,
	}, nil
}

// FetchWord returns the raw instruction word at pc, or false when pc is
// outside the instruction range or misaligned.
func (p *Program) FetchWord(pc uint32) (uint32, bool) {
	if pc&3 != 0 || pc < p.PCBase {
		return 0, false
	}
	idx := (pc - p.PCBase) >> 2
	if idx >= uint32(len(p.Instructions)) {
		return 0, false
	}
	return p.Instructions[idx], true
}

// Fetch returns the decoded instruction at pc, decoding and caching on first
// use.
func (p *Program) Fetch(pc uint32) (Instruction, uint32, error) {
	word, ok := p.FetchWord(pc)
	if !ok {
		return Instruction{}, 0, fmt.Errorf("instruction fetch outside program range: pc %08x", pc)
	}
	if ins, ok := p.decoded.Get(pc); ok {
		return ins, word, nil
	}
	ins, err := Decode(word)
	if err != nil {
		return Instruction{}, word, err
	}
	p.decoded.Add(pc, ins)
	return ins, word, nil
}
