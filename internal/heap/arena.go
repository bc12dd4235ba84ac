package heap

import (
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/roach88/kbind/internal/k"
)

const (
	// minBlock is the smallest block; every atom fits in it except GUID atoms.
	minBlock = 32
	// classLarge marks a block that owns its own mapping.
	classLarge int8 = -1
)

// arena carves K records out of mmap'd chunks. It is not safe for concurrent
// use; Runtime serialises access with its mutex.
type arena struct {
	chunkSize int
	chunks    [][]byte
	bump      []byte
	free      [48][]*k.K
	large     map[*k.K][]byte

	objects int64
	bytes   int64
}

func newArena(chunkSize int) *arena {
	return &arena{
		chunkSize: chunkSize,
		large:     make(map[*k.K][]byte),
	}
}

// classFor returns the size class whose block holds size bytes.
func classFor(size int) int {
	if size <= minBlock {
		return 0
	}
	return bits.Len(uint(size-1)) - bits.Len(uint(minBlock-1))
}

func blockSize(class int) int {
	return minBlock << class
}

func mapAnon(size int) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return mem, nil
}

// alloc returns a zeroed record with room for size bytes.
func (a *arena) alloc(size int) (*k.K, error) {
	class := classFor(size)
	bs := blockSize(class)

	if bs > a.chunkSize {
		mem, err := mapAnon(bs)
		if err != nil {
			return nil, err
		}
		raw := (*k.K)(unsafe.Pointer(&mem[0]))
		raw.M = classLarge
		a.large[raw] = mem
		a.objects++
		a.bytes += int64(bs)
		return raw, nil
	}

	var raw *k.K
	if n := len(a.free[class]); n > 0 {
		raw = a.free[class][n-1]
		a.free[class] = a.free[class][:n-1]
		clear(unsafe.Slice((*byte)(unsafe.Pointer(raw)), bs))
	} else {
		if len(a.bump) < bs {
			mem, err := mapAnon(a.chunkSize)
			if err != nil {
				return nil, err
			}
			a.chunks = append(a.chunks, mem)
			a.bump = mem
		}
		raw = (*k.K)(unsafe.Pointer(&a.bump[0]))
		a.bump = a.bump[bs:]
	}
	raw.M = int8(class)
	a.objects++
	a.bytes += int64(bs)
	return raw, nil
}

// release returns raw's block to its free list (or unmaps a large block).
func (a *arena) release(raw *k.K) error {
	if raw.M == classLarge {
		mem, ok := a.large[raw]
		if !ok {
			return fmt.Errorf("release of unknown large block %p", raw)
		}
		delete(a.large, raw)
		a.objects--
		a.bytes -= int64(len(mem))
		return unix.Munmap(mem)
	}
	class := int(raw.M)
	if class < 0 || class >= len(a.free) {
		return fmt.Errorf("release of block %p with corrupt class %d", raw, class)
	}
	raw.T = k.TypeNull
	a.free[class] = append(a.free[class], raw)
	a.objects--
	a.bytes -= int64(blockSize(class))
	return nil
}

func (a *arena) close() error {
	var first error
	for raw, mem := range a.large {
		if err := unix.Munmap(mem); err != nil && first == nil {
			first = err
		}
		delete(a.large, raw)
	}
	for _, mem := range a.chunks {
		if err := unix.Munmap(mem); err != nil && first == nil {
			first = err
		}
	}
	a.chunks, a.bump = nil, nil
	a.free = [48][]*k.K{}
	return first
}

// listSize is the record size of a list of n elements of tag t.
func listSize(t k.Type, n int64) int {
	return k.ListDataOffset + int(n)*t.ElemSize()
}
