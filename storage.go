package tlbtree

import (
	"os"
	"unsafe"

	"github.com/cmemory/TLBtree/internal/sys"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var poolMagic = [4]byte{'t', 'l', 'b', 't'}

const (
	poolHeaderSize = 4096
	// 紧跟池头的固定元数据区, 交给上层Store使用
	poolMetaSize = 4096
	poolMetaRel  = RelPtr(poolHeaderSize)

	defaultPoolSize = 64 * 1024 * 1024
)

// poolHeader PM池头, 位于偏移0处, 因此任何合法分配的RelPtr都不为0
type poolHeader struct {
	magic [4]byte
	_     [4]byte
	size  uint64
	// top 凸起指针, 每次分配通过persistAssign推进
	top uint64
	id  [16]byte
}

// Allocator PM分配器能力: 分配/释放 + 相对绝对指针互转.
// 非线程安全, 调用方自行串行化
type Allocator interface {
	Malloc(size uint64) (RelPtr, error)
	Free(abs unsafe.Pointer)
	Absolute(rel RelPtr) unsafe.Pointer
	Relative(abs unsafe.Pointer) RelPtr
}

// PMPool 把一个mmap的池文件当作PM区域: 头页 + 元数据区 + 凸起分配.
// 释放的块进入易失的freelist(分配器运行态的恢复是明确的non-goal)
type PMPool struct {
	file *os.File
	path string
	dat  []byte
	hdr  *poolHeader
	free *blockFreelist
	// 易失: RelPtr -> 分配时对齐后的大小, Free的时候查询
	sizes map[RelPtr]uint64
}

// OpenPool 打开或创建池文件. 新文件(或全零文件)会被初始化,
// created报告本次调用是否做了初始化
func OpenPool(path string, size uint64) (p *PMPool, created bool, err error) {
	if size < poolHeaderSize+poolMetaSize {
		size = defaultPoolSize
	}
	size = alignUp(size, uint64(sys.GetSysPageSize()))
	p = &PMPool{
		path:  path,
		free:  newBlockFreelist(),
		sizes: make(map[RelPtr]uint64),
	}
	p.file, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, false, errors.Wrap(err, "open pool file")
	}
	stat, err := p.file.Stat()
	if err != nil {
		return nil, false, errors.Wrap(err, "stat pool file")
	}
	if stat.Size() == 0 {
		if err = p.file.Truncate(int64(size)); err != nil {
			return nil, false, errors.Wrap(err, "truncate pool file")
		}
		if p.dat, err = sys.MMap(p.file, size); err != nil {
			return nil, false, errors.Wrap(err, "mmap pool file")
		}
		p.initHeader(size)
		return p, true, nil
	}
	if stat.Size() < poolHeaderSize+poolMetaSize {
		return nil, false, errPoolTruncated
	}
	if p.dat, err = sys.MMap(p.file, uint64(stat.Size())); err != nil {
		return nil, false, errors.Wrap(err, "mmap pool file")
	}
	p.hdr = (*poolHeader)(unsafe.Pointer(&p.dat[0]))
	if p.hdr.magic != poolMagic {
		// 预先truncate出来的全零文件也允许当成新池用
		if !bytesIsZero(p.dat[:poolHeaderSize]) {
			return nil, false, errPoolMagic
		}
		p.initHeader(uint64(stat.Size()))
		return p, true, nil
	}
	if p.hdr.size > uint64(stat.Size()) {
		return nil, false, errPoolTruncated
	}
	return p, false, nil
}

func (p *PMPool) initHeader(size uint64) {
	p.hdr = (*poolHeader)(unsafe.Pointer(&p.dat[0]))
	p.hdr.size = size
	p.hdr.id = [16]byte(uuid.New())
	persistAssign(&p.hdr.top, poolHeaderSize+poolMetaSize)
	clwb(unsafe.Pointer(p.hdr), unsafe.Sizeof(poolHeader{}))
	mfence()
	// magic最后落下, 崩溃在此之前留下的还是一个可重新初始化的空池
	copy(p.hdr.magic[:], poolMagic[:])
	clwb(unsafe.Pointer(&p.hdr.magic), 8)
	mfence()
}

func (p *PMPool) Close() (err error) {
	if err = sys.MSync(p.dat); err != nil {
		return errors.Wrap(err, "msync pool")
	}
	if err = sys.MUnmap(p.dat); err != nil {
		return errors.Wrap(err, "munmap pool")
	}
	err = p.file.Close()
	p.file = nil
	p.dat = nil
	p.hdr = nil
	return
}

// ID 池的身份戳, 初始化时写入头页
func (p *PMPool) ID() uuid.UUID {
	return uuid.UUID(p.hdr.id)
}

func (p *PMPool) Malloc(size uint64) (RelPtr, error) {
	size = alignUp(size, cacheLineSize)
	if rel, ok := p.free.take(size); ok {
		p.sizes[rel] = size
		return rel, nil
	}
	top := p.hdr.top
	if top+size > p.hdr.size {
		return 0, errPoolExhausted
	}
	persistAssign(&p.hdr.top, top+size)
	rel := RelPtr(top)
	p.sizes[rel] = size
	return rel, nil
}

func (p *PMPool) Free(abs unsafe.Pointer) {
	rel := p.Relative(abs)
	size, ok := p.sizes[rel]
	if !ok {
		// 上一次进程生命期分配的块, 易失的sizes表里没有记录,
		// 无法复用, 留给外部恢复扫描回收
		return
	}
	delete(p.sizes, rel)
	p.free.put(rel, size)
}

func (p *PMPool) Absolute(rel RelPtr) unsafe.Pointer {
	if rel.isNull() {
		return nil
	}
	return unsafe.Pointer(&p.dat[rel])
}

func (p *PMPool) Relative(abs unsafe.Pointer) RelPtr {
	if abs == nil {
		return 0
	}
	off := uintptr(abs) - uintptr(unsafe.Pointer(&p.dat[0]))
	return RelPtr(off)
}

// MetaBase 固定偏移的store元数据区
func (p *PMPool) MetaBase() unsafe.Pointer {
	return p.Absolute(poolMetaRel)
}
