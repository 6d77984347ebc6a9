package tlbtree

import (
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
两层组合: fixtree是读优化的上层, 它的每个值槽存的是一棵wotree子树
根的相对指针, 所以FindLower返回的槽天然就是驱动层要的rootPtr.
写入都落在下层wotree; 某棵子树长到高度阈值时分裂上抛, 新separator
用有界插入安进fixtree; 叶满装不下时, separator跟fixtree现存记录
归并后整棵重建. 单写者, 读者可并发(见各提交点).
*/

// storeMeta 固定偏移的持久元数据, 紧跟池头
type storeMeta struct {
	fixEnt RelPtr
	_      [poolMetaSize - 8]byte
}

type Config struct {
	// Path 池文件路径
	Path string
	// PoolSize 建池时的文件大小, 已有池忽略
	PoolSize uint64
	// DowntreeHeight wotree子树的逃逸高度阈值
	DowntreeHeight int
	// Logger 缺省为Nop
	Logger *zap.Logger
}

const defaultDowntreeHeight = 4

// Store PM驻留的有序索引. 值0保留作"不存在"(与空指针同义),
// 合法value必须非零
type Store struct {
	cfg    Config
	pool   *PMPool
	fix    *Fixtree
	wo     *WOTree
	meta   *storeMeta
	logger *zap.Logger
	stat   iStat
}

// Open 打开或创建一个store. 新池会放好初始锚点:
// 一棵空的wotree叶 + 单记录的fixtree
func Open(cfg Config) (*Store, error) {
	if cfg.DowntreeHeight <= 0 {
		cfg.DowntreeHeight = defaultDowntreeHeight
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	pool, created, err := OpenPool(cfg.Path, cfg.PoolSize)
	if err != nil {
		return nil, errors.Wrap(err, "open tlbtree pool")
	}
	s := &Store{
		cfg:    cfg,
		pool:   pool,
		wo:     NewWOTree(pool),
		meta:   (*storeMeta)(pool.MetaBase()),
		logger: cfg.Logger,
	}
	if created || s.meta.fixEnt.isNull() {
		rootRel, err := s.wo.NewRoot()
		if err != nil {
			return nil, err
		}
		fix, err := NewFixtree(pool, []Record{{Key: 0, Val: uint64(rootRel)}})
		if err != nil {
			return nil, err
		}
		s.fix = fix
		persistAssign((*uint64)(unsafe.Pointer(&s.meta.fixEnt)), uint64(fix.Entrance()))
		s.logger.Info("tlbtree initialized",
			zap.String("pool", cfg.Path),
			zap.String("id", pool.ID().String()))
	} else {
		s.fix = RecoverFixtree(pool, s.meta.fixEnt)
		s.logger.Info("tlbtree recovered",
			zap.String("pool", cfg.Path),
			zap.String("id", pool.ID().String()),
			zap.Uint32("height", s.fix.height),
			zap.Uint32("leafCnt", s.fix.leafCnt))
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) rootSlot(k Key) *RelPtr {
	return (*RelPtr)(unsafe.Pointer(s.fix.FindLower(k)))
}

func (s *Store) Get(k Key) (uint64, bool) {
	s.stat.reads.Add(1)
	return s.wo.Find(s.rootSlot(k), k)
}

func (s *Store) Put(k Key, v uint64) error {
	escalate, splitKey, splitNode, err := s.wo.Insert(s.rootSlot(k), k, v, s.cfg.DowntreeHeight)
	if err != nil {
		return err
	}
	s.stat.writes.Add(1)
	if escalate {
		s.stat.escalates.Add(1)
		if !s.fix.Insert(splitKey, uint64(splitNode)) {
			return s.rebuild(splitKey, splitNode)
		}
	}
	return nil
}

func (s *Store) Update(k Key, v uint64) bool {
	return s.wo.Update(s.rootSlot(k), k, v)
}

// Del 删除key, 返回是否存在. 子树被删空时摘掉它在fixtree里的锚点
// (叶首锚点会被拒绝, 空子树原地保留, 它可能还在邻居的sibling链上)
func (s *Store) Del(k Key) bool {
	slot := s.rootSlot(k)
	if _, ok := s.wo.Find(slot, k); !ok {
		return false
	}
	if s.wo.Remove(slot, k) {
		s.fix.TryRemove(k)
	}
	s.stat.removes.Add(1)
	return true
}

// rebuild fixtree装不下新separator了: 跟现存记录归并后整棵重建,
// 新入口提交后旧树才释放
func (s *Store) rebuild(splitKey Key, splitNode RelPtr) error {
	in := []Record{{Key: splitKey, Val: uint64(splitNode)}}
	out := s.fix.Merge(in, make([]Record, 0, int(s.fix.leafCnt)*leafCard))
	newFix, err := NewFixtree(s.pool, out)
	if err != nil {
		return errors.Wrap(err, "rebuild fixtree")
	}
	persistAssign((*uint64)(unsafe.Pointer(&s.meta.fixEnt)), uint64(newFix.Entrance()))
	oldFix := s.fix
	s.fix = newFix
	FreeFixtree(oldFix)
	s.stat.rebuilds.Add(1)
	s.logger.Info("fixtree rebuilt",
		zap.Int("records", len(out)),
		zap.Uint32("height", newFix.height),
		zap.Uint32("leafCnt", newFix.leafCnt))
	return nil
}

func (s *Store) Stat() ExportStat {
	return ExportStat{
		Reads:     s.stat.reads.Load(),
		Writes:    s.stat.writes.Load(),
		Removes:   s.stat.removes.Load(),
		Escalates: s.stat.escalates.Load(),
		Rebuilds:  s.stat.rebuilds.Load(),
	}
}
