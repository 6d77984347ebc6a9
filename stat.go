package tlbtree

import "sync/atomic"

type ExportStat struct {
	Reads     uint64
	Writes    uint64
	Removes   uint64
	Escalates uint64
	Rebuilds  uint64
}

type iStat struct {
	reads     atomic.Uint64
	writes    atomic.Uint64
	removes   atomic.Uint64
	escalates atomic.Uint64
	rebuilds  atomic.Uint64
}
