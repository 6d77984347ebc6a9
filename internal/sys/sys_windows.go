//go:build windows

package sys

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func MMap(file *os.File, length uint64) (dat []byte, err error) {
	hFile := windows.Handle(file.Fd())
	hMap, err := windows.CreateFileMapping(
		hFile,
		nil,
		windows.PAGE_READWRITE,
		uint32(length>>32),
		uint32(length&0xffffffff),
		nil,
	)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(hMap)
	addr, err := windows.MapViewOfFile(hMap, windows.FILE_MAP_WRITE, 0, 0, uintptr(length))
	if err != nil {
		return nil, err
	}
	dat = unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	return dat, nil
}

func MUnmap(dat []byte) (err error) {
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&dat[0])))
}

func MSync(dat []byte) (err error) {
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&dat[0])), uintptr(len(dat)))
}

func GetSysPageSize() int {
	var si systemInfo
	getSystemInfo(&si)
	return int(si.pageSize)
}

type systemInfo struct {
	processorArchitecture     uint16
	reserved                  uint16
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularity     uint32
	processorLevel            uint16
	processorRevision         uint16
}

var getSystemInfoProc = windows.NewLazySystemDLL("kernel32").NewProc("GetSystemInfo")

func getSystemInfo(si *systemInfo) {
	_, _, _ = getSystemInfoProc.Call(uintptr(unsafe.Pointer(si)))
}
