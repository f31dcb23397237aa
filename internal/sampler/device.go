package sampler

import (
	"strings"
	"sync"
)

// DeviceFeed 服务端的 Source 实现，位置由设备通过 HTTP 上报后推入
type DeviceFeed struct {
	mu       sync.Mutex
	next     int
	watchers map[int]deviceWatcher
}

type deviceWatcher struct {
	onPosition func(Position)
	onError    func(error)
}

func NewDeviceFeed() *DeviceFeed {
	return &DeviceFeed{watchers: make(map[int]deviceWatcher)}
}

func (f *DeviceFeed) Watch(_ Options, onPosition func(Position), onError func(error)) (func(), error) {
	f.mu.Lock()
	id := f.next
	f.next++
	f.watchers[id] = deviceWatcher{onPosition: onPosition, onError: onError}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}, nil
}

// Push 分发一次设备上报，没有监听者时返回 false
func (f *DeviceFeed) Push(p Position) bool {
	ws := f.snapshot()
	for _, w := range ws {
		w.onPosition(p)
	}
	return len(ws) > 0
}

// Fail 分发设备上报的定位错误
func (f *DeviceFeed) Fail(err error) bool {
	ws := f.snapshot()
	for _, w := range ws {
		w.onError(err)
	}
	return len(ws) > 0
}

// Watching 当前是否有监听者
func (f *DeviceFeed) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers) > 0
}

func (f *DeviceFeed) snapshot() []deviceWatcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	ws := make([]deviceWatcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		ws = append(ws, w)
	}
	return ws
}

// ErrorFromCode 把设备上报的错误码映射为采样错误
// 兼容浏览器定位 API 的数字码 1/2/3
func ErrorFromCode(code string) error {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "1", "PERMISSION_DENIED":
		return ErrPermissionDenied
	case "3", "TIMEOUT":
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}
