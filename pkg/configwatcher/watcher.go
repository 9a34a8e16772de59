package configwatcher

import (
	"coder_edu_analytics/pkg/logger"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfig 监听配置文件变更并在防抖后触发 reload。
// 阻塞运行，调用方应放到独立 goroutine 中。
func WatchConfig(configFile string, reload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Error("failed to create config watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(configFile)
	if err != nil {
		logger.Log.Error("failed to resolve config path", zap.Error(err))
		return
	}

	// 监听目录而不是文件本身，编辑器原子替换时 inode 会变化
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		logger.Log.Error("failed to watch config dir", zap.Error(err))
		return
	}

	var mu sync.Mutex
	var timer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// 防抖处理
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, func() {
				logger.Log.Info("config file changed, reloading", zap.String("file", absPath))
				reload()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("config watcher error", zap.Error(err))
		}
	}
}
