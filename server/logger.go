package server

import (
	"go.uber.org/zap"

	"arrowarena/logging"
)

// Log 是全局可用的 SugaredLogger；InitLogger 之前为空实现，测试无需初始化
var Log = zap.NewNop().Sugar()

// InitLogger 初始化 zap 日志到本地文件（支持滚动）
// filePath: 日志文件路径，如 "app.log"
func InitLogger(filePath, level string, console bool) error {
	logger, err := logging.New(logging.Options{FilePath: filePath, Level: level, Console: console})
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// SyncLogger 清理和同步缓冲
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
