package logx

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger *zerolog.Logger

// Init 初始化 zerolog 会话日志。
// level: 日志级别（"debug"、"info"、"warn"、"error"），无法识别时退回 info。
// file: 会话日志文件路径，为空时仅输出到控制台。
//
// 约束：控制台走 stderr；stdout 留给报告输出，不得混入日志。
func Init(level string, file string) error {
	var logLevel zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}}

	if file != "" {
		// 会话日志按追加写入，跨多次运行保留现场
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        f,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    true,
		})
	}

	l := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger().Level(logLevel)
	logger = &l
	return nil
}

// Get 返回全局 logger。
// 未初始化时返回丢弃一切输出的 logger，调用方不需要判空。
func Get() *zerolog.Logger {
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	return logger
}
