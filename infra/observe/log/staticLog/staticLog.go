// Package staticLog 进程级日志入口, 用法: staticLog.Log.Infof(...)
package staticLog

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 默认输出到 stderr, 级别 warn
var Log = newLogger()

type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`   // 为空则只写 stderr
	MaxSizeMB  int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAgeDays int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init 按配置重设 Log; 配置了 File 时使用 lumberjack 滚动写文件
func Init(cfg Config) error {
	level := logrus.WarnLevel
	if cfg.Level != "" {
		lv, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("staticLog: %w", err)
		}
		level = lv
	}

	var formatter logrus.Formatter
	switch cfg.Format {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("staticLog: unknown format %q", cfg.Format)
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	Log.SetLevel(level)
	Log.SetFormatter(formatter)
	Log.SetOutput(out)
	return nil
}
