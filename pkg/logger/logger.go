package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// baseLogFile 基础日志文件路径（配置中的原始路径）
	baseLogFile string
	// savedConfig 保存的日志配置（用于日志切换）
	savedConfig Config
	// currentTradingDay 当前交易日标签（夜盘起算的交易日，非自然日）
	currentTradingDay string
	// logMu 日志文件切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level        string // 日志级别: debug, info, warn, error
	OutputFile   string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize      int    // 日志文件最大大小（MB）
	MaxBackups   int    // 保留的旧日志文件数量
	MaxAge       int    // 保留旧日志文件的天数
	Compress     bool   // 是否压缩旧日志文件
	LogByTradDay bool   // 是否按交易日命名日志文件
}

// SetTradingDay 设置当前交易日标签（格式 20240115，行情推送携带）
func SetTradingDay(day string) {
	logMu.Lock()
	defer logMu.Unlock()
	currentTradingDay = day
}

// getLogFileName 按交易日生成日志文件名
func getLogFileName(basePath, tradingDay string) string {
	dir := filepath.Dir(basePath)
	baseName := filepath.Base(basePath)
	ext := filepath.Ext(baseName)
	nameWithoutExt := baseName[:len(baseName)-len(ext)]

	if tradingDay == "" {
		tradingDay = time.Now().Format("20060102")
	}
	fileName := fmt.Sprintf("%s_%s%s", nameWithoutExt, tradingDay, ext)
	if dir == "." || dir == "" {
		return fileName
	}
	return filepath.Join(dir, fileName)
}

func newFormatter() *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05", // 格式: yy-mm-dd HH:MM:ss
		ForceColors:     true,
	}
}

// buildOutput 组装控制台 + 滚动文件输出
func buildOutput(config Config, logFilePath string) (io.Writer, error) {
	writers := []io.Writer{os.Stdout}
	if logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
		currentLogFile = logFilePath
	}
	return io.MultiWriter(writers...), nil
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())

	var logFilePath string
	if config.OutputFile != "" {
		baseLogFile = config.OutputFile
		savedConfig = config
		if config.LogByTradDay {
			logFilePath = getLogFileName(config.OutputFile, currentTradingDay)
		} else {
			logFilePath = config.OutputFile
		}
	}

	multiWriter, err := buildOutput(config, logFilePath)
	if err != nil {
		return err
	}
	logger.SetOutput(multiWriter)

	// 同时设置全局 logrus 的输出，确保所有使用 logrus 的地方都能写入文件
	// 这样各组件用 logrus.WithField() 创建的 logger 也能写入文件
	logrus.SetOutput(multiWriter)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter())

	Logger = logger
	return nil
}

// CheckAndRotateLog 交易日变化时切换日志文件
func CheckAndRotateLog() error {
	logMu.Lock()
	defer logMu.Unlock()

	if !savedConfig.LogByTradDay || baseLogFile == "" {
		return nil
	}
	logFilePath := getLogFileName(baseLogFile, currentTradingDay)
	if logFilePath == currentLogFile {
		return nil
	}

	oldLogFile := currentLogFile
	multiWriter, err := buildOutput(savedConfig, logFilePath)
	if err != nil {
		return err
	}

	if Logger != nil {
		Logger.SetOutput(multiWriter)
	}
	logrus.SetOutput(multiWriter)

	if Logger != nil && oldLogFile != "" {
		Logger.Infof("日志文件已切换到新交易日: %s -> %s", oldLogFile, logFilePath)
	}
	return nil
}

// StartLogRotationChecker 启动交易日日志切换检查器（后台任务）
func StartLogRotationChecker() {
	logMu.Lock()
	enabled := savedConfig.LogByTradDay && baseLogFile != ""
	logMu.Unlock()
	if !enabled {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if err := CheckAndRotateLog(); err != nil {
				if Logger != nil {
					Logger.Errorf("检查日志切换失败: %v", err)
				}
			}
		}
	}()
}

// InitDefault 使用默认配置初始化日志系统
func InitDefault() error {
	return Init(Config{
		Level:        "info",
		OutputFile:   "logs/trader.log",
		MaxSize:      100, // 100MB
		MaxBackups:   3,
		MaxAge:       7, // 7天
		Compress:     true,
		LogByTradDay: true,
	})
}

// Debug 记录 DEBUG 级别日志
func Debug(args ...interface{}) {
	if Logger != nil {
		Logger.Debug(args...)
	}
}

// Debugf 记录格式化的 DEBUG 级别日志
func Debugf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Debugf(format, args...)
	}
}

// Info 记录 INFO 级别日志
func Info(args ...interface{}) {
	if Logger != nil {
		Logger.Info(args...)
	}
}

// Infof 记录格式化的 INFO 级别日志
func Infof(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Infof(format, args...)
	}
}

// Warn 记录 WARN 级别日志
func Warn(args ...interface{}) {
	if Logger != nil {
		Logger.Warn(args...)
	}
}

// Warnf 记录格式化的 WARN 级别日志
func Warnf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Warnf(format, args...)
	}
}

// Error 记录 ERROR 级别日志
func Error(args ...interface{}) {
	if Logger != nil {
		Logger.Error(args...)
	}
}

// Errorf 记录格式化的 ERROR 级别日志
func Errorf(format string, args ...interface{}) {
	if Logger != nil {
		Logger.Errorf(format, args...)
	}
}

// WithField 添加字段到日志上下文
func WithField(key string, value interface{}) *logrus.Entry {
	if Logger != nil {
		return Logger.WithField(key, value)
	}
	return logrus.NewEntry(logrus.New())
}

// WithFields 添加多个字段到日志上下文
func WithFields(fields logrus.Fields) *logrus.Entry {
	if Logger != nil {
		return Logger.WithFields(fields)
	}
	return logrus.NewEntry(logrus.New())
}

// GetCurrentLogFile 获取当前日志文件路径
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}
