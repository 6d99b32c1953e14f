// Package persistence 抽象引擎状态的落地：策略配置、持仓快照都通过
// Store 读写，后端可选 JSON 文件或 badger。
package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"

	"github.com/betbot/gofut/pkg/logger"
)

// ErrNotExists 键不存在
var ErrNotExists = errors.New("persistence: key not exists")

// Service 按 (prefix, id, tag) 发放 Store
type Service interface {
	NewStore(prefix, id, tag string) Store
}

// Store 单个状态键的读写
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// JSONFileService 每个键一个 JSON 文件，便于人工查看与手改
type JSONFileService struct {
	baseDir string
}

// NewJSONFileService 创建 JSON 文件后端，目录延迟到首次 Save 创建
func NewJSONFileService(baseDir string) *JSONFileService {
	return &JSONFileService{baseDir: baseDir}
}

// NewStore 发放存储句柄
func (s *JSONFileService) NewStore(prefix, id, tag string) Store {
	return &jsonFileStore{
		baseDir: s.baseDir,
		key:     prefix + ":" + id + ":" + tag,
	}
}

type jsonFileStore struct {
	baseDir string
	key     string
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (s *jsonFileStore) path() string {
	return filepath.Join(s.baseDir, unsafeKeyChars.ReplaceAllString(s.key, "_")+".json")
}

// Save 写临时文件再 rename，进程崩溃不留半截文件
func (s *jsonFileStore) Save(data interface{}) error {
	logger.Debugf("[persistence] save key=%s", s.key)
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	target := s.path()
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// Load 读取并反序列化，文件缺失或为空返回 ErrNotExists
func (s *jsonFileStore) Load(data interface{}) error {
	logger.Debugf("[persistence] load key=%s", s.key)
	b, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return err
	}
	if len(b) == 0 {
		return ErrNotExists
	}
	return json.Unmarshal(b, data)
}
