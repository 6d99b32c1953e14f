package persistence

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/gofut/pkg/logger"
)

// BadgerService 基于 badger 的持久化服务。
// 状态键多且更新频繁时比逐键 JSON 文件省 fsync。
type BadgerService struct {
	db *badger.DB
}

// NewBadgerService 打开（或创建）badger 库
func NewBadgerService(dir string) (*BadgerService, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger 自带日志太吵，统一走 logrus
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerService{db: db}, nil
}

// Close 关闭底层库
func (s *BadgerService) Close() error {
	return s.db.Close()
}

// NewStore 创建新的存储
func (s *BadgerService) NewStore(prefix, id, tag string) Store {
	return &badgerStore{
		db:  s.db,
		key: []byte(prefix + ":" + id + ":" + tag),
	}
}

type badgerStore struct {
	db  *badger.DB
	key []byte
}

// Save 保存数据
func (s *badgerStore) Save(data interface{}) error {
	logger.Debugf("[persistence] badger Save: key=%s", s.key)
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, b)
	})
}

// Load 加载数据
func (s *badgerStore) Load(data interface{}) error {
	logger.Debugf("[persistence] badger Load: key=%s", s.key)
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotExists
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return ErrNotExists
			}
			return json.Unmarshal(val, data)
		})
	})
}
