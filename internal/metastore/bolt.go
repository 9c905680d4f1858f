// internal/metastore/bolt.go
package metastore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	installsBucket = []byte("installs")
	latestBucket   = []byte("latest")
)

// Формат времени фиксированной ширины, чтобы ключи сортировались хронологически
const keyTimeFormat = "20060102T150405.000000000Z"

// BoltStore реализация Journal на основе BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore открывает журнал установок на основе BoltDB
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	// Создаем необходимые бакеты
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(installsBucket)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(latestBucket)
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func historyPrefix(component string) []byte {
	return append([]byte(component), 0)
}

func historyKey(component string, at time.Time) []byte {
	return append(historyPrefix(component), at.UTC().Format(keyTimeFormat)...)
}

// RecordInstall сохраняет запись в историю и обновляет последнюю установку компонента
func (bs *BoltStore) RecordInstall(rec InstallRecord) error {
	if rec.Component == "" {
		return fmt.Errorf("install record without component")
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = time.Now()
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return bs.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(installsBucket).Put(historyKey(rec.Component, rec.InstalledAt), encoded); err != nil {
			return err
		}
		return tx.Bucket(latestBucket).Put([]byte(rec.Component), encoded)
	})
}

// Latest возвращает последнюю установку компонента
func (bs *BoltStore) Latest(component string) (*InstallRecord, error) {
	var rec InstallRecord

	err := bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(latestBucket).Get([]byte(component))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, component)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// LatestAll возвращает последние установки всех компонентов, отсортированные по имени
func (bs *BoltStore) LatestAll() ([]InstallRecord, error) {
	records := []InstallRecord{}

	err := bs.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(latestBucket).ForEach(func(_, v []byte) error {
			var rec InstallRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// History возвращает все установки компонента в хронологическом порядке
func (bs *BoltStore) History(component string) ([]InstallRecord, error) {
	records := []InstallRecord{}
	prefix := historyPrefix(component)

	err := bs.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(installsBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec InstallRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Close закрывает хранилище
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
