package history

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketCharacters = []byte("characters")

// BoltBackend stores one JSON value per character in a bbolt bucket.
type BoltBackend struct {
	db *bbolt.DB
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCharacters); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketCharacters, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Load(ctx context.Context) (map[string]*Character, error) {
	chars := make(map[string]*Character)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCharacters).ForEach(func(k, v []byte) error {
			var c Character
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decode character %s: %w", k, err)
			}
			chars[string(k)] = &c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chars, nil
}

func (b *BoltBackend) Save(ctx context.Context, characters []Character) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCharacters)
		for _, c := range characters {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("encode character %s: %w", c.Character, err)
			}
			if err := bucket.Put([]byte(c.Character), data); err != nil {
				return fmt.Errorf("put character %s: %w", c.Character, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
