// Package provdb keeps a history of link transitions in a bbolt file.
package provdb

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const (
	dbFilePermission = 0600
	dbName           = "provd.db"
)

var (
	linksBucket = []byte("links")
)

type DB struct {
	*bbolt.DB
	dbPath   string
	maxLinks int
}

type Config struct {
	// Dir holds the database file, it is created when missing.
	Dir string
	// MaxLinks bounds the stored history, zero keeps the default.
	MaxLinks int
}

const defaultMaxLinks = 256

func Open(config *Config) (*DB, error) {
	err := os.MkdirAll(config.Dir, 0700)
	if err != nil {
		return nil, errors.Errorf("could not create data dir %v: %v", config.Dir, err)
	}

	path := filepath.Join(config.Dir, dbName)

	bdb, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Errorf("could not open %v: %v", path, err)
	}

	db := &DB{
		DB:       bdb,
		dbPath:   path,
		maxLinks: config.MaxLinks,
	}

	if db.maxLinks <= 0 {
		db.maxLinks = defaultMaxLinks
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(linksBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Errorf("could not create buckets: %v", err)
	}

	return db, nil
}

func (db *DB) Path() string {
	return db.dbPath
}
