package provdb

import (
	"encoding/binary"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

// LinkRecord is one link transition. Secrets are never stored.
type LinkRecord struct {
	Time  time.Time `cbor:"time"`
	State string    `cbor:"state"`
	SSID  string    `cbor:"ssid,omitempty"`
}

// AddLinkRecord appends record and drops the oldest records beyond the
// configured bound.
func (db *DB) AddLinkRecord(record *LinkRecord) error {
	return db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(linksBucket)

		seq, err := bucket.NextSequence()
		if err != nil {
			return errors.Errorf("could not get next sequence: %v", err)
		}

		err = putCBOR(bucket, itob(seq), record)
		if err != nil {
			return err
		}

		// keys are sequence numbers and only the oldest get pruned, so the
		// stored records form one contiguous range
		c := bucket.Cursor()

		first, _ := c.First()
		count := int(seq - binary.BigEndian.Uint64(first) + 1)

		excess := count - db.maxLinks
		if excess <= 0 {
			return nil
		}

		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			err := c.Delete()
			if err != nil {
				return errors.Errorf("could not prune record: %v", err)
			}
			excess--
		}

		return nil
	})
}

// History returns up to n of the latest records, oldest first.
func (db *DB) History(n int) ([]*LinkRecord, error) {
	var records []*LinkRecord

	err := db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(linksBucket).Cursor()

		for k, v := c.Last(); k != nil && len(records) < n; k, v = c.Prev() {
			record := &LinkRecord{}

			err := getCBOR(v, record)
			if err != nil {
				return err
			}

			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// Last returns the newest record, nil when there is none.
func (db *DB) Last() (*LinkRecord, error) {
	records, err := db.History(1)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	return records[0], nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}
