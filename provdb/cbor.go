package provdb

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

var encMode cbor.EncMode

func init() {
	var err error

	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
}

func putCBOR(bucket *bbolt.Bucket, key []byte, v interface{}) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return errors.Errorf("could not marshal data: %v", err)
	}

	return bucket.Put(key, payload)
}

func getCBOR(payload []byte, v interface{}) error {
	err := cbor.Unmarshal(payload, v)
	if err != nil {
		return errors.Errorf("could not unmarshal data: %v", err)
	}

	return nil
}
