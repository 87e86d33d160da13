package history

import (
	"encoding/binary"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketEntries = "entries"

// BoltStore persists history in a bbolt database: one bucket, big-endian
// sequence-number keys, values of an 8-byte big-endian unix timestamp
// followed by the command text.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBolt opens or creates the history database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

func marshalEntry(e Entry) []byte {
	b := make([]byte, 8+len(e.Text))
	binary.BigEndian.PutUint64(b, uint64(e.Time.Unix()))
	copy(b[8:], e.Text)
	return b
}

// Append implements Store.
func (s *BoltStore) Append(e Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		return b.Put(marshalSeq(uint64(e.Seq)), marshalEntry(e))
	})
}

// Load implements Store. Records too short to carry a timestamp are
// skipped rather than treated as fatal, so a truncated trailing write
// cannot poison startup.
func (s *BoltStore) Load(limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketEntries)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			if len(k) != 8 || len(v) < 8 {
				continue
			}
			out = append(out, Entry{
				Seq:  int(unmarshalSeq(k)),
				Time: time.Unix(int64(binary.BigEndian.Uint64(v)), 0),
				Text: string(v[8:]),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Cursor walked newest first; flip to oldest first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close implements Store: prunes to at most keep entries, then closes the
// database.
func (s *BoltStore) Close(keep int) error {
	pruneErr := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		total := b.Stats().KeyN
		if keep <= 0 || total <= keep {
			return nil
		}

		var doomed [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && len(doomed) < total-keep; k, _ = c.Next() {
			key := make([]byte, len(k))
			copy(key, k)
			doomed = append(doomed, key)
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})

	closeErr := s.db.Close()
	if pruneErr != nil {
		return pruneErr
	}
	return closeErr
}
