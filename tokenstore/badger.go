package tokenstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/token"
)

const (
	badgerRecordPrefix = "tok/"
	badgerIndexPrefix  = "idx/"
	badgerMaxRetries   = 5
)

// BadgerOptions configures an embedded Badger store.
type BadgerOptions struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string
	// InMemory keeps all data in RAM.
	InMemory bool
	// Namespace separates the access and refresh stores sharing one DB.
	Namespace string
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	Logger     *slog.Logger
}

// Badger stores records in an embedded Badger DB. Records carry their logical
// expiry; Badger's native TTL reclaims them after it passes. Tags are indexed
// by keys of the form
//
//	<ns>idx/<name>\x00<base64 value>\x00<raw token>
//
// so a reverse lookup is one prefix iteration.
type Badger[T token.Kind] struct {
	db     *badger.DB
	ns     string
	owned  bool
	logger *slog.Logger
	now    func() time.Time
}

// OpenBadgerDB opens a Badger database with a slog-backed logger.
func OpenBadgerDB(opts BadgerOptions) (*badger.DB, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("badger: dir is required")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}
	bopts.Logger = &badgerLogger{logger: logger}
	bopts.SyncWrites = opts.SyncWrites

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}
	return db, nil
}

// NewBadger opens a DB from opts and returns a store that closes it on Close.
func NewBadger[T token.Kind](opts BadgerOptions) (*Badger[T], error) {
	db, err := OpenBadgerDB(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s := NewBadgerWithDB[T](db, opts.Namespace, opts.Logger)
	s.owned = true
	return s, nil
}

// NewBadgerWithDB returns a store over an existing DB the caller owns.
func NewBadgerWithDB[T token.Kind](db *badger.DB, namespace string, logger *slog.Logger) *Badger[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Badger[T]{db: db, ns: namespace, logger: logger, now: time.Now}
}

func (s *Badger[T]) recordKey(raw string) []byte {
	return []byte(s.ns + badgerRecordPrefix + raw)
}

func (s *Badger[T]) indexScanPrefix(name string, value []byte) []byte {
	return []byte(s.ns + badgerIndexPrefix + name + "\x00" + base64.RawURLEncoding.EncodeToString(value) + "\x00")
}

func (s *Badger[T]) indexKey(name string, value []byte, raw string) []byte {
	return append(s.indexScanPrefix(name, value), raw...)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Badger[T]) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < badgerMaxRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func wrapBadger(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func readRecord(txn *badger.Txn, key []byte) (*record, *badger.Item, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil, ErrTokenNotFound
		}
		return nil, nil, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, nil, err
	}
	return rec, item, nil
}

func (s *Badger[T]) recordExpired(rec *record) bool {
	return rec.ExpiresAt != 0 && s.now().UnixMilli() >= rec.ExpiresAt
}

// entry builds a write that Badger evicts at expiresAt (unix seconds, 0 = never).
func entry(key, value []byte, expiresAt uint64) *badger.Entry {
	e := badger.NewEntry(key, value)
	e.ExpiresAt = expiresAt
	return e
}

// nativeExpiry rounds the logical expiry up to Badger's second resolution and
// adds the eviction grace. Records stored already expired stay visible for the
// grace period so the next read can report ErrTokenExpired.
func nativeExpiry(expMillis, nowMillis int64) uint64 {
	if expMillis == 0 {
		return 0
	}
	base := expMillis
	if base < nowMillis {
		base = nowMillis
	}
	return uint64((base + evictionGrace.Milliseconds() + 999) / 1000)
}

func (s *Badger[T]) deleteInTxn(txn *badger.Txn, raw string, rec *record) error {
	for name, value := range rec.Tags {
		if err := txn.Delete(s.indexKey(name, value, raw)); err != nil {
			return err
		}
	}
	return txn.Delete(s.recordKey(raw))
}

func (s *Badger[T]) Put(ctx context.Context, tok T, owner uuid.UUID, tags Tags, ttl time.Duration) error {
	raw := tok.Value().Key()
	rec := &record{Owner: owner, Tags: tags.Clone()}
	if ttl != NoExpiry {
		rec.ExpiresAt = s.now().Add(ttl).UnixMilli()
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	native := nativeExpiry(rec.ExpiresAt, s.now().UnixMilli())

	err = s.update(func(txn *badger.Txn) error {
		prev, _, err := readRecord(txn, s.recordKey(raw))
		switch {
		case err == nil:
			if err := s.deleteInTxn(txn, raw, prev); err != nil {
				return err
			}
		case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenInvalid):
		default:
			return err
		}

		if err := txn.SetEntry(entry(s.recordKey(raw), data, native)); err != nil {
			return err
		}
		for name, value := range rec.Tags {
			if err := txn.SetEntry(entry(s.indexKey(name, value, raw), nil, native)); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapBadger(err)
}

func (s *Badger[T]) Get(ctx context.Context, tok T) (uuid.UUID, error) {
	rec, err := s.live(tok)
	if err != nil {
		return uuid.Nil, err
	}
	return rec.Owner, nil
}

// live reads the record for tok, deleting it if it has expired.
func (s *Badger[T]) live(tok T) (*record, error) {
	raw := tok.Value().Key()

	var rec *record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, _, err = readRecord(txn, s.recordKey(raw))
		return err
	})
	if err != nil {
		return nil, wrapBadger(err)
	}
	if !s.recordExpired(rec) {
		return rec, nil
	}

	err = s.update(func(txn *badger.Txn) error {
		cur, _, err := readRecord(txn, s.recordKey(raw))
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				return nil
			}
			return err
		}
		if !s.recordExpired(cur) {
			return nil
		}
		return s.deleteInTxn(txn, raw, cur)
	})
	if err != nil {
		return nil, wrapBadger(err)
	}
	return nil, ErrTokenExpired
}

func (s *Badger[T]) Take(ctx context.Context, tok T) (uuid.UUID, error) {
	raw := tok.Value().Key()

	var owner uuid.UUID
	var wasExpired bool
	err := s.update(func(txn *badger.Txn) error {
		rec, _, err := readRecord(txn, s.recordKey(raw))
		if err != nil {
			return err
		}
		wasExpired = s.recordExpired(rec)
		owner = rec.Owner
		return s.deleteInTxn(txn, raw, rec)
	})
	if err != nil {
		return uuid.Nil, wrapBadger(err)
	}
	if wasExpired {
		return uuid.Nil, ErrTokenExpired
	}
	return owner, nil
}

func (s *Badger[T]) Delete(ctx context.Context, tok T) error {
	raw := tok.Value().Key()
	err := s.update(func(txn *badger.Txn) error {
		rec, _, err := readRecord(txn, s.recordKey(raw))
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				return nil
			}
			if errors.Is(err, ErrTokenInvalid) {
				return txn.Delete(s.recordKey(raw))
			}
			return err
		}
		return s.deleteInTxn(txn, raw, rec)
	})
	return wrapBadger(err)
}

func (s *Badger[T]) PutTag(ctx context.Context, tok T, name string, value []byte) error {
	raw := tok.Value().Key()
	err := s.update(func(txn *badger.Txn) error {
		rec, item, err := readRecord(txn, s.recordKey(raw))
		if err != nil {
			return err
		}
		if s.recordExpired(rec) {
			return ErrTokenNotFound
		}
		if old, ok := rec.Tags[name]; ok {
			if err := txn.Delete(s.indexKey(name, old, raw)); err != nil {
				return err
			}
		}
		if rec.Tags == nil {
			rec.Tags = Tags{}
		}
		rec.Tags[name] = append([]byte(nil), value...)

		data, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		native := item.ExpiresAt()
		if err := txn.SetEntry(entry(s.recordKey(raw), data, native)); err != nil {
			return err
		}
		return txn.SetEntry(entry(s.indexKey(name, value, raw), nil, native))
	})
	return wrapBadger(err)
}

func (s *Badger[T]) GetTag(ctx context.Context, tok T, name string) ([]byte, error) {
	rec, err := s.live(tok)
	if err != nil {
		return nil, err
	}
	v, ok := rec.Tags[name]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return v, nil
}

func (s *Badger[T]) GetByTag(ctx context.Context, name string, value []byte) ([]T, error) {
	prefix := s.indexScanPrefix(name, value)

	var out []T
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw := string(it.Item().Key()[len(prefix):])
			rec, _, err := readRecord(txn, s.recordKey(raw))
			if err != nil {
				if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenInvalid) {
					continue
				}
				return err
			}
			if s.recordExpired(rec) {
				continue
			}
			out = append(out, token.Wrap[T](token.FromBytes([]byte(raw))))
		}
		return nil
	})
	if err != nil {
		return nil, wrapBadger(err)
	}
	return out, nil
}

func (s *Badger[T]) DeleteByTag(ctx context.Context, name string, value []byte) (int, error) {
	toks, err := s.GetByTag(ctx, name, value)
	if err != nil {
		return 0, err
	}
	for _, tok := range toks {
		if err := s.Delete(ctx, tok); err != nil {
			return 0, err
		}
	}
	return len(toks), nil
}

func (s *Badger[T]) Kind() Backend { return BackendBadger }

// Close closes the DB when the store opened it.
func (s *Badger[T]) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
