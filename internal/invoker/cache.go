package invoker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// CacheOptions configures the response cache.
type CacheOptions struct {
	// Dir holds the badger data files; ignored when InMemory is set.
	Dir      string
	InMemory bool
	TTL      time.Duration
	Logger   logger.Logger
}

// Cache stores validated outputs keyed by candidate and payload.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

type cacheEntry struct {
	Text      string    `msgpack:"text"`
	Image     []byte    `msgpack:"image,omitempty"`
	Model     string    `msgpack:"model"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// OpenCache opens (or creates) the cache database.
func OpenCache(opts CacheOptions) (*Cache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("cache: dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: opts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db, ttl: opts.TTL}, nil
}

// CacheKey hashes everything that influences a backend's output.
func CacheKey(c models.BackendCandidate, p Payload) string {
	h := sha256.New()
	for _, part := range []string{
		c.Provider, c.Model,
		strconv.FormatFloat(c.Temperature, 'f', -1, 64),
		strconv.Itoa(c.MaxTokens),
		strconv.FormatFloat(c.TopP, 'f', -1, 64),
		strconv.Itoa(int(p.Kind)),
		p.System, p.Prompt, p.NegativePrompt,
		strconv.Itoa(p.Width), strconv.Itoa(p.Height), strconv.Itoa(p.Steps),
		strconv.FormatFloat(p.Guidance, 'f', -1, 64),
		strconv.FormatInt(p.Seed, 10),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "resp:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached output. Misses and decode errors both report false.
func (c *Cache) Get(key string) (Output, bool) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return Output{}, false
	}

	var entry cacheEntry
	if err := msgpack.Unmarshal(val, &entry); err != nil {
		return Output{}, false
	}
	return Output{Text: entry.Text, Image: entry.Image, Model: entry.Model, Cached: true}, true
}

// Put stores out under key with the configured TTL.
func (c *Cache) Put(key string, out Output) error {
	data, err := msgpack.Marshal(cacheEntry{
		Text:      out.Text,
		Image:     out.Image,
		Model:     out.Model,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close flushes and closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// badgerLogger forwards badger warnings and errors, dropping info and debug.
type badgerLogger struct {
	log logger.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Errorf("[badger] "+f, v...)
	}
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Warnf("[badger] "+f, v...)
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
