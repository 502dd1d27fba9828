package store

import (
	"os"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/compression"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/logger"
)

// FormatVersion is the on-disk layout version written to new stores.
const FormatVersion = 1

var (
	metaBucket  = []byte("\x00meta")
	versionKey  = []byte("format_version")
	schemaKey   = []byte("\x00schema")
	attrsBucket = []byte("\x00attrs")
	colsBucket  = []byte("\x00cols")
)

// Options configures how a store is opened.
type Options struct {
	// Compression is applied to every block written through this handle.
	Compression *compression.Config
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
	// ReadOnly opens an existing store with a shared lock.
	ReadOnly bool
	// FileMode is used when the file is created.
	FileMode os.FileMode
	// Logger receives debug output; defaults to the global logger.
	Logger *zap.Logger
}

// DefaultOptions returns zlib level 9 compression and a one second lock timeout.
func DefaultOptions() *Options {
	return &Options{
		Compression: compression.DefaultConfig(),
		Timeout:     time.Second,
		FileMode:    0o644,
	}
}

// Store is an open handle on a container file.
type Store struct {
	db       *bolt.DB
	path     string
	readOnly bool
	comp     compression.Compressor
	codecs   *compression.Registry
	logger   *zap.Logger
}

// Open opens the store at path, creating it unless opts.ReadOnly is set.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	compCfg := opts.Compression
	if compCfg == nil {
		compCfg = compression.DefaultConfig()
	}
	comp, err := compression.NewCompressor(compCfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid store compression")
	}
	mode := opts.FileMode
	if mode == 0 {
		mode = 0o644
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	if opts.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open store").
				WithDetail("path", path)
		}
	}

	db, err := bolt.Open(path, mode, &bolt.Options{Timeout: opts.Timeout, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to open store").
			WithDetail("path", path)
	}

	s := &Store{
		db:       db,
		path:     path,
		readOnly: opts.ReadOnly,
		comp:     comp,
		codecs:   compression.NewRegistry(compCfg.Level),
		logger:   log.With(zap.String("store", path)),
	}

	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// initialize writes the format marker on new stores and checks it on old ones.
func (s *Store) initialize() error {
	check := func(tx *bolt.Tx) error {
		meta := tx.Bucket(metaBucket)
		if meta == nil {
			if s.readOnly {
				return nil
			}
			var err error
			if meta, err = tx.CreateBucket(metaBucket); err != nil {
				return err
			}
			v, _ := json.Marshal(FormatVersion)
			return meta.Put(versionKey, v)
		}
		var version int
		if raw := meta.Get(versionKey); raw != nil {
			if err := json.Unmarshal(raw, &version); err != nil {
				return err
			}
		}
		if version > FormatVersion {
			return errors.Newf(errors.ErrorTypeStorage, "store format version %d is newer than supported version %d", version, FormatVersion)
		}
		return nil
	}

	var err error
	if s.readOnly {
		err = s.db.View(check)
	} else {
		err = s.db.Update(check)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to initialize store")
	}
	return nil
}

// Path returns path to the store's data file.
func (s *Store) Path() string { return s.path }

// Close closes the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to close store")
	}
	return nil
}

// Update runs fn in a read-write transaction. All appends made by fn are
// committed together, or not at all when fn returns an error.
func (s *Store) Update(fn func(tx *Tx) error) error {
	if s.readOnly {
		return errors.Wrap(ErrReadOnly, errors.ErrorTypeStorage, "update rejected")
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx, s: s})
	})
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(tx *Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&Tx{tx: btx, s: s})
	})
}

// Append appends f to the table at path in its own transaction.
func (s *Store) Append(path string, f *columnar.Frame, opts AppendOptions) (AppendResult, error) {
	var res AppendResult
	err := s.Update(func(tx *Tx) error {
		var err error
		res, err = tx.Append(path, f, opts)
		return err
	})
	return res, err
}

// SetAttr sets one attribute in its own transaction.
func (s *Store) SetAttr(path, name string, value interface{}) error {
	return s.Update(func(tx *Tx) error {
		return tx.SetAttr(path, name, value)
	})
}

// Attr decodes one attribute into dst.
func (s *Store) Attr(path, name string, dst interface{}) error {
	return s.View(func(tx *Tx) error {
		return tx.Attr(path, name, dst)
	})
}

// Attrs returns all attributes of a node as raw JSON.
func (s *Store) Attrs(path string) (map[string][]byte, error) {
	var out map[string][]byte
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Attrs(path)
		return err
	})
	return out, err
}

// Has reports whether path exists.
func (s *Store) Has(path string) (bool, error) {
	var ok bool
	err := s.View(func(tx *Tx) error {
		var err error
		ok, err = tx.Has(path)
		return err
	})
	return ok, err
}

// Tables lists every table path.
func (s *Store) Tables() ([]string, error) {
	var out []string
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Tables()
		return err
	})
	return out, err
}

// Table describes the table at path.
func (s *Store) Table(path string) (*TableInfo, error) {
	var out *TableInfo
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Table(path)
		return err
	})
	return out, err
}

// ReadColumn reads one full column.
func (s *Store) ReadColumn(path, column string) ([]string, error) {
	var out []string
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.ReadColumn(path, column)
		return err
	})
	return out, err
}

// Select runs q against the table at path.
func (s *Store) Select(path string, q Query) (*columnar.Frame, error) {
	var out *columnar.Frame
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Select(path, q)
		return err
	})
	return out, err
}
