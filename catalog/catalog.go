// Package catalog stores which coprocessors are attached to
// which tables. Region servers consult it when a region
// opens.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jrife/regionhost/coprocessor"
	"github.com/jrife/regionhost/utils/ids"
	"github.com/jrife/regionhost/utils/jsoncodec"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	// ErrNotAttached is returned by Detach when the class
	// is not attached to the table
	ErrNotAttached = errors.New("coprocessor is not attached to table")

	tablesBucket = []byte("tables")
)

// Config contains configuration for a Catalog
type Config struct {
	// Path of the bbolt file. Required.
	Path string
	// Logger defaults to zap.L()
	Logger *zap.Logger
}

// Catalog is a bbolt-backed store of coprocessor specs keyed
// by table and class
type Catalog struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens the catalog at config.Path, creating it if needed
func Open(config Config) (*Catalog, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	if config.Logger == nil {
		config.Logger = zap.L()
	}

	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open catalog at %s: %w", config.Path, err)
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(tablesBucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure root bucket exists: %w", err)
	}

	return &Catalog{
		db:     db,
		logger: config.Logger.With(zap.String("catalog", config.Path)),
	}, nil
}

// OpenTemp opens a catalog in a new file under os.TempDir().
// It is meant for tests; call Delete when done.
func OpenTemp(logger *zap.Logger) (*Catalog, error) {
	return Open(Config{
		Path:   fmt.Sprintf("%s/catalog-%s", os.TempDir(), ids.MustUUID()),
		Logger: logger,
	})
}

// Attach attaches the coprocessor described by spec to table,
// replacing any spec with the same class
func (catalog *Catalog) Attach(table string, spec coprocessor.Spec) error {
	if table == "" {
		return fmt.Errorf("table is required")
	}

	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid coprocessor spec: %w", err)
	}

	value, err := jsoncodec.Marshal(spec.WithDefaults())

	if err != nil {
		return fmt.Errorf("could not encode spec: %w", err)
	}

	if err := catalog.db.Update(func(txn *bolt.Tx) error {
		bucket, err := txn.Bucket(tablesBucket).CreateBucketIfNotExists([]byte(table))

		if err != nil {
			return err
		}

		return bucket.Put([]byte(spec.Class), value)
	}); err != nil {
		return fmt.Errorf("could not attach %s to %s: %w", spec.Class, table, err)
	}

	catalog.logger.Info("attached coprocessor", zap.String("table", table), zap.String("coprocessor", spec.Class))

	return nil
}

// Detach detaches class from table. Regions already open keep
// their environments until they close.
func (catalog *Catalog) Detach(table string, class string) error {
	if err := catalog.db.Update(func(txn *bolt.Tx) error {
		tables := txn.Bucket(tablesBucket)
		bucket := tables.Bucket([]byte(table))

		if bucket == nil || bucket.Get([]byte(class)) == nil {
			return ErrNotAttached
		}

		if err := bucket.Delete([]byte(class)); err != nil {
			return err
		}

		if key, _ := bucket.Cursor().First(); key == nil {
			return tables.DeleteBucket([]byte(table))
		}

		return nil
	}); err != nil {
		return fmt.Errorf("could not detach %s from %s: %w", class, table, err)
	}

	catalog.logger.Info("detached coprocessor", zap.String("table", table), zap.String("coprocessor", class))

	return nil
}

// Specs returns the specs attached to table ordered by
// priority then class
func (catalog *Catalog) Specs(ctx context.Context, table string) ([]coprocessor.Spec, error) {
	specs := []coprocessor.Spec{}

	if err := catalog.db.View(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(tablesBucket).Bucket([]byte(table))

		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(key, value []byte) error {
			var spec coprocessor.Spec

			if err := jsoncodec.Unmarshal(value, &spec); err != nil {
				return fmt.Errorf("could not decode spec %s: %w", key, err)
			}

			specs = append(specs, spec)

			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("could not read specs of %s: %w", table, err)
	}

	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}

		return specs[i].Class < specs[j].Class
	})

	return specs, nil
}

// Tables returns every table with at least one coprocessor
// attached, in sorted order
func (catalog *Catalog) Tables() ([]string, error) {
	tables := []string{}

	if err := catalog.db.View(func(txn *bolt.Tx) error {
		return txn.Bucket(tablesBucket).ForEach(func(key, value []byte) error {
			// Nested buckets have a nil value
			if value == nil {
				tables = append(tables, string(key))
			}

			return nil
		})
	}); err != nil {
		return nil, fmt.Errorf("could not list tables: %w", err)
	}

	return tables, nil
}

// Backup writes a consistent copy of the catalog file to w
func (catalog *Catalog) Backup(w io.Writer) (int64, error) {
	var n int64

	err := catalog.db.View(func(txn *bolt.Tx) error {
		var err error
		n, err = txn.WriteTo(w)

		return err
	})

	return n, err
}

// Close closes the catalog
func (catalog *Catalog) Close() error {
	return catalog.db.Close()
}

// Delete closes the catalog and removes its file
func (catalog *Catalog) Delete() error {
	path := catalog.db.Path()

	if err := catalog.Close(); err != nil {
		return fmt.Errorf("could not close catalog: %w", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", path, err)
	}

	return nil
}
