// Package unitstore keeps named compiled units in SQLite so they can be
// executed later, possibly by another process.
package unitstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxUnitSize bounds the decompressed size of a stored unit.
const maxUnitSize = 64 << 20

var (
	// ErrNotFound is returned by Get and Delete for unknown names.
	ErrNotFound = errors.New("unit not found")
	// ErrCorrupt is returned when a stored unit no longer matches its digest.
	ErrCorrupt = errors.New("stored unit is corrupt")
)

// unitRecord is one stored unit. Blob holds the brotli-compressed bytes.
type unitRecord struct {
	Name      string `gorm:"primaryKey"`
	Digest    string `gorm:"not null"`
	Size      int    `gorm:"not null"`
	Blob      []byte `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (unitRecord) TableName() string { return "units" }

// Info describes a stored unit without its contents.
type Info struct {
	Name      string
	Digest    string // hex SHA-256 of the unit
	Size      int    // uncompressed size in bytes
	UpdatedAt time.Time
}

// Store is a SQLite-backed unit store. It is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// ValidateName rejects unit names that are empty, too long, or contain
// path separators or null bytes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("unit name must not be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("unit name too long")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("unit name contains path separator")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("unit name contains null byte")
	}
	return nil
}

// Open opens (or creates) the store at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening unit store %q: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening unit store %q: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		_ = db.Exec("PRAGMA journal_mode=WAL").Error
	}
	if err := db.AutoMigrate(&unitRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating unit store: %w", err)
	}
	return &Store{db: db}, nil
}

// Put stores unit under name, replacing any previous unit.
func (s *Store) Put(name string, unit []byte) (Info, error) {
	if err := ValidateName(name); err != nil {
		return Info{}, err
	}
	blob, err := compress(unit)
	if err != nil {
		return Info{}, fmt.Errorf("compressing unit %q: %w", name, err)
	}
	rec := unitRecord{
		Name:   name,
		Digest: digest(unit),
		Size:   len(unit),
		Blob:   blob,
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return Info{}, fmt.Errorf("storing unit %q: %w", name, err)
	}
	return rec.info(), nil
}

// Get returns the unit stored under name, verified against its digest.
func (s *Store) Get(name string) ([]byte, error) {
	var rec unitRecord
	err := s.db.Where("name = ?", name).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("unit %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading unit %q: %w", name, err)
	}
	unit, err := decompress(rec.Blob)
	if err != nil {
		return nil, fmt.Errorf("unit %q: %w: %v", name, ErrCorrupt, err)
	}
	if len(unit) != rec.Size || digest(unit) != rec.Digest {
		return nil, fmt.Errorf("unit %q: %w", name, ErrCorrupt)
	}
	return unit, nil
}

// List returns every stored unit ordered by name.
func (s *Store) List() ([]Info, error) {
	var recs []unitRecord
	err := s.db.Select("name", "digest", "size", "updated_at").Order("name").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	out := make([]Info, len(recs))
	for i := range recs {
		out[i] = recs[i].info()
	}
	return out, nil
}

// Delete removes the unit stored under name.
func (s *Store) Delete(name string) error {
	res := s.db.Where("name = ?", name).Delete(&unitRecord{})
	if res.Error != nil {
		return fmt.Errorf("deleting unit %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("unit %q: %w", name, ErrNotFound)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r unitRecord) info() Info {
	return Info{Name: r.Name, Digest: r.Digest, Size: r.Size, UpdatedAt: r.UpdatedAt}
}

func digest(unit []byte) string {
	sum := sha256.Sum256(unit)
	return hex.EncodeToString(sum[:])
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(blob))
	out, err := io.ReadAll(io.LimitReader(r, maxUnitSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxUnitSize {
		return nil, fmt.Errorf("unit exceeds %d bytes", maxUnitSize)
	}
	return out, nil
}
