// Package storage persists bindings, selection cursors and app settings in
// sqlite through gorm.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/himanishpuri/HotRandomPad/internal/keys"
	"github.com/himanishpuri/HotRandomPad/internal/model"
	"github.com/himanishpuri/HotRandomPad/internal/selection"
	customlogger "github.com/himanishpuri/HotRandomPad/pkg/logger"
)

const DefaultDBFile = "hotrandompad.sqlite3"
const errDBClientNil = "db client is nil"

// SettingSelectedDevice holds the globally selected output device.
const SettingSelectedDevice = "selected_device"

var ErrBindingNotFound = errors.New("binding not found")

type DBClient struct {
	DB  *gorm.DB
	db  *sql.DB
	log *customlogger.Logger
}

// BindingRow is the stored shape of a binding, one row per hotkey label.
type BindingRow struct {
	Hotkey         string   `gorm:"primaryKey;type:varchar(128)"`
	Position       int      `gorm:"index:idx_binding_position"`
	KeyCombination []string `gorm:"serializer:json"`
	Files          []string `gorm:"serializer:json"`
	Mode           string   `gorm:"type:varchar(16)"`
	Volume         float64
	AllowOverlap   bool
	Device         string
	RRIndex        int
	ShuffledFiles  []string `gorm:"serializer:json"`
	ShuffledIndex  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Setting struct {
	Key       string `gorm:"primaryKey;column:name;type:varchar(64)"`
	Value     string
	UpdatedAt time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("HOTPAD_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// One writer: the cursor persister and the CLI share the file.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&BindingRow{}, &Setting{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB, log: customlogger.GetLogger().With("storage")}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ListBindings returns every stored binding in insertion order. Rows whose
// key combination no longer parses are skipped with a warning.
func (c *DBClient) ListBindings() ([]model.Binding, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []BindingRow
	if err := c.DB.Order("position ASC, hotkey ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing bindings: %w", err)
	}

	out := make([]model.Binding, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBinding()
		if err != nil {
			c.log.Warnf("skipping stored binding %q: %v", r.Hotkey, err)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *DBClient) GetBinding(hotkey string) (model.Binding, error) {
	if c == nil || c.DB == nil {
		return model.Binding{}, errors.New(errDBClientNil)
	}
	var row BindingRow
	err := c.DB.Where("hotkey = ?", hotkey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Binding{}, fmt.Errorf("%w: %s", ErrBindingNotFound, hotkey)
	}
	if err != nil {
		return model.Binding{}, fmt.Errorf("querying binding: %w", err)
	}
	return row.toBinding()
}

// SaveBinding inserts b or replaces the stored binding with the same hotkey,
// keeping its position in the list.
func (c *DBClient) SaveBinding(b model.Binding) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := b.Validate(); err != nil {
		return err
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		row := fromBinding(b)

		var existing BindingRow
		err := tx.Select("position", "created_at").Where("hotkey = ?", b.Hotkey).First(&existing).Error
		switch {
		case err == nil:
			row.Position = existing.Position
			row.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			pos, err := nextPosition(tx)
			if err != nil {
				return err
			}
			row.Position = pos
		default:
			return fmt.Errorf("querying existing binding: %w", err)
		}

		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("saving binding %q: %w", b.Hotkey, err)
		}
		return nil
	})
}

// ReplaceBindings swaps the whole stored set for bs in one transaction.
func (c *DBClient) ReplaceBindings(bs []model.Binding) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if err := model.ValidateSet(bs); err != nil {
		return err
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&BindingRow{}).Error; err != nil {
			return fmt.Errorf("clearing bindings: %w", err)
		}
		if len(bs) == 0 {
			return nil
		}
		rows := make([]BindingRow, 0, len(bs))
		for i, b := range bs {
			row := fromBinding(b)
			row.Position = i
			rows = append(rows, row)
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("inserting bindings: %w", err)
		}
		return nil
	})
}

func (c *DBClient) DeleteBinding(hotkey string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("hotkey = ?", hotkey).Delete(&BindingRow{})
	if res.Error != nil {
		return fmt.Errorf("deleting binding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrBindingNotFound, hotkey)
	}
	return nil
}

// PersistCursor stores the selection state of one binding. A binding
// deleted in the meantime is not an error.
func (c *DBClient) PersistCursor(hotkey string, cur selection.Cursor) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	queue := cur.Queue
	if queue == nil {
		queue = []string{}
	}
	err := c.DB.Model(&BindingRow{}).
		Where("hotkey = ?", hotkey).
		Select("RRIndex", "ShuffledFiles", "ShuffledIndex").
		Updates(&BindingRow{RRIndex: cur.RRIndex, ShuffledFiles: queue, ShuffledIndex: cur.Pos}).Error
	if err != nil {
		return fmt.Errorf("persisting cursor for %q: %w", hotkey, err)
	}
	return nil
}

func (c *DBClient) GetSetting(key string) (string, bool, error) {
	if c == nil || c.DB == nil {
		return "", false, errors.New(errDBClientNil)
	}
	var s Setting
	err := c.DB.Where("name = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	return s.Value, true, nil
}

func (c *DBClient) SetSetting(key, value string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

func (c *DBClient) SelectedDevice() (string, error) {
	v, _, err := c.GetSetting(SettingSelectedDevice)
	return v, err
}

func (c *DBClient) SetSelectedDevice(name string) error {
	return c.SetSetting(SettingSelectedDevice, name)
}

func nextPosition(tx *gorm.DB) (int, error) {
	var max sql.NullInt64
	if err := tx.Model(&BindingRow{}).Select("MAX(position)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("reading max position: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

func fromBinding(b model.Binding) BindingRow {
	queue := b.Cursor.Queue
	if queue == nil {
		queue = []string{}
	}
	return BindingRow{
		Hotkey:         b.Hotkey,
		KeyCombination: b.Chord.Strings(),
		Files:          append([]string{}, b.Files...),
		Mode:           b.Mode.String(),
		Volume:         b.Volume,
		AllowOverlap:   b.AllowOverlap,
		Device:         b.Device,
		RRIndex:        b.Cursor.RRIndex,
		ShuffledFiles:  queue,
		ShuffledIndex:  b.Cursor.Pos,
	}
}

func (r BindingRow) toBinding() (model.Binding, error) {
	chord, err := keys.ParseChord(r.KeyCombination)
	if err != nil {
		return model.Binding{}, fmt.Errorf("key_combination: %w", err)
	}
	mode, err := selection.ParseMode(r.Mode)
	if err != nil {
		return model.Binding{}, fmt.Errorf("mode: %w", err)
	}
	return model.Binding{
		Hotkey:       r.Hotkey,
		Chord:        chord,
		Files:        r.Files,
		Mode:         mode,
		Volume:       r.Volume,
		AllowOverlap: r.AllowOverlap,
		Device:       r.Device,
		Cursor: selection.Cursor{
			RRIndex: r.RRIndex,
			Queue:   r.ShuffledFiles,
			Pos:     r.ShuffledIndex,
		},
	}, nil
}
