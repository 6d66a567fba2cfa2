package modules

import (
	"context"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/Jeffail/gabs/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
)

// ConfigStore is the key/value settings table shared by all modules.
type ConfigStore struct {
	db      *gorm.DB
	dialect database.Dialect
}

func NewConfigStore(db *gorm.DB, dialect database.Dialect) *ConfigStore {
	return &ConfigStore{db: db, dialect: dialect}
}

// List returns every setting owned by moduleID ordered by key.
func (s *ConfigStore) List(ctx context.Context, moduleID uint) ([]models.ModuleConfig, error) {
	var out []models.ModuleConfig
	err := s.db.WithContext(ctx).Where("module_id = ?", moduleID).Order("key").Find(&out).Error
	return out, errors.WrapIf(err, "modules: failed to list module config")
}

// Get returns a single setting.
func (s *ConfigStore) Get(ctx context.Context, moduleID uint, key string) (*models.ModuleConfig, error) {
	var c models.ModuleConfig
	if err := s.db.WithContext(ctx).Where("module_id = ? AND key = ?", moduleID, key).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "modules: failed to load module config")
	}
	return &c, nil
}

// Set inserts the setting or replaces the value and type of an existing one.
// An empty type is stored as "string".
func (s *ConfigStore) Set(ctx context.Context, moduleID uint, key, value, typ string) (*models.ModuleConfig, error) {
	if typ == "" {
		typ = "string"
	}
	row := models.ModuleConfig{ModuleID: moduleID, Key: key, Value: value, Type: typ}
	err := s.dialect.Upsert(s.db.WithContext(ctx), []string{"module_id", "key"}, []string{"value", "type", "updated_at"}).
		Create(&row).Error
	if err != nil {
		return nil, errors.Wrap(err, "modules: failed to save module config")
	}
	return s.Get(ctx, moduleID, key)
}

// Delete removes a setting.
func (s *ConfigStore) Delete(ctx context.Context, moduleID uint, key string) error {
	res := s.db.WithContext(ctx).Where("module_id = ? AND key = ?", moduleID, key).Delete(&models.ModuleConfig{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "modules: failed to delete module config")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DataStore is the generic JSON document table shared by all modules.
// Uniqueness of (module, entity type, entity id) is enforced here rather
// than by the database.
type DataStore struct {
	db *gorm.DB
}

func NewDataStore(db *gorm.DB) *DataStore {
	return &DataStore{db: db}
}

// List returns the documents of an entity type, newest first. A limit of
// zero or less returns everything.
func (s *DataStore) List(ctx context.Context, moduleID uint, entityType string, limit, offset int) ([]models.ModuleData, error) {
	q := s.db.WithContext(ctx).
		Where("module_id = ? AND entity_type = ?", moduleID, entityType).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []models.ModuleData
	err := q.Find(&out).Error
	return out, errors.WrapIf(err, "modules: failed to list module data")
}

// Get returns a single document.
func (s *DataStore) Get(ctx context.Context, moduleID uint, entityType, entityID string) (*models.ModuleData, error) {
	return get(s.db.WithContext(ctx), moduleID, entityType, entityID)
}

// Create stores a new document. An empty entityID is replaced by the current
// Unix time in milliseconds.
func (s *DataStore) Create(ctx context.Context, moduleID uint, entityType, entityID string, data []byte) (*models.ModuleData, error) {
	if entityID == "" {
		entityID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	if !validJSON(data) {
		return nil, errors.WithStack(ErrInvalidDocument)
	}

	row := models.ModuleData{ModuleID: moduleID, EntityType: entityType, EntityID: entityID, Data: datatypes.JSON(data)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.ModuleData{}).
			Where("module_id = ? AND entity_type = ? AND entity_id = ?", moduleID, entityType, entityID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEntity
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, errors.WrapIf(err, "modules: failed to create module data")
	}
	return &row, nil
}

// Replace overwrites the document body.
func (s *DataStore) Replace(ctx context.Context, moduleID uint, entityType, entityID string, data []byte) (*models.ModuleData, error) {
	if !validJSON(data) {
		return nil, errors.WithStack(ErrInvalidDocument)
	}
	return s.update(ctx, moduleID, entityType, entityID, func([]byte) ([]byte, error) {
		return data, nil
	})
}

// Merge deep merges patch into the stored document. Objects are merged key
// by key; any other value in patch replaces the stored one.
func (s *DataStore) Merge(ctx context.Context, moduleID uint, entityType, entityID string, patch []byte) (*models.ModuleData, error) {
	p, err := gabs.ParseJSON(patch)
	if err != nil {
		return nil, errors.WithStack(ErrInvalidDocument)
	}
	return s.update(ctx, moduleID, entityType, entityID, func(current []byte) ([]byte, error) {
		cur, err := gabs.ParseJSON(current)
		if err != nil {
			cur = gabs.New()
		}
		if _, ok := cur.Data().(map[string]any); !ok {
			return p.Bytes(), nil
		}
		if _, ok := p.Data().(map[string]any); !ok {
			return p.Bytes(), nil
		}
		if err := cur.MergeFn(p, func(_, source any) any { return source }); err != nil {
			return nil, err
		}
		return cur.Bytes(), nil
	})
}

// Delete removes a document.
func (s *DataStore) Delete(ctx context.Context, moduleID uint, entityType, entityID string) error {
	res := s.db.WithContext(ctx).
		Where("module_id = ? AND entity_type = ? AND entity_id = ?", moduleID, entityType, entityID).
		Delete(&models.ModuleData{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "modules: failed to delete module data")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DataStore) update(ctx context.Context, moduleID uint, entityType, entityID string, fn func([]byte) ([]byte, error)) (*models.ModuleData, error) {
	var row *models.ModuleData
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, err = get(tx, moduleID, entityType, entityID); err != nil {
			return err
		}
		b, err := fn(row.Data)
		if err != nil {
			return err
		}
		row.Data = datatypes.JSON(b)
		return tx.Model(row).Updates(map[string]any{"data": row.Data, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, errors.WrapIf(err, "modules: failed to update module data")
	}
	return row, nil
}

func get(db *gorm.DB, moduleID uint, entityType, entityID string) (*models.ModuleData, error) {
	var d models.ModuleData
	err := db.Where("module_id = ? AND entity_type = ? AND entity_id = ?", moduleID, entityType, entityID).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "modules: failed to load module data")
	}
	return &d, nil
}

func validJSON(b []byte) bool {
	_, err := gabs.ParseJSON(b)
	return err == nil
}
