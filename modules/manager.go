package modules

import (
	"context"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/apex/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/events"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
)

// Columns refreshed when an installed module is written again. Active and
// sort order belong to the administrator and are left alone.
var installedUpsertColumns = []string{
	"name", "description", "version", "path", "icon", "color", "type",
	"remote_entry", "permissions", "has_widget", "server_port", "updated_at",
}

var devUpsertColumns = []string{
	"name", "description", "version", "path", "icon", "color", "type", "active",
	"remote_entry", "permissions", "has_widget", "server_port", "updated_at",
}

// Registry is the database backed list of modules known to the chassi.
type Registry struct {
	db      *gorm.DB
	dialect database.Dialect
	events  Publisher
}

// NewRegistry returns a registry using db. A nil publisher disables events.
func NewRegistry(db *gorm.DB, dialect database.Dialect, publisher Publisher) *Registry {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Registry{db: db, dialect: dialect, events: publisher}
}

// DB returns the underlying connection.
func (r *Registry) DB() *gorm.DB {
	return r.db
}

// Dialect returns the dialect the registry writes with.
func (r *Registry) Dialect() database.Dialect {
	return r.dialect
}

// List returns modules ordered for the launcher.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]models.Module, error) {
	q := r.db.WithContext(ctx).Order("sort_order").Order("name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.Module
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.Wrap(err, "modules: failed to list modules")
	}
	return out, nil
}

// Get returns the module registered under slug.
func (r *Registry) Get(ctx context.Context, slug string) (*models.Module, error) {
	var m models.Module
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, errors.Wrap(err, "modules: failed to load module")
	}
	return &m, nil
}

// GetByID returns the module with the given primary key.
func (r *Registry) GetByID(ctx context.Context, id uint) (*models.Module, error) {
	var m models.Module
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, errors.Wrap(err, "modules: failed to load module")
	}
	return &m, nil
}

// SaveInstalled writes the registry row for a freshly extracted module. New
// rows start active; existing rows keep their active flag and sort order.
func (r *Registry) SaveInstalled(ctx context.Context, m *Manifest, path string) (*models.Module, error) {
	_, err := r.Get(ctx, m.Slug)
	existed := err == nil
	if err != nil && !errors.Is(err, ErrModuleNotFound) {
		return nil, err
	}

	row := rowFromManifest(m)
	row.Path = path
	row.Type = models.ModuleTypeInstalled
	row.Active = true
	if err := r.dialect.Upsert(r.db.WithContext(ctx), []string{"slug"}, installedUpsertColumns).Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "modules: failed to save module")
	}

	saved, err := r.Get(ctx, m.Slug)
	if err != nil {
		return nil, err
	}
	topic := events.TopicInstalled
	if existed {
		topic = events.TopicUpdated
	}
	r.events.Publish(topic, saved.Slug, saved)
	return saved, nil
}

// SaveDev upserts a module found by dev discovery and marks it active.
func (r *Registry) SaveDev(ctx context.Context, m *Manifest, baseURL string, remoteEntry string) (*models.Module, error) {
	prev, err := r.Get(ctx, m.Slug)
	if err != nil && !errors.Is(err, ErrModuleNotFound) {
		return nil, err
	}

	row := rowFromManifest(m)
	row.Path = baseURL
	row.Type = models.ModuleTypeDev
	row.Active = true
	row.RemoteEntry = remoteEntry
	if err := r.dialect.Upsert(r.db.WithContext(ctx), []string{"slug"}, devUpsertColumns).Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "modules: failed to save dev module")
	}

	saved, err := r.Get(ctx, m.Slug)
	if err != nil {
		return nil, err
	}
	if prev == nil || !prev.Active || prev.RemoteEntry != saved.RemoteEntry || prev.Version != saved.Version {
		r.events.Publish(events.TopicDiscovered, saved.Slug, saved)
	}
	return saved, nil
}

// DeactivateDevExcept flips every active dev module whose slug is not in
// seen to inactive and returns the affected slugs. Rows are never deleted.
func (r *Registry) DeactivateDevExcept(ctx context.Context, seen []string) ([]string, error) {
	q := r.db.WithContext(ctx).Model(&models.Module{}).
		Where("type = ? AND active = ?", models.ModuleTypeDev, true)
	if len(seen) > 0 {
		q = q.Where("slug NOT IN ?", seen)
	}

	var slugs []string
	if err := q.Session(&gorm.Session{}).Pluck("slug", &slugs).Error; err != nil {
		return nil, errors.Wrap(err, "modules: failed to find stale dev modules")
	}
	if len(slugs) == 0 {
		return nil, nil
	}

	err := r.db.WithContext(ctx).Model(&models.Module{}).
		Where("slug IN ? AND type = ?", slugs, models.ModuleTypeDev).
		Update("active", false).Error
	if err != nil {
		return nil, errors.Wrap(err, "modules: failed to deactivate dev modules")
	}
	for _, s := range slugs {
		r.events.Publish(events.TopicDeactivated, s, nil)
	}
	return slugs, nil
}

// ModuleUpdate holds the administrator editable fields of a module. Nil
// fields are left unchanged.
type ModuleUpdate struct {
	Name      *string `json:"name"`
	Icon      *string `json:"icon"`
	Color     *string `json:"color"`
	Active    *bool   `json:"active"`
	SortOrder *int    `json:"sort_order"`
}

// Update applies u to the module registered under slug.
func (r *Registry) Update(ctx context.Context, slug string, u ModuleUpdate) (*models.Module, error) {
	m, err := r.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	changes := map[string]any{}
	if u.Name != nil {
		if *u.Name == "" {
			verr.add("name", "is required")
		}
		changes["name"] = *u.Name
	}
	if u.Icon != nil {
		changes["icon"] = *u.Icon
	}
	if u.Color != nil {
		if !colorPattern.MatchString(*u.Color) {
			verr.add("color", "must be a hex color like #RRGGBB")
		}
		changes["color"] = *u.Color
	}
	if u.Active != nil {
		changes["active"] = *u.Active
	}
	if u.SortOrder != nil {
		changes["sort_order"] = *u.SortOrder
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if len(changes) == 0 {
		return m, nil
	}

	if err := r.db.WithContext(ctx).Model(&models.Module{}).Where("id = ?", m.ID).Updates(changes).Error; err != nil {
		return nil, errors.Wrap(err, "modules: failed to update module")
	}
	if m, err = r.Get(ctx, slug); err != nil {
		return nil, err
	}
	r.events.Publish(events.TopicUpdated, m.Slug, m)
	return m, nil
}

// Reorder assigns sort orders following the order of slugs.
func (r *Registry) Reorder(ctx context.Context, slugs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, slug := range slugs {
			res := tx.Model(&models.Module{}).Where("slug = ?", slug).Update("sort_order", i)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errors.WithDetails(ErrModuleNotFound, "slug", slug)
			}
		}
		return nil
	})
	if err != nil {
		return errors.WrapIf(err, "modules: failed to reorder modules")
	}
	r.events.Publish(events.TopicUpdated, "", slugs)
	return nil
}

// Delete removes a module together with its config and data rows. Installed
// modules also lose their directory below root. Migration records are kept
// so a later reinstall does not replay them against existing tables.
func (r *Registry) Delete(ctx context.Context, slug string, root string) error {
	m, err := r.Get(ctx, slug)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("module_id = ?", m.ID).Delete(&models.ModuleConfig{}).Error; err != nil {
			return err
		}
		if err := tx.Where("module_id = ?", m.ID).Delete(&models.ModuleData{}).Error; err != nil {
			return err
		}
		return tx.Delete(m).Error
	})
	if err != nil {
		return errors.Wrap(err, "modules: failed to delete module")
	}

	if m.Type == models.ModuleTypeInstalled && root != "" {
		dir := filepath.Join(root, m.Slug)
		if err := os.RemoveAll(dir); err != nil {
			log.WithField("module", slug).WithField("path", dir).WithField("error", err).Warn("failed to remove module directory")
		}
	}

	r.events.Publish(events.TopicRemoved, slug, nil)
	return nil
}

// Counts summarises the registry for system information.
type Counts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Installed int64 `json:"installed"`
	Dev       int64 `json:"dev"`
}

func (r *Registry) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := r.db.WithContext(ctx).Model(&models.Module{})
	if err := db.Session(&gorm.Session{}).Count(&c.Total).Error; err != nil {
		return c, errors.WithStack(err)
	}
	if err := db.Session(&gorm.Session{}).Where("active = ?", true).Count(&c.Active).Error; err != nil {
		return c, errors.WithStack(err)
	}
	if err := db.Session(&gorm.Session{}).Where("type = ?", models.ModuleTypeInstalled).Count(&c.Installed).Error; err != nil {
		return c, errors.WithStack(err)
	}
	c.Dev = c.Total - c.Installed
	return c, nil
}

func rowFromManifest(m *Manifest) models.Module {
	return models.Module{
		Slug:        m.Slug,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Icon:        m.Icon,
		Color:       m.Color,
		Permissions: datatypes.NewJSONSlice(m.Permissions),
		HasWidget:   m.HasWidget,
		ServerPort:  m.ServerPort,
	}
}
