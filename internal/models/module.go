package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ModuleTypeInstalled = "installed"
	ModuleTypeDev       = "dev"
)

// Module is a registry row for an installed or dev-discovered module. The
// slug is the registry key; every writer upserts by it.
type Module struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Version     string `gorm:"size:64;not null" json:"version"`
	Icon        string `gorm:"size:64" json:"icon"`
	Color       string `gorm:"size:16" json:"color"`
	Path        string `gorm:"type:text" json:"path"`
	Active      bool   `gorm:"not null" json:"active"`
	Type        string `gorm:"size:16;not null;index" json:"type"`
	RemoteEntry string `gorm:"type:text" json:"remote_entry,omitempty"`
	SortOrder   int    `gorm:"not null;default:0" json:"sort_order"`

	Permissions datatypes.JSONSlice[string] `json:"permissions"`
	HasWidget   bool                        `gorm:"not null;default:false" json:"has_widget"`
	ServerPort  int                         `json:"server_port"`
}

// IsDev reports whether the row was registered by dev discovery.
func (m *Module) IsDev() bool {
	return m.Type == ModuleTypeDev
}

// ModuleMigration records a migration file that has been applied for a
// module. Rows are never updated and survive module deletion.
type ModuleMigration struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	ModuleSlug    string    `gorm:"size:128;not null;uniqueIndex:idx_module_migration" json:"module_slug"`
	MigrationName string    `gorm:"size:255;not null;uniqueIndex:idx_module_migration" json:"migration_name"`
	AppliedAt     time.Time `gorm:"not null" json:"applied_at"`
}

// ModuleConfig is a single key/value setting owned by a module.
type ModuleConfig struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ModuleID uint   `gorm:"not null;uniqueIndex:idx_module_config_key" json:"module_id"`
	Key      string `gorm:"size:255;not null;uniqueIndex:idx_module_config_key" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
	Type     string `gorm:"size:32;not null;default:string" json:"type"`
}

// ModuleData is a JSON document stored on behalf of a module. The chassi
// never looks inside Data.
type ModuleData struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ModuleID   uint           `gorm:"not null;index:idx_module_data_entity" json:"module_id"`
	EntityType string         `gorm:"size:128;not null;index:idx_module_data_entity" json:"entity_type"`
	EntityID   string         `gorm:"size:255;not null;index:idx_module_data_entity" json:"entity_id"`
	Data       datatypes.JSON `json:"data"`
}

func (ModuleData) TableName() string {
	return "module_data"
}
