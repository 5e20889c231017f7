package models

import (
	"time"

	"gorm.io/gorm"
)

// VendingMachine is a thin slice of the machines module: the reconciliation
// engine only needs machine codes for filter validation and per-machine
// grouping. Full machine CRUD lives outside this subsystem.
type VendingMachine struct {
	ID        uint           `gorm:"primary_key" json:"id"`
	Code      string         `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Location  string         `gorm:"size:255" json:"location"`
	Status    MachineStatus  `gorm:"type:enum('active', 'offline', 'disabled');default:active" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
