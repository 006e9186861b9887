package options

import (
	"time"

	"gorm.io/datatypes"
)

type Option struct {
	Name      string         `gorm:"column:option_name;primaryKey;size:191" json:"option_name"`
	Value     datatypes.JSON `gorm:"column:option_value" json:"option_value"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Option) TableName() string { return "options" }
