package model

import (
	"time"

	"github.com/google/uuid"
)

// ProductGroup links the same physical product across retailers.
// Model is the natural key when the retailers expose one (SKU/MPN);
// groups without a model are reachable only by ID.
// A group is immutable after creation — it is only ever deleted, either
// explicitly (cascading to its products) or lazily once its last member
// product is removed.
type ProductGroup struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Model     *string   `gorm:"uniqueIndex"`
	Name      string    `gorm:"not null"`
	Brand     string
	Category  string
	CreatedAt time.Time

	Products []Product `gorm:"foreignKey:GroupID"`
}

func (ProductGroup) TableName() string { return "product_groups" }
