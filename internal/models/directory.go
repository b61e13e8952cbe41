package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project groups tickets. Read-only from the API's point of view.
type Project struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// User is an identity row keyed by the identity provider's subject id.
type User struct {
	ID         string    `gorm:"size:128;primaryKey" json:"id"`
	Email      string    `gorm:"size:320;uniqueIndex" json:"email"`
	Name       string    `json:"name"`
	Image      string    `json:"image"`
	ChatHandle string    `gorm:"size:128" json:"chatHandle,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Asset is an entry of the read-only asset directory.
type Asset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Tag       string    `gorm:"size:64;index" json:"tag"`
	Name      string    `gorm:"not null" json:"name"`
	Category  string    `gorm:"size:64;index" json:"category"`
	Location  string    `json:"location"`
	OwnerID   *string   `gorm:"size:128" json:"ownerId"`
	Status    string    `gorm:"size:32" json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate is a GORM hook that populates the primary key.
func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
