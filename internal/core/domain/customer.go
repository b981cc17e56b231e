package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is an external collaborator of the order core: only its
// existence and active flag matter here. Customer management lives
// elsewhere.
type Customer struct {
	ID        uuid.UUID
	Name      string
	Email     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}
