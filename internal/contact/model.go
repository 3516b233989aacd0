package contact

import (
	"time"

	"github.com/google/uuid"
)

// Type tells a general contact message from a property enquiry.
type Type string

const (
	TypeContact Type = "contact"
	TypeEnquiry Type = "enquiry"
)

func (t Type) Valid() bool {
	return t == TypeContact || t == TypeEnquiry
}

type Contact struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Number    string    `json:"number"`
	City      string    `json:"city,omitempty"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListFilter selects a page of submissions. An empty Type matches both.
type ListFilter struct {
	Type   Type
	Limit  int
	Offset int
}
