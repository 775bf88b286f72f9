package domain

import "time"

// Redactable field names governed by a domain policy.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldImages      = "images"
	FieldPrice       = "price"
	FieldBedrooms    = "bedrooms"
	FieldBathrooms   = "bathrooms"
	FieldAddress     = "address"
	FieldArea        = "area"
)

// MinimalPolicyFields is the field subset always storable for link-out
// listings regardless of republication rights.
var MinimalPolicyFields = []string{FieldTitle, FieldPrice, FieldBedrooms, FieldBathrooms, FieldArea}

// DomainPolicy holds per-source republication rules. Read-only input to the
// normalizer; immutable for the duration of a batch run.
type DomainPolicy struct {
	Domain             string      `db:"domain"               json:"domain"`
	AllowedToRepublish bool        `db:"allowed_to_republish" json:"allowed_to_republish"`
	FieldsAllowed      StringSlice `db:"fields_allowed"       json:"fields_allowed"`
	CreatedAt          time.Time   `db:"created_at"           json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"           json:"updated_at"`
}

// AllowsField reports whether the policy permits storing the named field.
func (p *DomainPolicy) AllowsField(name string) bool {
	for _, f := range p.FieldsAllowed {
		if f == name {
			return true
		}
	}
	return false
}
