package models

import "github.com/google/uuid"

type Budget struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Category       string    `gorm:"index" json:"category,omitempty"`
	Currency       string    `gorm:"size:3;default:'USD'" json:"currency"`
	AmountCents    int64     `gorm:"default:0" json:"amount_cents"`

	// Period (Unix timestamps, UTC)
	PeriodStart int64 `json:"period_start"`
	PeriodEnd   int64 `json:"period_end"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Scenarios    []Scenario    `gorm:"foreignKey:BudgetID" json:"scenarios,omitempty"`
}

func (Budget) TableName() string {
	return "budgets"
}

// Scenario is a what-if projection attached to a budget. Assumptions are an
// opaque JSON document owned by the client.
type Scenario struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organization_id"`
	BudgetID       uuid.UUID `gorm:"type:uuid;index;not null" json:"budget_id"`
	Name           string    `gorm:"not null" json:"name"`
	Assumptions    string    `gorm:"type:jsonb;default:'{}'" json:"assumptions,omitempty"`
	ProjectedCents int64     `gorm:"default:0" json:"projected_cents"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	Budget       *Budget       `gorm:"foreignKey:BudgetID" json:"-"`
}

func (Scenario) TableName() string {
	return "scenarios"
}
