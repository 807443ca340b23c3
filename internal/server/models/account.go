package models

// Perk is a named capability. Names are unique across the perk table.
type Perk struct {
	ID          int64
	Name        string
	Description string
}

// Tier is a named bundle of perks.
type Tier struct {
	ID    int64
	Name  string
	Perks []Perk
}

// Account is the entitlement identity behind a user. TierID is nil when
// no tier is assigned, which grants no perks.
type Account struct {
	ID     int64
	UserID string
	TierID *int64
}
