package entity

// Patch is a partial update reported by the simulation host. A nil pointer
// means the field was absent from the report and is left untouched.
type Patch struct {
	Category           *string  `json:"category,omitempty"`
	Alive              *bool    `json:"alive,omitempty"`
	Human              *bool    `json:"human,omitempty"`
	Coalition          *uint8   `json:"coalition,omitempty"`
	Country            *uint8   `json:"country,omitempty"`
	Name               *string  `json:"name,omitempty"`
	UnitName           *string  `json:"unitName,omitempty"`
	GroupName          *string  `json:"groupName,omitempty"`
	Position           *Coords  `json:"position,omitempty"`
	Speed              *float64 `json:"speed,omitempty"`
	HorizontalVelocity *float64 `json:"horizontalVelocity,omitempty"`
	VerticalVelocity   *float64 `json:"verticalVelocity,omitempty"`
	Heading            *float64 `json:"heading,omitempty"`
	IsLeader           *bool    `json:"isLeader,omitempty"`
	Fuel               *float64 `json:"fuel,omitempty"`
	Task               *string  `json:"task,omitempty"`
	HasTask            *bool    `json:"hasTask,omitempty"`
}

// Ptr returns a pointer to v. It keeps Patch literals short.
func Ptr[T any](v T) *T { return &v }

// Update is a Patch addressed to one entity.
type Update struct {
	ID uint32 `json:"id"`
	Patch
}
