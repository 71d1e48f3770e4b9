package model

import "time"

// SlotBlock is an administrator-imposed exclusion for a whole day or a specific time
type SlotBlock struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Time      *string   `json:"time"` // nil - заблокирован весь день
	Reason    string    `json:"reason"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// WholeDay checks if the block covers the entire date
func (b *SlotBlock) WholeDay() bool {
	return b.Time == nil
}
