package profile

import "time"

// Profile is the user's own medical profile, used when they assess
// themselves.
type Profile struct {
	UserID      string    `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Age         int       `db:"age" json:"age,omitempty"`
	Gender      string    `db:"gender" json:"gender,omitempty"`
	WeightKg    float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm    float64   `db:"height_cm" json:"height_cm,omitempty"`
	BloodType   string    `db:"blood_type" json:"blood_type,omitempty"`
	Conditions  []string  `db:"conditions" json:"conditions"`
	Allergies   []string  `db:"allergies" json:"allergies"`
	Medications []string  `db:"medications" json:"medications"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
