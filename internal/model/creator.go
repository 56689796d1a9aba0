// internal/model/creator.go
package model

// Creator is a roster member. The roster is owned externally; the
// allocation code only reads it.
type Creator struct {
	ID              string `db:"id" json:"id"`
	Name            string `db:"name" json:"name"`
	InstagramHandle string `db:"instagram_handle" json:"instagram_handle"`
	City            string `db:"city" json:"city"`
	Status          string `db:"status" json:"status"` // active, paused, archived
}
