package models

import "github.com/google/uuid"

// assignID gives rows created without an explicit id a random one, so the id
// is known before the INSERT returns.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
