package repos

import (
	"github.com/ltg-uic/beaconsync/internal/db"
)

// Target pairs a store with its repos. Every service operation takes its
// target explicitly; nothing here reaches for an ambient store.
type Target struct {
	Store *db.Store
	Repos *Set
}
