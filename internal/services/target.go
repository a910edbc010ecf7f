package services

import (
	"github.com/ltg-uic/beaconsync/internal/repos"
)

// Target is the store-plus-repos pair every service operation addresses.
type Target = repos.Target
