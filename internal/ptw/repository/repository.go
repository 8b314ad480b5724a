package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a compare-and-swap status update matched
	// no row: another transition won the race.
	ErrConflict = errors.New("record was modified concurrently")
)

// Repositories aggregates every repository over one db handle
type Repositories struct {
	Permit     *PermitRepository
	User       *UserRepository
	Location   *LocationRepository
	Contractor *ContractorRepository
}

// NewRepositories creates the repository aggregate
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Permit:     NewPermitRepository(db),
		User:       NewUserRepository(db),
		Location:   NewLocationRepository(db),
		Contractor: NewContractorRepository(db),
	}
}
