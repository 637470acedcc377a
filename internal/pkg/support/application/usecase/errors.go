package usecase

import (
	"errors"
	"fmt"

	repository "github.com/Grozay/GreenKitchenWeb-sub002/internal/pkg/support/persistence/repository/port"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("support use case persistence error")

var (
	ErrNotFound      = errors.New("support: conversation not found")
	ErrClaimConflict = errors.New("support: conversation already claimed by another employee")
	ErrNotOwner      = errors.New("support: conversation is not owned by the caller")
	ErrNotAuthorized = errors.New("support: caller may not access this conversation")
	ErrInvalidInput  = errors.New("support: invalid input")
)

// repoErr maps repository failures onto use case errors; anything unknown is a persistence error.
func repoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
