package usecase

import (
	"errors"
	"fmt"

	chat "github.com/360john360/childnur-sub000/internal/pkg/chat/application/domain"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = errors.New("chat use case persistence error")

// wrapRepoError passes domain errors through and tags everything else as ErrPersistence.
func wrapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chat.ErrNotFound) || errors.Is(err, chat.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
