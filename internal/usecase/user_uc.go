package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"prepvio-subscription/internal/domain"
	"prepvio-subscription/internal/domain/model"
	"prepvio-subscription/internal/domain/ports/repository"
	"prepvio-subscription/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase registers users the first time an authenticated request arrives.
type UserUseCase interface {
	Ensure(ctx context.Context, id, email, name string) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, log: logger}
}

// Ensure returns the stored user, creating it with an inert subscription if needed.
// The insert is conflict-safe so concurrent first requests race harmlessly.
func (u *userUC) Ensure(ctx context.Context, id, email, name string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Ensure")()

	nu, err := model.NewUser(id, email, name)
	if err != nil {
		return nil, domain.Validation("Invalid user identity")
	}
	user, err := u.users.Ensure(ctx, repository.NoTX, nu)
	if err != nil {
		u.log.Error().Err(err).Str("user_id", id).Msg("failed to ensure user")
		return nil, err
	}
	return user, nil
}
