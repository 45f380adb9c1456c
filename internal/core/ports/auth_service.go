package ports

import (
	"context"

	"github.com/pharmastock/stock-system/internal/core/domain"
)

type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	CreateUser(ctx context.Context, username, password, role string) (*domain.User, error)
}
