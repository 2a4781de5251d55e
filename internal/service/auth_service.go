package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/auth"
	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// AuthService coordinates staff login.
type AuthService struct {
	staff    repository.StaffRepository
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	StaffRepo    repository.StaffRepository
	TokenManager *auth.TokenManager
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{staff: deps.StaffRepo, tokenMgr: deps.TokenManager, logger: deps.Logger}
}

// LoginStaff authenticates staff and returns a role-bearing token. Unknown
// email, wrong password and inactive accounts are indistinguishable to the
// caller.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, domain.Token, error) {
	invalid := apperrors.NewUnauthenticated("invalid credentials")
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", domain.Token{}, apperrors.NewValidationError("email and password are required", nil)
	}
	staff, err := s.staff.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		_ = auth.ComparePassword("", password)
		return nil, "", domain.Token{}, invalid
	}
	if err != nil {
		return nil, "", domain.Token{}, apperrors.MapError(err)
	}
	if !staff.Active {
		s.logger.Info("inactive staff login rejected", zap.String("staff_id", staff.ID))
		_ = auth.ComparePassword("", password)
		return nil, "", domain.Token{}, invalid
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", domain.Token{}, invalid
	}
	meta, token, err := s.tokenMgr.GenerateToken(staff.ID, staff.Role)
	if err != nil {
		return nil, "", domain.Token{}, apperrors.NewInternalError(err)
	}
	return staff, token, meta, nil
}
