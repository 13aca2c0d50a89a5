package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/classroom-attendance-api/internal/dto"
	"github.com/noah-isme/classroom-attendance-api/internal/models"
	appErrors "github.com/noah-isme/classroom-attendance-api/pkg/errors"
)

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthService provides signup, login and identity lookups.
type AuthService struct {
	repo      authUserRepository
	tokens    *TokenService
	cache     *CacheService
	audit     *AuditService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, tokens *TokenService, cache *CacheService, audit *AuditService, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, tokens: tokens, cache: cache, audit: audit, validator: validate, logger: logger}
}

// Signup registers an account with a bcrypt-hashed password.
func (s *AuthService) Signup(ctx context.Context, req dto.SignupRequest) (*dto.UserResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.UserRole(req.Role),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if user.Role == models.RoleStudent {
		s.cache.Invalidate(ctx, StudentsCacheKey)
	}
	s.audit.Record(ctx, AuditEntry{
		UserID:     user.ID.Hex(),
		Action:     models.AuditActionSignup,
		Resource:   "user",
		ResourceID: user.ID.Hex(),
		Payload:    map[string]string{"role": string(user.Role)},
	})
	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("role", string(user.Role)))

	res := dto.NewUserResponse(user)
	return &res, nil
}

// Login verifies credentials and issues an access token. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.audit.Record(ctx, AuditEntry{
		UserID:     user.ID.Hex(),
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: user.ID.Hex(),
	})

	return &dto.LoginResponse{Token: token}, nil
}

// Me returns the account behind the verified claims.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*dto.UserResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	res := dto.NewUserResponse(user)
	return &res, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
