package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"github.com/xevcp/backend/internal/middleware"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/internal/repository"
	"github.com/xevcp/backend/internal/token"
	"github.com/xevcp/backend/pkg/logger"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	users     UserStore
	redis     *redis.Client
	tokens    *token.Manager
	validator *ValidationHelper
	now       func() time.Time
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"staff@test.com"`    // User email
	Password string `json:"password" validate:"required,min=6" example:"password123"` // User password
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"customer@test.com"` // User email address
	Password string `json:"password" validate:"required,min=6" example:"password123"`  // User password
	Name     string `json:"name" validate:"required,min=2,max=100" example:"Nguyen Van A"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=9,max=15" example:"0901234567"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string       `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	User  *models.User `json:"user"`
}

// NewAuthService wires registration and login. redisClient may be nil, in
// which case logout cannot revoke tokens.
func NewAuthService(users UserStore, redisClient *redis.Client, tokens *token.Manager) *AuthService {
	return &AuthService{
		users:     users,
		redis:     redisClient,
		tokens:    tokens,
		validator: NewValidationHelper(),
		now:       time.Now,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Create a customer account. New accounts get the USER role.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 409 {object} ErrorResponse "Email already exists"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req RegisterRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Error("password hashing failed", "error", err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	user := &models.User{
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Name:  strings.TrimSpace(req.Name),
		Role:  models.RoleUser,
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}

	err = s.users.Create(r.Context(), user, hashedPassword)
	if errors.Is(err, repository.ErrDuplicate) {
		SendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
		return
	}
	if err != nil {
		log.Error("user creation failed", "error", err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	tok, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		log.Error("token issue failed", "user_id", user.ID, "error", err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Info("user registered", "user_id", user.ID)
	SendJSON(w, http.StatusOK, AuthResponse{Token: tok, User: user})
}

// Login handles user authentication
// @Summary Login user
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 401 {object} ErrorResponse "Invalid credentials"
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req LoginRequest
	if !s.validator.decodeBody(w, r, &req) {
		return
	}

	user, hashedPassword, err := s.users.FindByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		log.Error("user lookup failed", "error", err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Info("invalid password", "user_id", user.ID)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	tok, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		log.Error("token issue failed", "user_id", user.ID, "error", err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Info("login successful", "user_id", user.ID, "role", user.Role)
	SendJSON(w, http.StatusOK, AuthResponse{Token: tok, User: user})
}

// Logout handles user logout
// @Summary Logout user
// @Description Revoke the caller's token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Logout successful"
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.Claims(r.Context())
	tokenString := bearerToken(r)

	if ok && tokenString != "" && s.redis != nil {
		ttl := claims.Remaining(s.now())
		if ttl > 0 {
			if err := s.redis.Set(r.Context(), middleware.BlacklistKey(tokenString), "1", ttl).Err(); err != nil {
				logger.FromContext(r.Context()).Error("failed to blacklist token", "user_id", claims.UserID, "error", err)
				SendErrorResponse(w, "Failed to logout", http.StatusInternalServerError, nil)
				return
			}
		}
	}

	SendJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func bearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

type argon2Params struct {
	time, memory, keyLength, saltLength uint32
	threads                             uint8
}

// passwordParams reads the argon2 settings, falling back to RFC 9106
// recommendations for unset keys.
func passwordParams() argon2Params {
	get := func(key string, def int) int {
		if v := viper.GetInt(key); v > 0 {
			return v
		}
		return def
	}
	return argon2Params{
		time:       uint32(get("argon2.time", 1)),
		memory:     uint32(get("argon2.memory", 64*1024)),
		threads:    uint8(get("argon2.threads", 4)),
		keyLength:  uint32(get("argon2.key_length", 32)),
		saltLength: uint32(get("argon2.salt_length", 16)),
	}
}

func hashPassword(password string) (string, error) {
	p := passwordParams()
	salt := make([]byte, p.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLength)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	p := passwordParams()
	computedHash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}
