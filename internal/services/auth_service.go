package services

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/models"
	"github.com/doucovani/backend/internal/repository"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"tutor@example.com"` // Tutor email
	Password string `json:"password" validate:"required,min=6" example:"password123"`    // Tutor password
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254" example:"tutor@example.com"` // Tutor email address
	Password  string `json:"password" validate:"required,min=6,max=128" example:"password123"`    // Tutor password
	FirstName string `json:"firstName" validate:"required,min=2,max=20" example:"Jana"`           // Tutor first name
	LastName  string `json:"lastName" validate:"required,min=2,max=20" example:"Novakova"`        // Tutor last name
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string        `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."` // JWT token
	Tutor *models.Tutor `json:"tutor"`
}

type AuthService struct {
	store repository.Store
	redis *redis.Client
}

// NewAuthService creates the tutor account service. redisClient may be nil,
// in which case logout cannot revoke tokens.
func NewAuthService(store repository.Store, redisClient *redis.Client) *AuthService {
	return &AuthService{
		store: store,
		redis: redisClient,
	}
}

// Register creates the login and the tutor, then assigns the tutor's
// reference code, all in one transaction.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	log.Printf("[AUTH] Registration request for email: %s", email)

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", email, err)
		return nil, err
	}

	tutor := &models.Tutor{
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Notices:   models.DefaultNoticePreferences(),
		Active:    true,
		Credit:    decimal.Zero,
	}

	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		userID, err := tx.InsertUser(ctx, email, hashedPassword)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		tutor.UserID = userID

		if err := tx.InsertTutor(ctx, tutor); err != nil {
			return err
		}
		code, err := GenerateReferenceCode(tutor.ID)
		if err != nil {
			return err
		}
		if err := tx.SetReferenceCode(ctx, tutor.ID, code); err != nil {
			return fmt.Errorf("set reference code: %w", err)
		}
		tutor.ReferenceCode = code
		return nil
	})
	if err != nil {
		log.Printf("[AUTH] Registration failed for %s: %v", email, err)
		return nil, err
	}

	token, err := generateJWT(tutor.ID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for tutor %d: %v", tutor.ID, err)
		return nil, err
	}

	log.Printf("[AUTH] Tutor created - ID: %d, reference code: %d", tutor.ID, tutor.ReferenceCode)
	return &AuthResponse{Token: token, Tutor: tutor}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	tutorID, hashedPassword, err := s.store.GetCredentials(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[AUTH] Tutor not found for email: %s", email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for tutor %d", tutorID)
		return nil, ErrInvalidCredentials
	}

	tutor, err := s.store.GetTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	token, err := generateJWT(tutorID)
	if err != nil {
		return nil, err
	}

	log.Printf("[AUTH] Login successful for tutor %d", tutorID)
	return &AuthResponse{Token: token, Tutor: tutor}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.redis == nil || token == "" {
		return nil
	}
	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	if err := s.redis.Set(ctx, blacklistKey(token), "1", expiry).Err(); err != nil {
		log.Printf("[AUTH] Failed to blacklist token: %v", err)
		return err
	}
	return nil
}

// Authenticate resolves a bearer token to a tutor id.
func (s *AuthService) Authenticate(ctx context.Context, token string) (int64, error) {
	tutorID, err := ParseToken(token)
	if err != nil {
		return 0, err
	}
	if s.redis != nil {
		n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			log.Printf("[AUTH] Blacklist lookup failed: %v", err)
		} else if n > 0 {
			return 0, ErrInvalidToken
		}
	}
	return tutorID, nil
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func generateJWT(tutorID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tutor_id": strconv.FormatInt(tutorID, 10),
		"exp":      time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// ParseToken validates an HS256 token and returns its tutor id.
func ParseToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	raw, ok := claims["tutor_id"].(string)
	if !ok {
		return 0, ErrInvalidToken
	}
	tutorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || tutorID <= 0 {
		return 0, ErrInvalidToken
	}
	return tutorID, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
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

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
