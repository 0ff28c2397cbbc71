package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/doucovani/backend/internal/config"
	"github.com/doucovani/backend/internal/repository"
	"github.com/go-redis/redis/v8"
)

var (
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrTooManyAttempts     = errors.New("too many verification attempts")
	ErrPhoneTaken          = errors.New("phone number is used by another tutor")
	ErrVerificationOffline = errors.New("phone verification is unavailable")
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// PhoneVerificationService confirms a tutor's phone with a short code sent
// by SMS. Codes live in Redis only.
type PhoneVerificationService struct {
	redis    *redis.Client
	store    repository.Store
	notifier *NotificationService
	cfg      config.PhoneConfig
	codeFn   func(length int) (string, error)
}

func NewPhoneVerificationService(rdb *redis.Client, store repository.Store, notifier *NotificationService, cfg *config.Config) *PhoneVerificationService {
	return &PhoneVerificationService{
		redis:    rdb,
		store:    store,
		notifier: notifier,
		cfg:      cfg.Phone,
		codeFn:   randomDigits,
	}
}

func randomDigits(length int) (string, error) {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// NormalizePhone strips the separators people type into phone numbers.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if !phonePattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}

func codeKey(tutorID int64, phone string) string {
	return fmt.Sprintf("phone_verify:%d:%s", tutorID, phone)
}

// RequestCode sends a verification code. A code that has not expired yet is
// sent again instead of issuing a new one.
func (s *PhoneVerificationService) RequestCode(ctx context.Context, tutorID int64, phone string) error {
	if s.redis == nil {
		return ErrVerificationOffline
	}
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	key := codeKey(tutorID, phone)
	code, err := s.redis.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		code, err = s.codeFn(s.cfg.CodeLength)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		if err := s.redis.Set(ctx, key, code, s.cfg.CodeTTL).Err(); err != nil {
			return fmt.Errorf("store code: %w", err)
		}
	case err != nil:
		return fmt.Errorf("load code: %w", err)
	}

	log.Printf("[PHONE] Verification code requested by tutor %d", tutorID)
	if s.notifier == nil {
		return nil
	}
	return s.notifier.PhoneCode(ctx, phone, code)
}

// VerifyCode checks the code and marks the phone verified on the tutor.
func (s *PhoneVerificationService) VerifyCode(ctx context.Context, tutorID int64, phone, code string) error {
	if s.redis == nil {
		return ErrVerificationOffline
	}
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	key := codeKey(tutorID, phone)
	attemptsKey := key + ":attempts"

	attempts, err := s.redis.Incr(ctx, attemptsKey).Result()
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if attempts == 1 {
		s.redis.Expire(ctx, attemptsKey, s.cfg.CodeTTL)
	}
	if s.cfg.MaxAttempts > 0 && attempts > int64(s.cfg.MaxAttempts) {
		return ErrTooManyAttempts
	}

	stored, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if stored != strings.TrimSpace(code) {
		return ErrInvalidCode
	}

	if err := s.store.SetTutorPhone(ctx, tutorID, phone, true); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrPhoneTaken
		}
		return err
	}
	s.redis.Del(ctx, key, attemptsKey)
	log.Printf("[PHONE] Tutor %d verified phone", tutorID)
	return nil
}

// CodeTTL is how long a sent code stays valid.
func (s *PhoneVerificationService) CodeTTL() time.Duration {
	return s.cfg.CodeTTL
}
