package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"murmur/internal/apperr"
	"murmur/internal/media"
)

const otpTTL = 5 * time.Minute

// Store is the slice of the repository the service needs.
type Store interface {
	Create(ctx context.Context, u *User) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	ByID(ctx context.Context, id int64) (*User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	NameTaken(ctx context.Context, fullName string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	All(ctx context.Context) ([]User, error)
	ByIDs(ctx context.Context, ids []int64) ([]User, error)
	UpdateProfile(ctx context.Context, id int64, profilePic, status *string) (*User, error)
	SetOTP(ctx context.Context, id int64, otpHash string, expiresAt time.Time) error
	OTPState(ctx context.Context, id int64) (string, *time.Time, error)
	ResetPassword(ctx context.Context, id int64, passwordHash string) error
}

type Service struct {
	repo     Store
	media    media.Store
	mailer   Mailer
	validate *validator.Validate
	log      *slog.Logger

	jwtSecret string
	tokenTTL  time.Duration
}

type Claims struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

func NewService(repo Store, mediaStore media.Store, mailer Mailer, secret string, tokenTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		media:     mediaStore,
		mailer:    mailer,
		validate:  validator.New(),
		log:       log,
		jwtSecret: secret,
		tokenTTL:  tokenTTL,
	}
}

func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("full name, a valid email and a password of at least 6 characters are required")
	}

	if taken, err := s.repo.NameTaken(ctx, req.FullName); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Validation("username already exists")
	}
	if taken, err := s.repo.EmailTaken(ctx, req.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Validation("email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.Create(ctx, &User{
		Email:    req.Email,
		FullName: req.FullName,
		Password: string(hashed),
	})
	if err != nil {
		return nil, err
	}

	// Non-critical side effect: a mail failure never fails the signup.
	if err := s.mailer.SendWelcome(u.Email, u.FullName); err != nil {
		s.log.Warn("welcome mail failed", "email", u.Email, "error", err)
	}

	return s.withToken(u)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("email and password are required")
	}

	// Never tell the caller which of the two was wrong.
	u, err := s.repo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperr.Validation("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Validation("invalid credentials")
	}

	return s.withToken(u)
}

func (s *Service) withToken(u *User) (*AuthResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       u.ID,
		FullName: u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "murmur",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
		},
	})

	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: *u, AccessToken: signed}, nil
}

// ValidateToken implements the TokenValidator the auth middleware and the
// socket gateway consume.
func (s *Service) ValidateToken(tokenString string) (int64, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, "", apperr.Forbidden("invalid token")
	}
	return claims.ID, claims.FullName, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*User, error) {
	return s.repo.ByID(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Display returns the sender fields denormalized onto group messages.
func (s *Service) Display(ctx context.Context, id int64) (name, pic string, err error) {
	u, err := s.repo.ByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	return u.FullName, u.ProfilePic, nil
}

func (s *Service) Contacts(ctx context.Context) ([]User, error) {
	return s.repo.All(ctx)
}

func (s *Service) ByIDs(ctx context.Context, ids []int64) ([]User, error) {
	return s.repo.ByIDs(ctx, ids)
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, req *UpdateProfileRequest) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("status must be at most 80 characters")
	}
	if req.ProfilePic == "" && req.Status == nil {
		return nil, apperr.Validation("profile pic or status is required")
	}

	var picURL *string
	if req.ProfilePic != "" {
		data, err := media.Decode(req.ProfilePic)
		if err != nil {
			return nil, err
		}
		url, err := s.media.Upload(ctx, data, "")
		if err != nil {
			return nil, err
		}
		picURL = &url
	}

	return s.repo.UpdateProfile(ctx, id, picURL, req.Status)
}

func (s *Service) RequestOTP(ctx context.Context, req *RequestOTPRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.Validation("a valid email is required")
	}

	u, err := s.repo.ByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetOTP(ctx, u.ID, string(hash), time.Now().Add(otpTTL)); err != nil {
		return err
	}

	if err := s.mailer.SendOTP(u.Email, otp); err != nil {
		return apperr.Upstream("could not send the reset code", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.Validation("email, a 6-digit code and a new password of at least 6 characters are required")
	}

	u, err := s.repo.ByEmail(ctx, req.Email)
	if err != nil {
		return err
	}

	hash, expires, err := s.repo.OTPState(ctx, u.ID)
	if err != nil {
		return err
	}
	if hash == "" || expires == nil {
		return apperr.Validation("no reset code was requested")
	}
	if expires.Before(time.Now()) {
		return apperr.Validation("reset code expired")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.OTP)); err != nil {
		return apperr.Validation("invalid reset code")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.ResetPassword(ctx, u.ID, string(newHash))
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
