package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medvault/medvault-api/internal/email"
	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/otp"
	"github.com/medvault/medvault-api/internal/repository"
	"github.com/medvault/medvault-api/internal/service/audit"
	pkgauth "github.com/medvault/medvault-api/pkg/auth"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
	"github.com/medvault/medvault-api/pkg/security"
)

type Service struct {
	userRepo      repository.UserRepository
	biometricRepo repository.BiometricRepository
	otpStore      *otp.Store
	emailSvc      email.Service
	hasher        security.PasswordHasher
	jwtSvc        pkgauth.JWTService
	auditor       *audit.Service
}

func NewService(
	userRepo repository.UserRepository,
	biometricRepo repository.BiometricRepository,
	otpStore *otp.Store,
	emailSvc email.Service,
	hasher security.PasswordHasher,
	jwtSvc pkgauth.JWTService,
	auditor *audit.Service,
) *Service {
	return &Service{
		userRepo:      userRepo,
		biometricRepo: biometricRepo,
		otpStore:      otpStore,
		emailSvc:      emailSvc,
		hasher:        hasher,
		jwtSvc:        jwtSvc,
		auditor:       auditor,
	}
}

// Login checks the password and issues an OTP challenge. The OTP is echoed
// back in the response; that is a legacy debug affordance kept for
// behavioral parity (see DESIGN.md), not something to build on.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest, ipAddress string) (*model.LoginResponse, error) {
	user, err := s.userRepo.GetByCodeAndRole(ctx, req.UserCode, req.Role)
	if err != nil {
		s.auditor.LogLogin(ctx, &req.UserCode, model.AuditActionLogin, "unknown user", err, ipAddress)
		return nil, apperrors.Unauthorized("invalid credentials", err)
	}
	if !user.IsActive {
		s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionLogin, "deactivated account", fmt.Errorf("account inactive"), ipAddress)
		return nil, apperrors.Forbidden("account is deactivated", nil)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionLogin, "password mismatch", err, ipAddress)
		return nil, apperrors.Unauthorized("invalid credentials", err)
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	challenge := &model.OtpChallenge{
		Code:      code,
		ExpiresAt: time.Now().Add(model.OtpTTL),
		User:      user,
	}
	s.otpStore.Put(model.ChallengeKey(user.ID, user.Email), challenge)

	// Mail delivery is best-effort; the OTP stays usable either way.
	if err := s.emailSvc.SendOTP(ctx, user.Email, code); err != nil {
		log.Warn().Err(err).Str("user_code", user.UserCode).Msg("OTP email delivery failed")
	}

	s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionLogin, "OTP issued", nil, ipAddress)

	return &model.LoginResponse{
		Message:   "verification code sent",
		Email:     user.Email,
		Otp:       code,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// VerifyCode completes the OTP flow and issues a session token.
func (s *Service) VerifyCode(ctx context.Context, req *model.VerifyCodeRequest, ipAddress string) (*model.VerifyCodeResponse, error) {
	key, challenge, ok := s.otpStore.FindByEmail(req.Email)
	if !ok {
		return nil, apperrors.NotFound("verification code", nil)
	}
	if challenge.Expired() {
		s.otpStore.Delete(key)
		s.auditor.LogLogin(ctx, &challenge.User.UserCode, model.AuditActionVerifyOtp, "code expired", fmt.Errorf("code expired"), ipAddress)
		return nil, apperrors.Unauthorized("verification code expired", nil)
	}
	if challenge.Code != req.Code {
		s.auditor.LogLogin(ctx, &challenge.User.UserCode, model.AuditActionVerifyOtp, "code mismatch", fmt.Errorf("code mismatch"), ipAddress)
		return nil, apperrors.Unauthorized("invalid verification code", nil)
	}

	s.otpStore.Delete(key)

	user := challenge.User
	if err := s.userRepo.StampLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_code", user.UserCode).Msg("failed to stamp last login")
	}

	token, err := s.jwtSvc.GenerateSessionToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionVerifyOtp, "login verified", nil, ipAddress)

	return &model.VerifyCodeResponse{Token: token, User: user}, nil
}

// ResendCode regenerates the code and expiry of an existing challenge in place.
func (s *Service) ResendCode(ctx context.Context, emailAddr string) (*model.LoginResponse, error) {
	key, challenge, ok := s.otpStore.FindByEmail(emailAddr)
	if !ok {
		return nil, apperrors.NotFound("verification code", nil)
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}
	challenge.Code = code
	challenge.ExpiresAt = time.Now().Add(model.OtpTTL)
	s.otpStore.Put(key, challenge)

	if err := s.emailSvc.SendOTP(ctx, challenge.User.Email, code); err != nil {
		log.Warn().Err(err).Str("user_code", challenge.User.UserCode).Msg("OTP email delivery failed")
	}

	return &model.LoginResponse{
		Message:   "verification code resent",
		Email:     challenge.User.Email,
		Otp:       code,
		ExpiresAt: challenge.ExpiresAt,
	}, nil
}

// ResetPassword verifies the old password and stores a new digest,
// clearing the must-reset flag.
func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	user, err := s.userRepo.GetByCode(ctx, req.UserCode)
	if err != nil {
		return apperrors.NotFound("user", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.OldPassword); err != nil {
		s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionResetPassword, "old password mismatch", err, "")
		return apperrors.Unauthorized("invalid credentials", err)
	}
	if len(req.NewPassword) < security.MinPasswordLen {
		return apperrors.BadRequest("password must be at least 8 characters", nil)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash, false); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}

	s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionResetPassword, "password changed", nil, "")
	return nil
}

// Logout only writes a best-effort audit entry; there is no session state
// to tear down.
func (s *Service) Logout(ctx context.Context, userCode, ipAddress string) {
	s.auditor.LogLogin(ctx, &userCode, model.AuditActionLogout, "user logged out", nil, ipAddress)
}

// CreateUser allocates the next role-prefixed code and returns the
// generated temporary password exactly once.
func (s *Service) CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.CreateUserResponse, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("email already in use", nil)
	}

	userCode, err := s.GenerateUserCode(ctx, req.Role)
	if err != nil {
		return nil, err
	}

	tempPassword, err := security.GenerateTempPassword(12)
	if err != nil {
		return nil, fmt.Errorf("failed to generate temporary password: %w", err)
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:                uuid.New(),
		UserCode:          userCode,
		Role:              req.Role,
		Name:              req.FullName,
		Email:             req.Email,
		PasswordHash:      hash,
		IsActive:          true,
		MustResetPassword: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.emailSvc.SendTemporaryPassword(ctx, user.Email, user.Name, tempPassword); err != nil {
		log.Warn().Err(err).Str("user_code", user.UserCode).Msg("temp password email delivery failed")
	}

	resourceType := "user"
	resourceID := user.ID.String()
	s.auditor.LogAction(ctx, &user.UserCode, model.AuditActionCreateUser, &resourceType, &resourceID, fmt.Sprintf("created %s %s", user.Role, user.UserCode), nil, nil)

	return &model.CreateUserResponse{User: user, TempPassword: tempPassword}, nil
}

// ListUsers returns all users ordered by their role-prefixed code.
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	SortUsersByCode(users)
	return users, nil
}

// GenerateUserCode allocates the next zero-padded code for a role by
// scanning existing codes for the role prefix and incrementing the
// maximum suffix found. Codes are never reused, even after deletions,
// as long as the highest-numbered row survives.
func (s *Service) GenerateUserCode(ctx context.Context, role string) (string, error) {
	prefix := model.RolePrefix(role)
	if prefix == "" {
		return "", apperrors.BadRequest("unknown role", nil)
	}

	codes, err := s.userRepo.ListCodesByPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to scan user codes: %w", err)
	}

	maxSuffix := 0
	for _, code := range codes {
		suffix := strings.TrimPrefix(code, prefix+"-")
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > maxSuffix {
			maxSuffix = n
		}
	}

	return fmt.Sprintf("%s-%04d", prefix, maxSuffix+1), nil
}

// RegisterBiometric stores a device-bound secret for passwordless login.
func (s *Service) RegisterBiometric(ctx context.Context, req *model.BiometricRegisterRequest) (*model.BiometricCredential, error) {
	user, err := s.userRepo.GetByCode(ctx, req.UserCode)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}

	cred := &model.BiometricCredential{
		ID:       uuid.New(),
		UserID:   user.ID,
		UserCode: user.UserCode,
		DeviceID: req.DeviceID,
		Secret:   req.Secret,
	}
	if err := s.biometricRepo.CreateCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to register biometric credential: %w", err)
	}
	return cred, nil
}

// CreateBiometricChallenge issues a single-use random challenge the
// device must sign with its registered secret.
func (s *Service) CreateBiometricChallenge(ctx context.Context, req *model.BiometricChallengeRequest) (*model.BiometricChallenge, error) {
	cred, err := s.biometricRepo.GetCredential(ctx, req.UserCode, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}
	if cred == nil {
		return nil, apperrors.NotFound("biometric credential", nil)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	ch := &model.BiometricChallenge{
		ID:        uuid.New(),
		UserCode:  req.UserCode,
		DeviceID:  req.DeviceID,
		Challenge: base64.StdEncoding.EncodeToString(raw),
		ExpiresAt: time.Now().Add(model.BiometricChallengeTTL),
	}
	if err := s.biometricRepo.CreateChallenge(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	return ch, nil
}

// VerifyBiometric checks the HMAC signature over the challenge and issues
// a session token.
func (s *Service) VerifyBiometric(ctx context.Context, req *model.BiometricVerifyRequest, ipAddress string) (*model.VerifyCodeResponse, error) {
	challengeID, err := uuid.Parse(req.ChallengeID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid challenge id", err)
	}

	ch, err := s.biometricRepo.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, apperrors.NotFound("biometric challenge", err)
	}
	if ch.Used || time.Now().After(ch.ExpiresAt) {
		return nil, apperrors.Unauthorized("challenge expired", nil)
	}
	if ch.UserCode != req.UserCode || ch.DeviceID != req.DeviceID {
		return nil, apperrors.Forbidden("challenge does not match device", nil)
	}

	cred, err := s.biometricRepo.GetCredential(ctx, req.UserCode, req.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}
	if cred == nil {
		return nil, apperrors.NotFound("biometric credential", nil)
	}

	mac := hmac.New(sha256.New, []byte(cred.Secret))
	mac.Write([]byte(ch.Challenge))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		s.auditor.LogLogin(ctx, &req.UserCode, model.AuditActionBiometricAuth, "signature mismatch", fmt.Errorf("signature mismatch"), ipAddress)
		return nil, apperrors.Unauthorized("invalid signature", nil)
	}

	if err := s.biometricRepo.MarkChallengeUsed(ctx, ch.ID); err != nil {
		log.Warn().Err(err).Str("challenge_id", ch.ID.String()).Msg("failed to mark challenge used")
	}

	user, err := s.userRepo.GetByCode(ctx, req.UserCode)
	if err != nil {
		return nil, apperrors.NotFound("user", err)
	}
	if !user.IsActive {
		return nil, apperrors.Forbidden("account is deactivated", nil)
	}

	token, err := s.jwtSvc.GenerateSessionToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.auditor.LogLogin(ctx, &user.UserCode, model.AuditActionBiometricAuth, "biometric login", nil, ipAddress)
	return &model.VerifyCodeResponse{Token: token, User: user}, nil
}

// HasBiometric reports whether the user has any registered credential.
func (s *Service) HasBiometric(ctx context.Context, userCode string) (bool, error) {
	return s.biometricRepo.HasCredential(ctx, userCode)
}

// SortUsersByCode orders users by their role-prefixed code. Used by the
// admin listing for stable output.
func SortUsersByCode(users []*model.User) {
	sort.Slice(users, func(i, j int) bool {
		return users[i].UserCode < users[j].UserCode
	})
}
