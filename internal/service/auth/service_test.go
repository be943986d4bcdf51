package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault-api/internal/model"
	"github.com/medvault/medvault-api/internal/otp"
	"github.com/medvault/medvault-api/internal/repository/repotest"
	"github.com/medvault/medvault-api/internal/service/audit"
	pkgauth "github.com/medvault/medvault-api/pkg/auth"
	apperrors "github.com/medvault/medvault-api/pkg/errors"
	"github.com/medvault/medvault-api/pkg/security"
)

// fakeEmail records sends instead of talking to SMTP.
type fakeEmail struct {
	otps      []string
	passwords []string
}

func (f *fakeEmail) SendOTP(ctx context.Context, to, code string) error {
	f.otps = append(f.otps, code)
	return nil
}

func (f *fakeEmail) SendTemporaryPassword(ctx context.Context, to, name, tempPassword string) error {
	f.passwords = append(f.passwords, tempPassword)
	return nil
}

func (f *fakeEmail) SendCustom(ctx context.Context, to, subject, content string) error {
	return nil
}

type authFixture struct {
	svc        *Service
	users      *repotest.UserRepo
	biometrics *repotest.BiometricRepo
	audits     *repotest.AuditRepo
	email      *fakeEmail
	hasher     security.PasswordHasher
}

func newAuthFixture(users ...*model.User) *authFixture {
	f := &authFixture{
		users:      repotest.NewUserRepo(users...),
		biometrics: repotest.NewBiometricRepo(),
		audits:     repotest.NewAuditRepo(),
		email:      &fakeEmail{},
		hasher:     security.NewBcryptHasher(bcrypt.MinCost),
	}
	f.svc = NewService(
		f.users,
		f.biometrics,
		otp.NewStore(),
		f.email,
		f.hasher,
		pkgauth.NewJWTService("test-secret", time.Hour),
		audit.NewService(f.audits),
	)
	return f
}

func testUser(t *testing.T, hasher security.PasswordHasher, code, role, email, password string) *model.User {
	t.Helper()
	hash, err := hasher.Hash(password)
	require.NoError(t, err)
	return &model.User{
		ID:           uuid.New(),
		UserCode:     code,
		Role:         role,
		Name:         "Test " + code,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
}

func TestLoginIssuesOTP(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "correct-horse")
	require.NoError(t, f.users.Create(context.Background(), user))

	resp, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-0001",
		Password: "correct-horse",
	}, "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "doc@example.com", resp.Email)
	assert.Len(t, resp.Otp, 6)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
	require.Len(t, f.email.otps, 1)
	assert.Equal(t, resp.Otp, f.email.otps[0])
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "correct-horse")
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-0001",
		Password: "wrong",
	}, "10.0.0.1")
	assert.Equal(t, 401, apperrors.Status(err))

	// The failed attempt lands in the login audit table.
	require.NotEmpty(t, f.audits.LoginAudits)
	assert.Equal(t, model.AuditResultFailed, f.audits.LoginAudits[len(f.audits.LoginAudits)-1].Result)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-9999",
		Password: "whatever",
	}, "10.0.0.1")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "PAT-0001", model.RolePatient, "pat@example.com", "secret-pw")
	user.IsActive = false
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RolePatient,
		UserCode: "PAT-0001",
		Password: "secret-pw",
	}, "10.0.0.1")
	assert.Equal(t, 403, apperrors.Status(err))
}

func TestVerifyCodeIssuesToken(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "correct-horse")
	require.NoError(t, f.users.Create(context.Background(), user))

	login, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-0001",
		Password: "correct-horse",
	}, "10.0.0.1")
	require.NoError(t, err)

	resp, err := f.svc.VerifyCode(context.Background(), &model.VerifyCodeRequest{
		Email: "doc@example.com",
		Code:  login.Otp,
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "DOC-0001", resp.User.UserCode)
	assert.NotNil(t, resp.User.LastLoginAt)

	// The challenge is single-use.
	_, err = f.svc.VerifyCode(context.Background(), &model.VerifyCodeRequest{
		Email: "doc@example.com",
		Code:  login.Otp,
	}, "10.0.0.1")
	assert.Equal(t, 404, apperrors.Status(err))
}

func TestVerifyCodeRejectsMismatch(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "correct-horse")
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-0001",
		Password: "correct-horse",
	}, "10.0.0.1")
	require.NoError(t, err)

	_, err = f.svc.VerifyCode(context.Background(), &model.VerifyCodeRequest{
		Email: "doc@example.com",
		Code:  "000000",
	}, "10.0.0.1")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestResendCodeReplacesChallenge(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "correct-horse")
	require.NoError(t, f.users.Create(context.Background(), user))

	login, err := f.svc.Login(context.Background(), &model.LoginRequest{
		Role:     model.RoleDoctor,
		UserCode: "DOC-0001",
		Password: "correct-horse",
	}, "10.0.0.1")
	require.NoError(t, err)

	resent, err := f.svc.ResendCode(context.Background(), "doc@example.com")
	require.NoError(t, err)

	// The original code no longer verifies unless it happens to collide.
	if login.Otp != resent.Otp {
		_, err = f.svc.VerifyCode(context.Background(), &model.VerifyCodeRequest{
			Email: "doc@example.com",
			Code:  login.Otp,
		}, "10.0.0.1")
		assert.Error(t, err)
	}

	resp, err := f.svc.VerifyCode(context.Background(), &model.VerifyCodeRequest{
		Email: "doc@example.com",
		Code:  resent.Otp,
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestResendCodeWithoutLogin(t *testing.T) {
	f := newAuthFixture()
	_, err := f.svc.ResendCode(context.Background(), "nobody@example.com")
	assert.Equal(t, 404, apperrors.Status(err))
}

func TestResetPassword(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "old-password")
	user.MustResetPassword = true
	require.NoError(t, f.users.Create(context.Background(), user))

	err := f.svc.ResetPassword(context.Background(), &model.ResetPasswordRequest{
		UserCode:    "DOC-0001",
		OldPassword: "old-password",
		NewPassword: "new-password",
	})
	require.NoError(t, err)

	stored, err := f.users.GetByCode(context.Background(), "DOC-0001")
	require.NoError(t, err)
	assert.False(t, stored.MustResetPassword)
	assert.NoError(t, f.hasher.Compare(stored.PasswordHash, "new-password"))
}

func TestResetPasswordRejectsWrongOldPassword(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "old-password")
	require.NoError(t, f.users.Create(context.Background(), user))

	err := f.svc.ResetPassword(context.Background(), &model.ResetPasswordRequest{
		UserCode:    "DOC-0001",
		OldPassword: "not-the-old-one",
		NewPassword: "new-password",
	})
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestCreateUserAllocatesNextCode(t *testing.T) {
	f := newAuthFixture()

	first, err := f.svc.CreateUser(context.Background(), &model.CreateUserRequest{
		FullName: "Dr. First",
		Email:    "first@example.com",
		Role:     model.RoleDoctor,
	})
	require.NoError(t, err)
	assert.Equal(t, "DOC-0001", first.User.UserCode)
	assert.True(t, first.User.MustResetPassword)
	assert.NotEmpty(t, first.TempPassword)
	assert.NoError(t, f.hasher.Compare(first.User.PasswordHash, first.TempPassword))

	second, err := f.svc.CreateUser(context.Background(), &model.CreateUserRequest{
		FullName: "Dr. Second",
		Email:    "second@example.com",
		Role:     model.RoleDoctor,
	})
	require.NoError(t, err)
	assert.Equal(t, "DOC-0002", second.User.UserCode)

	patient, err := f.svc.CreateUser(context.Background(), &model.CreateUserRequest{
		FullName: "Pat First",
		Email:    "pat@example.com",
		Role:     model.RolePatient,
	})
	require.NoError(t, err)
	assert.Equal(t, "PAT-0001", patient.User.UserCode)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "DOC-0001", model.RoleDoctor, "doc@example.com", "pw-irrelevant")
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.CreateUser(context.Background(), &model.CreateUserRequest{
		FullName: "Imposter",
		Email:    "doc@example.com",
		Role:     model.RoleDoctor,
	})
	assert.Equal(t, 409, apperrors.Status(err))
}

func TestGenerateUserCodeSkipsGaps(t *testing.T) {
	f := newAuthFixture(
		&model.User{ID: uuid.New(), UserCode: "DOC-0001", Role: model.RoleDoctor},
		&model.User{ID: uuid.New(), UserCode: "DOC-0007", Role: model.RoleDoctor},
		&model.User{ID: uuid.New(), UserCode: "DOC-badsuffix", Role: model.RoleDoctor},
		&model.User{ID: uuid.New(), UserCode: "PAT-0042", Role: model.RolePatient},
	)

	code, err := f.svc.GenerateUserCode(context.Background(), model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, "DOC-0008", code)

	code, err = f.svc.GenerateUserCode(context.Background(), model.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, "PAT-0043", code)

	_, err = f.svc.GenerateUserCode(context.Background(), "nurse")
	assert.Equal(t, 400, apperrors.Status(err))
}

func TestBiometricFlow(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "PAT-0001", model.RolePatient, "pat@example.com", "pw-irrelevant")
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.RegisterBiometric(context.Background(), &model.BiometricRegisterRequest{
		UserCode: "PAT-0001",
		DeviceID: "device-1",
		Secret:   "device-secret",
	})
	require.NoError(t, err)

	has, err := f.svc.HasBiometric(context.Background(), "PAT-0001")
	require.NoError(t, err)
	assert.True(t, has)

	ch, err := f.svc.CreateBiometricChallenge(context.Background(), &model.BiometricChallengeRequest{
		UserCode: "PAT-0001",
		DeviceID: "device-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Challenge)

	resp, err := f.svc.VerifyBiometric(context.Background(), &model.BiometricVerifyRequest{
		ChallengeID: ch.ID.String(),
		UserCode:    "PAT-0001",
		DeviceID:    "device-1",
		Signature:   signChallenge("device-secret", ch.Challenge),
	}, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "PAT-0001", resp.User.UserCode)

	// Challenges are single-use.
	_, err = f.svc.VerifyBiometric(context.Background(), &model.BiometricVerifyRequest{
		ChallengeID: ch.ID.String(),
		UserCode:    "PAT-0001",
		DeviceID:    "device-1",
		Signature:   signChallenge("device-secret", ch.Challenge),
	}, "10.0.0.1")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestVerifyBiometricRejectsBadSignature(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "PAT-0001", model.RolePatient, "pat@example.com", "pw-irrelevant")
	require.NoError(t, f.users.Create(context.Background(), user))

	_, err := f.svc.RegisterBiometric(context.Background(), &model.BiometricRegisterRequest{
		UserCode: "PAT-0001",
		DeviceID: "device-1",
		Secret:   "device-secret",
	})
	require.NoError(t, err)

	ch, err := f.svc.CreateBiometricChallenge(context.Background(), &model.BiometricChallengeRequest{
		UserCode: "PAT-0001",
		DeviceID: "device-1",
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyBiometric(context.Background(), &model.BiometricVerifyRequest{
		ChallengeID: ch.ID.String(),
		UserCode:    "PAT-0001",
		DeviceID:    "device-1",
		Signature:   signChallenge("wrong-secret", ch.Challenge),
	}, "10.0.0.1")
	assert.Equal(t, 401, apperrors.Status(err))
}

func TestVerifyBiometricRejectsOtherDevice(t *testing.T) {
	f := newAuthFixture()
	user := testUser(t, f.hasher, "PAT-0001", model.RolePatient, "pat@example.com", "pw-irrelevant")
	require.NoError(t, f.users.Create(context.Background(), user))

	for _, device := range []string{"device-1", "device-2"} {
		_, err := f.svc.RegisterBiometric(context.Background(), &model.BiometricRegisterRequest{
			UserCode: "PAT-0001",
			DeviceID: device,
			Secret:   "secret-" + device,
		})
		require.NoError(t, err)
	}

	ch, err := f.svc.CreateBiometricChallenge(context.Background(), &model.BiometricChallengeRequest{
		UserCode: "PAT-0001",
		DeviceID: "device-1",
	})
	require.NoError(t, err)

	_, err = f.svc.VerifyBiometric(context.Background(), &model.BiometricVerifyRequest{
		ChallengeID: ch.ID.String(),
		UserCode:    "PAT-0001",
		DeviceID:    "device-2",
		Signature:   signChallenge("secret-device-2", ch.Challenge),
	}, "10.0.0.1")
	assert.Equal(t, 403, apperrors.Status(err))
}

func TestSortUsersByCode(t *testing.T) {
	users := []*model.User{
		{UserCode: "PAT-0002"},
		{UserCode: "DOC-0001"},
		{UserCode: "PAT-0001"},
	}
	SortUsersByCode(users)
	assert.Equal(t, "DOC-0001", users[0].UserCode)
	assert.Equal(t, "PAT-0001", users[1].UserCode)
	assert.Equal(t, "PAT-0002", users[2].UserCode)
}

func TestListUsersOrderedByCode(t *testing.T) {
	f := newAuthFixture()
	for _, code := range []string{"PAT-0002", "DOC-0001", "PAT-0001"} {
		role := model.RolePatient
		if code == "DOC-0001" {
			role = model.RoleDoctor
		}
		u := testUser(t, f.hasher, code, role, code+"@example.com", "pw-"+code)
		require.NoError(t, f.users.Create(context.Background(), u))
	}

	users, err := f.svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "DOC-0001", users[0].UserCode)
	assert.Equal(t, "PAT-0001", users[1].UserCode)
	assert.Equal(t, "PAT-0002", users[2].UserCode)
}

func signChallenge(secret, challenge string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}
