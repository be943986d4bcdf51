package email

import (
	"context"
)

// Service sends transactional mail. All sends are best-effort from the
// caller's perspective; delivery failure never blocks the login flow.
type Service interface {
	SendOTP(ctx context.Context, to string, code string) error
	SendTemporaryPassword(ctx context.Context, to string, name string, tempPassword string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}
