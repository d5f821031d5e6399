package usecase

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"restaurant-pos-billing/internal/domain/model"
	"restaurant-pos-billing/internal/domain/ports/repository"
)

// OTPValidity is how long a mobile-money confirmation code stays usable.
const OTPValidity = 10 * time.Minute

const otpLength = 6

// OTPManager issues and checks the short-lived codes used to confirm
// mobile-money payments. At most one valid code exists per subscription;
// issuing a new one overwrites the old.
type OTPManager struct {
	subs repository.SubscriptionRepository
	now  func() time.Time
}

func NewOTPManager(subs repository.SubscriptionRepository) *OTPManager {
	return &OTPManager{subs: subs, now: time.Now}
}

// Generate produces a random 6-digit code and stores it on the subscription
// with a fresh expiry window.
func (m *OTPManager) Generate(ctx context.Context, tx repository.Tx, sub *model.Subscription) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", err
	}
	expires := m.now().Add(OTPValidity)
	if err := m.subs.SetOTP(ctx, tx, sub.ID, code, expires); err != nil {
		return "", err
	}
	sub.OTPCode = &code
	sub.OTPExpiresAt = &expires
	return code, nil
}

// Verify reports whether the submitted code matches the stored one and the
// window has not closed. The code is not consumed: repeated verification
// within the window succeeds, and payment confirmation is a separate step.
func (m *OTPManager) Verify(sub *model.Subscription, submitted string) bool {
	if sub == nil || sub.OTPCode == nil || sub.OTPExpiresAt == nil {
		return false
	}
	if m.now().After(*sub.OTPExpiresAt) {
		return false
	}
	return *sub.OTPCode == submitted
}

func generateOTPCode() (string, error) {
	const digits = "0123456789"
	// Rejection sampling: bytes >= 250 are discarded so every digit is
	// equally likely.
	const limit = 250
	code := make([]byte, 0, otpLength)
	buf := make([]byte, otpLength)
	for len(code) < otpLength {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit || len(code) == otpLength {
				continue
			}
			code = append(code, digits[int(b)%len(digits)])
		}
	}
	return string(code), nil
}
