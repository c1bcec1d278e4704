package registration

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
	"go.uber.org/zap"
)

// SendOTP generates a fresh one-time code for the account's phone number,
// overwriting any previous pending code, and attempts SMS delivery. Delivery
// failure is logged and swallowed: the stored code stays valid so the user
// can still submit a late-arriving message. The returned echo is the code
// itself when echo mode is on (non-production), empty otherwise.
func (s *Service) SendOTP(ctx context.Context, userID uuid.UUID, mobileNumber, language string) (echo string, err error) {
	reg, err := s.requireStepOne(ctx, userID)
	if err != nil {
		return "", err
	}

	code, err := generateCode(s.otpLength)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	if _, err := s.repos.Phones.Upsert(ctx, model.PhoneVerification{
		UserID:                 userID,
		OfficialRegistrationID: reg.ID,
		MobileNumber:           mobileNumber,
		Code:                   code,
	}); err != nil {
		return "", err
	}

	if language == "" {
		language = "en"
	}
	if err := s.sms.SendOTP(ctx, mobileNumber, code, language); err != nil {
		// The OTP stays valid even when the carrier call fails.
		s.log.Error("failed to send OTP sms",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}

	if s.echoOTP {
		return code, nil
	}
	return "", nil
}

// VerifyOTP checks the submitted code against the stored one. On match the
// phone record becomes verified and the step-1 state flips to completed;
// that transition is the single trigger for overall registration completion.
func (s *Service) VerifyOTP(ctx context.Context, userID uuid.UUID, mobileNumber, code string) error {
	pv, err := s.repos.Phones.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNoOTPRequest
		}
		return fmt.Errorf("lookup phone verification: %w", err)
	}

	if pv.MobileNumber != mobileNumber {
		return ErrPhoneMismatch
	}
	// Exact string equality, no leniency.
	if pv.Code != code {
		return ErrInvalidOTPCode
	}

	if err := s.repos.Phones.MarkVerified(ctx, pv.ID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	if err := s.repos.Registrations.SetState(ctx, userID, model.StateCompleted); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("complete registration: %w", err)
		}
	}
	return nil
}

// PhoneVerificationRecord returns the step-5 record.
func (s *Service) PhoneVerificationRecord(ctx context.Context, userID uuid.UUID) (model.PhoneVerification, error) {
	return s.repos.Phones.GetByUserID(ctx, userID)
}

// generateCode returns a numeric code of the given length, uniform over the
// full range for that length. Leading zeros are allowed.
func generateCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
