package registration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
	"github.com/humanize/server/internal/sms"
	"go.uber.org/zap"
)

var (
	// ErrStepOneRequired is the dependency error for steps 2-5: the step-1
	// record must exist first.
	ErrStepOneRequired = errors.New("please complete step 1 (basic information) first")
	// ErrProfileNameTaken is returned when another account owns the handle.
	ErrProfileNameTaken = errors.New("profile name is already taken")
	// ErrPhoneTaken is returned when another account owns the phone number.
	ErrPhoneTaken = errors.New("phone number is already registered")
	// ErrInvalidPrice is returned for a negative hourly rate.
	ErrInvalidPrice = errors.New("price must not be negative")
	// ErrInvalidIBAN is returned when the normalized IBAN fails the shape check.
	ErrInvalidIBAN = errors.New("invalid IBAN format")
	// ErrNoOTPRequest is returned when verifying without a prior send.
	ErrNoOTPRequest = errors.New("no OTP request found, please request a new OTP")
	// ErrPhoneMismatch is returned when the submitted phone differs from the
	// one the OTP was sent to.
	ErrPhoneMismatch = errors.New("phone number does not match")
	// ErrInvalidOTPCode is returned on a code mismatch.
	ErrInvalidOTPCode = errors.New("invalid OTP code")
)

var ibanPattern = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]+$`)

// Repos bundles the stores the registration workflow writes to.
type Repos struct {
	Registrations repo.RegistrationRepo
	Profiles      repo.ProfileRepo
	Modelings     repo.ModelingRepo
	Verifications repo.VerificationRepo
	Phones        repo.PhoneVerificationRepo
}

// Service enforces step ordering, uniqueness and the OTP sub-state-machine of
// the talent registration workflow.
type Service struct {
	repos     Repos
	sms       sms.Sender
	otpLength int
	echoOTP   bool
	log       *zap.Logger
}

// NewService creates a new registration service. echoOTP controls whether
// generated codes are returned to callers (non-production only).
func NewService(repos Repos, sender sms.Sender, otpLength int, echoOTP bool, log *zap.Logger) *Service {
	return &Service{
		repos:     repos,
		sms:       sender,
		otpLength: otpLength,
		echoOTP:   echoOTP,
		log:       log,
	}
}

// BasicInfoInput carries the step-1 payload.
type BasicInfoInput struct {
	Name          string
	ProfileName   string
	Phone         string
	Gender        string
	DOB           time.Time
	Nationality   string
	PlaceOfLiving string
	Address       string
}

// SaveBasicInfo upserts the step-1 record. Profile name and phone must be
// unique across all other accounts; resubmitting the caller's own values is
// idempotent.
func (s *Service) SaveBasicInfo(ctx context.Context, userID uuid.UUID, in BasicInfoInput) (model.Registration, error) {
	taken, err := s.repos.Registrations.ProfileNameTaken(ctx, in.ProfileName, userID)
	if err != nil {
		return model.Registration{}, fmt.Errorf("check profile name: %w", err)
	}
	if taken {
		return model.Registration{}, ErrProfileNameTaken
	}

	taken, err = s.repos.Registrations.PhoneTaken(ctx, in.Phone, userID)
	if err != nil {
		return model.Registration{}, fmt.Errorf("check phone: %w", err)
	}
	if taken {
		return model.Registration{}, ErrPhoneTaken
	}

	reg, err := s.repos.Registrations.Upsert(ctx, model.Registration{
		UserID:        userID,
		Name:          in.Name,
		ProfileName:   in.ProfileName,
		Phone:         in.Phone,
		Gender:        in.Gender,
		DOB:           in.DOB,
		Nationality:   in.Nationality,
		PlaceOfLiving: in.PlaceOfLiving,
		Address:       in.Address,
	})
	if err != nil {
		// A concurrent write can slip past the checks above and hit the
		// unique indexes instead; keep those in the conflict taxonomy.
		switch {
		case errors.Is(err, repo.ErrProfileNameConflict):
			return model.Registration{}, ErrProfileNameTaken
		case errors.Is(err, repo.ErrPhoneConflict):
			return model.Registration{}, ErrPhoneTaken
		}
		return model.Registration{}, err
	}
	return reg, nil
}

// BasicInfo returns the step-1 record.
func (s *Service) BasicInfo(ctx context.Context, userID uuid.UUID) (model.Registration, error) {
	return s.repos.Registrations.GetByUserID(ctx, userID)
}

// InterestsInput carries the current step-2 payload.
type InterestsInput struct {
	ModelBefore   bool
	Price         float64
	OtherModeling *string
	InterestIDs   []int
}

// SaveInterests upserts the step-2 profile fields and replaces the full
// interest association set. Duplicate ids are deduplicated silently.
func (s *Service) SaveInterests(ctx context.Context, userID uuid.UUID, in InterestsInput) (model.Profile, error) {
	reg, err := s.requireStepOne(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	if in.Price < 0 {
		return model.Profile{}, ErrInvalidPrice
	}

	return s.repos.Profiles.UpsertInterests(ctx, repo.InterestsUpdate{
		UserID:                 userID,
		OfficialRegistrationID: reg.ID,
		ModelBefore:            in.ModelBefore,
		Price:                  in.Price,
		OtherModeling:          in.OtherModeling,
		InterestIDs:            in.InterestIDs,
	})
}

// Interests returns the profile record carrying the step-2 fields.
func (s *Service) Interests(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	return s.repos.Profiles.GetByUserID(ctx, userID)
}

// ModelingInput carries the legacy step-2 payload.
type ModelingInput struct {
	ModelBefore       bool
	Price             float64
	OtherModeling     *string
	OtherProduction   *string
	OtherPreference   *string
	HeightID          *int
	ModelingTypeIDs   []int
	ProductionTypeIDs []int
	PreferenceIDs     []int
}

// SaveModeling upserts the legacy step-2 record, replacing its three
// association sets. A submitted height is also written into the step-3
// profile record; that cross-step write is deliberate and preserved.
func (s *Service) SaveModeling(ctx context.Context, userID uuid.UUID, in ModelingInput) (model.Modeling, error) {
	reg, err := s.requireStepOne(ctx, userID)
	if err != nil {
		return model.Modeling{}, err
	}
	if in.Price < 0 {
		return model.Modeling{}, ErrInvalidPrice
	}

	m, err := s.repos.Modelings.Upsert(ctx, repo.ModelingUpdate{
		UserID:                 userID,
		OfficialRegistrationID: reg.ID,
		ModelBefore:            in.ModelBefore,
		Price:                  in.Price,
		OtherModeling:          in.OtherModeling,
		OtherProduction:        in.OtherProduction,
		OtherPreference:        in.OtherPreference,
		ModelingTypeIDs:        in.ModelingTypeIDs,
		ProductionTypeIDs:      in.ProductionTypeIDs,
		PreferenceIDs:          in.PreferenceIDs,
	})
	if err != nil {
		return model.Modeling{}, err
	}

	if in.HeightID != nil {
		if err := s.applyLegacyHeight(ctx, userID, reg.ID, *in.HeightID); err != nil {
			return model.Modeling{}, err
		}
	}
	return m, nil
}

// applyLegacyHeight propagates the legacy step-2 height into the step-3
// profile record.
func (s *Service) applyLegacyHeight(ctx context.Context, userID, registrationID uuid.UUID, heightID int) error {
	if err := s.repos.Profiles.UpsertHeight(ctx, userID, registrationID, heightID); err != nil {
		return fmt.Errorf("apply legacy height: %w", err)
	}
	return nil
}

// ModelingRecord returns the legacy step-2 record.
func (s *Service) ModelingRecord(ctx context.Context, userID uuid.UUID) (model.Modeling, error) {
	return s.repos.Modelings.GetByUserID(ctx, userID)
}

// ProfileInput carries the step-3 payload.
type ProfileInput struct {
	BriefIntro        *string
	ProfileVisibility string
	TwitterLink       string
	InstagramLink     string
	FacebookLink      string
	SnapchatLink      string
	TiktokLink        string
	YoutubeLink       string
	JobSectorID       *int
	JobTitle          *string
	HeightID          *int
}

// SaveProfile upserts the step-3 fields. Omitted social links are stored as
// empty strings, never NULL.
func (s *Service) SaveProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (model.Profile, error) {
	reg, err := s.requireStepOne(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	visibility := in.ProfileVisibility
	if visibility == "" {
		visibility = "public"
	}

	return s.repos.Profiles.UpsertProfile(ctx, model.Profile{
		UserID:                 userID,
		OfficialRegistrationID: reg.ID,
		BriefIntro:             in.BriefIntro,
		ProfileVisibility:      visibility,
		TwitterLink:            in.TwitterLink,
		InstagramLink:          in.InstagramLink,
		FacebookLink:           in.FacebookLink,
		SnapchatLink:           in.SnapchatLink,
		TiktokLink:             in.TiktokLink,
		YoutubeLink:            in.YoutubeLink,
		JobSectorID:            in.JobSectorID,
		JobTitle:               in.JobTitle,
		HeightID:               in.HeightID,
	})
}

// ProfileRecord returns the profile record.
func (s *Service) ProfileRecord(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	return s.repos.Profiles.GetByUserID(ctx, userID)
}

// VerificationInput carries the step-4 payload.
type VerificationInput struct {
	CivilID              string
	PassportID           string
	CountryList          string
	BankName             string
	BankAddress          string
	AccountHolderName    string
	AccountHolderAddress string
	AccountNumberIBAN    string
	SwiftNumber          string
}

// SaveVerification upserts the step-4 record. The IBAN is normalized
// (whitespace stripped, uppercased) and shape-checked before persisting, and
// every write resets the review status to pending.
func (s *Service) SaveVerification(ctx context.Context, userID uuid.UUID, in VerificationInput) (model.Verification, error) {
	reg, err := s.requireStepOne(ctx, userID)
	if err != nil {
		return model.Verification{}, err
	}

	iban := NormalizeIBAN(in.AccountNumberIBAN)
	if !ibanPattern.MatchString(iban) {
		return model.Verification{}, ErrInvalidIBAN
	}

	return s.repos.Verifications.Upsert(ctx, model.Verification{
		UserID:                 userID,
		OfficialRegistrationID: reg.ID,
		CivilID:                in.CivilID,
		PassportID:             in.PassportID,
		CountryList:            in.CountryList,
		BankName:               in.BankName,
		BankAddress:            in.BankAddress,
		AccountHolderName:      in.AccountHolderName,
		AccountHolderAddress:   in.AccountHolderAddress,
		AccountNumberIBAN:      iban,
		SwiftNumber:            in.SwiftNumber,
	})
}

// VerificationRecord returns the step-4 record.
func (s *Service) VerificationRecord(ctx context.Context, userID uuid.UUID) (model.Verification, error) {
	return s.repos.Verifications.GetByUserID(ctx, userID)
}

// NormalizeIBAN strips all whitespace and uppercases the account number.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}

func (s *Service) requireStepOne(ctx context.Context, userID uuid.UUID) (model.Registration, error) {
	reg, err := s.repos.Registrations.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Registration{}, ErrStepOneRequired
		}
		return model.Registration{}, fmt.Errorf("lookup registration: %w", err)
	}
	return reg, nil
}
