package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountType is the closed set of account kinds. Workflows branch on the
// tag explicitly; no behavior hangs off the type itself.
type AccountType string

const (
	AccountTypeHuman        AccountType = "human"
	AccountTypeOrganization AccountType = "organization"
	AccountTypeAgency       AccountType = "agency"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeHuman, AccountTypeOrganization, AccountTypeAgency:
		return true
	}
	return false
}

// User represents an account in the system
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	AccountType  AccountType
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// RegistrationState tracks overall progress on the step-1 record.
type RegistrationState string

const (
	StatePending    RegistrationState = "pending"
	StateInProgress RegistrationState = "in_progress"
	StateCompleted  RegistrationState = "completed"
)

// Registration is the step-1 basic-information record (one per account).
type Registration struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	ProfileName   string
	Phone         string
	Gender        string
	DOB           time.Time
	Nationality   string
	PlaceOfLiving string
	Address       string
	CurrentState  RegistrationState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile holds the step-2 (interests shape) and step-3 fields. Social links
// are stored as empty strings, never NULL, when omitted.
type Profile struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	BriefIntro             *string
	ProfileVisibility      string
	ModelBefore            *bool
	Price                  *float64
	OtherModeling          *string
	TwitterLink            string
	InstagramLink          string
	FacebookLink           string
	SnapchatLink           string
	TiktokLink             string
	YoutubeLink            string
	JobSectorID            *int
	JobTitle               *string
	HeightID               *int
	CurrentState           RegistrationState
	InterestIDs            []int
}

// Modeling is the legacy step-2 record, kept for backward compatibility with
// existing data. The three id slices are full association sets.
type Modeling struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	ModelBefore            bool
	Price                  float64
	OtherModeling          *string
	OtherProduction        *string
	OtherPreference        *string
	CurrentStatus          RegistrationState
	ModelingTypeIDs        []int
	ProductionTypeIDs      []int
	PreferenceIDs          []int
}

// VerificationStatus is the review outcome on step-4 and step-5 records.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Verification is the step-4 bank/ID record (one per account).
type Verification struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	CivilID                string
	PassportID             string
	CountryList            string
	BankName               string
	BankAddress            string
	AccountHolderName      string
	AccountHolderAddress   string
	AccountNumberIBAN      string
	SwiftNumber            string
	Status                 VerificationStatus
}

// PhoneVerification is the step-5 OTP record. At most one live code per
// account; a new send overwrites the previous one.
type PhoneVerification struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	OfficialRegistrationID uuid.UUID
	MobileNumber           string
	Code                   string
	Status                 VerificationStatus
}
