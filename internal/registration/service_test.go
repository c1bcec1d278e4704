package registration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
)

// In-memory fakes for the workflow stores.

type fakeRegistrationRepo struct {
	byUser    map[uuid.UUID]model.Registration
	upsertErr error
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{byUser: make(map[uuid.UUID]model.Registration)}
}

func (f *fakeRegistrationRepo) GetByUserID(_ context.Context, userID uuid.UUID) (model.Registration, error) {
	reg, ok := f.byUser[userID]
	if !ok {
		return model.Registration{}, repo.ErrNotFound
	}
	return reg, nil
}

func (f *fakeRegistrationRepo) ProfileNameTaken(_ context.Context, profileName string, excludeUserID uuid.UUID) (bool, error) {
	for uid, reg := range f.byUser {
		if uid != excludeUserID && reg.ProfileName == profileName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationRepo) PhoneTaken(_ context.Context, phone string, excludeUserID uuid.UUID) (bool, error) {
	for uid, reg := range f.byUser {
		if uid != excludeUserID && reg.Phone == phone {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationRepo) Upsert(_ context.Context, reg model.Registration) (model.Registration, error) {
	if f.upsertErr != nil {
		return model.Registration{}, f.upsertErr
	}
	existing, ok := f.byUser[reg.UserID]
	if ok {
		reg.ID = existing.ID
		reg.CurrentState = model.StateInProgress
	} else {
		reg.ID = uuid.New()
		reg.CurrentState = model.StatePending
	}
	f.byUser[reg.UserID] = reg
	return reg, nil
}

func (f *fakeRegistrationRepo) SetState(_ context.Context, userID uuid.UUID, state model.RegistrationState) error {
	reg, ok := f.byUser[userID]
	if !ok {
		return repo.ErrNotFound
	}
	reg.CurrentState = state
	f.byUser[userID] = reg
	return nil
}

type fakeProfileRepo struct {
	byUser map[uuid.UUID]model.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{byUser: make(map[uuid.UUID]model.Profile)}
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (model.Profile, error) {
	p, ok := f.byUser[userID]
	if !ok {
		return model.Profile{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileRepo) UpsertInterests(_ context.Context, upd repo.InterestsUpdate) (model.Profile, error) {
	p, ok := f.byUser[upd.UserID]
	if !ok {
		p = model.Profile{ID: uuid.New(), UserID: upd.UserID, ProfileVisibility: "public"}
	}
	p.OfficialRegistrationID = upd.OfficialRegistrationID
	mb := upd.ModelBefore
	price := upd.Price
	p.ModelBefore = &mb
	p.Price = &price
	p.OtherModeling = upd.OtherModeling
	seen := make(map[int]bool)
	p.InterestIDs = nil
	for _, id := range upd.InterestIDs {
		if !seen[id] {
			seen[id] = true
			p.InterestIDs = append(p.InterestIDs, id)
		}
	}
	f.byUser[upd.UserID] = p
	return p, nil
}

func (f *fakeProfileRepo) UpsertProfile(_ context.Context, in model.Profile) (model.Profile, error) {
	p, ok := f.byUser[in.UserID]
	if !ok {
		p = model.Profile{ID: uuid.New(), UserID: in.UserID}
	}
	p.OfficialRegistrationID = in.OfficialRegistrationID
	p.BriefIntro = in.BriefIntro
	p.ProfileVisibility = in.ProfileVisibility
	p.TwitterLink = in.TwitterLink
	p.InstagramLink = in.InstagramLink
	p.FacebookLink = in.FacebookLink
	p.SnapchatLink = in.SnapchatLink
	p.TiktokLink = in.TiktokLink
	p.YoutubeLink = in.YoutubeLink
	p.JobSectorID = in.JobSectorID
	p.JobTitle = in.JobTitle
	p.HeightID = in.HeightID
	f.byUser[in.UserID] = p
	return p, nil
}

func (f *fakeProfileRepo) UpsertHeight(_ context.Context, userID, officialRegistrationID uuid.UUID, heightID int) error {
	p, ok := f.byUser[userID]
	if !ok {
		p = model.Profile{ID: uuid.New(), UserID: userID, OfficialRegistrationID: officialRegistrationID, ProfileVisibility: "public"}
	}
	p.HeightID = &heightID
	f.byUser[userID] = p
	return nil
}

type fakeModelingRepo struct {
	byUser map[uuid.UUID]model.Modeling
}

func newFakeModelingRepo() *fakeModelingRepo {
	return &fakeModelingRepo{byUser: make(map[uuid.UUID]model.Modeling)}
}

func (f *fakeModelingRepo) GetByUserID(_ context.Context, userID uuid.UUID) (model.Modeling, error) {
	m, ok := f.byUser[userID]
	if !ok {
		return model.Modeling{}, repo.ErrNotFound
	}
	return m, nil
}

func (f *fakeModelingRepo) Upsert(_ context.Context, upd repo.ModelingUpdate) (model.Modeling, error) {
	m, ok := f.byUser[upd.UserID]
	if !ok {
		m = model.Modeling{ID: uuid.New(), UserID: upd.UserID}
	}
	m.OfficialRegistrationID = upd.OfficialRegistrationID
	m.ModelBefore = upd.ModelBefore
	m.Price = upd.Price
	m.OtherModeling = upd.OtherModeling
	m.OtherProduction = upd.OtherProduction
	m.OtherPreference = upd.OtherPreference
	m.ModelingTypeIDs = dedupeInts(upd.ModelingTypeIDs)
	m.ProductionTypeIDs = dedupeInts(upd.ProductionTypeIDs)
	m.PreferenceIDs = dedupeInts(upd.PreferenceIDs)
	f.byUser[upd.UserID] = m
	return m, nil
}

func dedupeInts(ids []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type fakeVerificationRepo struct {
	byUser map[uuid.UUID]model.Verification
}

func newFakeVerificationRepo() *fakeVerificationRepo {
	return &fakeVerificationRepo{byUser: make(map[uuid.UUID]model.Verification)}
}

func (f *fakeVerificationRepo) GetByUserID(_ context.Context, userID uuid.UUID) (model.Verification, error) {
	v, ok := f.byUser[userID]
	if !ok {
		return model.Verification{}, repo.ErrNotFound
	}
	return v, nil
}

func (f *fakeVerificationRepo) Upsert(_ context.Context, in model.Verification) (model.Verification, error) {
	v, ok := f.byUser[in.UserID]
	if ok {
		in.ID = v.ID
	} else {
		in.ID = uuid.New()
	}
	// Every write resets the review outcome.
	in.Status = model.VerificationPending
	f.byUser[in.UserID] = in
	return in, nil
}

type fakePhoneRepo struct {
	byUser map[uuid.UUID]model.PhoneVerification
}

func newFakePhoneRepo() *fakePhoneRepo {
	return &fakePhoneRepo{byUser: make(map[uuid.UUID]model.PhoneVerification)}
}

func (f *fakePhoneRepo) GetByUserID(_ context.Context, userID uuid.UUID) (model.PhoneVerification, error) {
	pv, ok := f.byUser[userID]
	if !ok {
		return model.PhoneVerification{}, repo.ErrNotFound
	}
	return pv, nil
}

func (f *fakePhoneRepo) Upsert(_ context.Context, in model.PhoneVerification) (model.PhoneVerification, error) {
	pv, ok := f.byUser[in.UserID]
	if ok {
		in.ID = pv.ID
	} else {
		in.ID = uuid.New()
	}
	in.Status = model.VerificationPending
	f.byUser[in.UserID] = in
	return in, nil
}

func (f *fakePhoneRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	for uid, pv := range f.byUser {
		if pv.ID == id {
			pv.Status = model.VerificationVerified
			f.byUser[uid] = pv
			return nil
		}
	}
	return repo.ErrNotFound
}

// fakeSender records outgoing SMS and can simulate carrier failure.
type fakeSender struct {
	sent []sentSMS
	err  error
}

type sentSMS struct {
	phone, code, language string
}

func (f *fakeSender) SendOTP(_ context.Context, phoneNumber, code, language string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentSMS{phone: phoneNumber, code: code, language: language})
	return nil
}

type testEnv struct {
	svc           *Service
	registrations *fakeRegistrationRepo
	profiles      *fakeProfileRepo
	modelings     *fakeModelingRepo
	verifications *fakeVerificationRepo
	phones        *fakePhoneRepo
	sender        *fakeSender
}

func newTestEnv() *testEnv {
	env := &testEnv{
		registrations: newFakeRegistrationRepo(),
		profiles:      newFakeProfileRepo(),
		modelings:     newFakeModelingRepo(),
		verifications: newFakeVerificationRepo(),
		phones:        newFakePhoneRepo(),
		sender:        &fakeSender{},
	}
	repos := Repos{
		Registrations: env.registrations,
		Profiles:      env.profiles,
		Modelings:     env.modelings,
		Verifications: env.verifications,
		Phones:        env.phones,
	}
	env.svc = NewService(repos, env.sender, 6, true, zap.NewNop())
	return env
}

func basicInfo(profileName, phone string) BasicInfoInput {
	return BasicInfoInput{
		Name:          "Test User",
		ProfileName:   profileName,
		Phone:         phone,
		Gender:        "female",
		DOB:           time.Date(1995, 4, 12, 0, 0, 0, 0, time.UTC),
		Nationality:   "KW",
		PlaceOfLiving: "Kuwait City",
		Address:       "Block 1",
	}
}

func TestSaveBasicInfo_createAndResubmit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	reg, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, reg.CurrentState)

	// Resubmitting your own profile name and phone is idempotent.
	reg2, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)
	assert.Equal(t, reg.ID, reg2.ID)
	assert.Equal(t, model.StateInProgress, reg2.CurrentState)
}

func TestSaveBasicInfo_uniqueness(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	_, err = env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_one", "+96500000000"))
	assert.ErrorIs(t, err, ErrProfileNameTaken)

	_, err = env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_two", "+96512345678"))
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

// An empty phone goes through the same uniqueness check as any other value,
// so two accounts can never both store ''.
func TestSaveBasicInfo_emptyPhoneIsStillChecked(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_one", ""))
	require.NoError(t, err)

	_, err = env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_two", ""))
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

// A concurrent write can pass the pre-insert checks and trip the unique
// indexes instead; those violations must still map to the conflict errors.
func TestSaveBasicInfo_upsertConflictMapping(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.registrations.upsertErr = repo.ErrProfileNameConflict
	_, err := env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_one", "+96512345678"))
	assert.ErrorIs(t, err, ErrProfileNameTaken)

	env.registrations.upsertErr = repo.ErrPhoneConflict
	_, err = env.svc.SaveBasicInfo(ctx, uuid.New(), basicInfo("talent_one", "+96512345678"))
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

func TestStepsRequireBasicInfo(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveInterests(ctx, userID, InterestsInput{Price: 10})
	assert.ErrorIs(t, err, ErrStepOneRequired)

	_, err = env.svc.SaveModeling(ctx, userID, ModelingInput{Price: 10})
	assert.ErrorIs(t, err, ErrStepOneRequired)

	_, err = env.svc.SaveProfile(ctx, userID, ProfileInput{})
	assert.ErrorIs(t, err, ErrStepOneRequired)

	_, err = env.svc.SaveVerification(ctx, userID, VerificationInput{AccountNumberIBAN: "KW81CBKU0000000000001234560101"})
	assert.ErrorIs(t, err, ErrStepOneRequired)

	_, err = env.svc.SendOTP(ctx, userID, "+96512345678", "en")
	assert.ErrorIs(t, err, ErrStepOneRequired)
}

func TestSaveInterests_replacesAssociationSet(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	p, err := env.svc.SaveInterests(ctx, userID, InterestsInput{
		ModelBefore: true,
		Price:       25,
		InterestIDs: []int{1, 2, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, p.InterestIDs)

	// A second submit fully replaces the set; no residue from the first.
	p, err = env.svc.SaveInterests(ctx, userID, InterestsInput{
		ModelBefore: true,
		Price:       25,
		InterestIDs: []int{2, 4, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, p.InterestIDs, "set replaced and duplicates dropped")
}

func TestSaveInterests_negativePrice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	_, err = env.svc.SaveInterests(ctx, userID, InterestsInput{Price: -1})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestSaveModeling_heightCrossWrite(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	height := 7
	m, err := env.svc.SaveModeling(ctx, userID, ModelingInput{
		ModelBefore:       true,
		Price:             30,
		HeightID:          &height,
		ModelingTypeIDs:   []int{1, 1, 2},
		ProductionTypeIDs: []int{3},
		PreferenceIDs:     []int{4, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, m.ModelingTypeIDs)

	// The legacy height lands on the step-3 profile record.
	p, err := env.svc.ProfileRecord(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, p.HeightID)
	assert.Equal(t, 7, *p.HeightID)
}

func TestSaveProfile_visibilityDefault(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	intro := "Hi there"
	p, err := env.svc.SaveProfile(ctx, userID, ProfileInput{BriefIntro: &intro})
	require.NoError(t, err)
	assert.Equal(t, "public", p.ProfileVisibility)

	p, err = env.svc.SaveProfile(ctx, userID, ProfileInput{BriefIntro: &intro, ProfileVisibility: "private"})
	require.NoError(t, err)
	assert.Equal(t, "private", p.ProfileVisibility)
}

func TestSaveVerification_ibanHandling(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	userID := uuid.New()

	_, err := env.svc.SaveBasicInfo(ctx, userID, basicInfo("talent_one", "+96512345678"))
	require.NoError(t, err)

	v, err := env.svc.SaveVerification(ctx, userID, VerificationInput{
		CivilID:           "295041200123",
		BankName:          "NBK",
		AccountHolderName: "Test User",
		AccountNumberIBAN: "kw81 cbku 0000 0000 0000 1234 5601 01",
	})
	require.NoError(t, err)
	assert.Equal(t, "KW81CBKU0000000000001234560101", v.AccountNumberIBAN)
	assert.Equal(t, model.VerificationPending, v.Status)

	_, err = env.svc.SaveVerification(ctx, userID, VerificationInput{
		CivilID:           "295041200123",
		BankName:          "NBK",
		AccountHolderName: "Test User",
		AccountNumberIBAN: "81KW0000",
	})
	assert.ErrorIs(t, err, ErrInvalidIBAN)
}

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "KW81CBKU0101", NormalizeIBAN(" kw81\tcbku 0101 "))
	assert.Equal(t, "", NormalizeIBAN("   "))
}
