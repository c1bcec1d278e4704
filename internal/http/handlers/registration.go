package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/humanize/server/internal/middleware"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/registration"
	"github.com/humanize/server/internal/repo"
	"go.uber.org/zap"
)

// RegistrationHandler handles the five-step registration workflow endpoints
type RegistrationHandler struct {
	svc           *registration.Service
	sendLimiter   *middleware.RateLimiter
	verifyLimiter *middleware.RateLimiter
	log           *zap.Logger
}

// NewRegistrationHandler creates a new registration handler. Per-IP limits
// apply to the two phone endpoints only.
func NewRegistrationHandler(svc *registration.Service, log *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		svc:           svc,
		sendLimiter:   middleware.NewRateLimiter(10*time.Minute, 10),
		verifyLimiter: middleware.NewRateLimiter(10*time.Minute, 20),
		log:           log,
	}
}

// respondServiceError maps workflow errors onto the HTTP taxonomy.
func (h *RegistrationHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registration.ErrProfileNameTaken),
		errors.Is(err, registration.ErrPhoneTaken):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registration.ErrStepOneRequired),
		errors.Is(err, registration.ErrInvalidPrice),
		errors.Is(err, registration.ErrInvalidIBAN),
		errors.Is(err, registration.ErrPhoneMismatch),
		errors.Is(err, registration.ErrInvalidOTPCode):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registration.ErrNoOTPRequest):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("registration request failed", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "request failed")
	}
}

type stepResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type registrationView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ProfileName   string `json:"profileName"`
	Phone         string `json:"phone"`
	Gender        string `json:"gender"`
	DOB           string `json:"dob"`
	Nationality   string `json:"nationality"`
	PlaceOfLiving string `json:"placeOfLiving"`
	Address       string `json:"address"`
	CurrentState  string `json:"currentState"`
}

func toRegistrationView(reg model.Registration) registrationView {
	return registrationView{
		ID:            reg.ID.String(),
		Name:          reg.Name,
		ProfileName:   reg.ProfileName,
		Phone:         reg.Phone,
		Gender:        reg.Gender,
		DOB:           reg.DOB.Format("2006-01-02"),
		Nationality:   reg.Nationality,
		PlaceOfLiving: reg.PlaceOfLiving,
		Address:       reg.Address,
		CurrentState:  string(reg.CurrentState),
	}
}

type profileView struct {
	ID                string   `json:"id"`
	BriefIntro        *string  `json:"briefIntro"`
	ProfileVisibility string   `json:"profileVisibility"`
	ModelBefore       *bool    `json:"modelBefore"`
	Price             *float64 `json:"price"`
	OtherModeling     *string  `json:"otherModeling"`
	TwitterLink       string   `json:"twitterLink"`
	InstagramLink     string   `json:"instagramLink"`
	FacebookLink      string   `json:"facebookLink"`
	SnapchatLink      string   `json:"snapchatLink"`
	TiktokLink        string   `json:"tiktokLink"`
	YoutubeLink       string   `json:"youtubeLink"`
	JobSectorID       *int     `json:"jobSectorId"`
	JobTitle          *string  `json:"jobTitle"`
	HeightID          *int     `json:"heightId"`
	Interests         []int    `json:"interests"`
}

func toProfileView(p model.Profile) profileView {
	interests := p.InterestIDs
	if interests == nil {
		interests = []int{}
	}
	return profileView{
		ID:                p.ID.String(),
		BriefIntro:        p.BriefIntro,
		ProfileVisibility: p.ProfileVisibility,
		ModelBefore:       p.ModelBefore,
		Price:             p.Price,
		OtherModeling:     p.OtherModeling,
		TwitterLink:       p.TwitterLink,
		InstagramLink:     p.InstagramLink,
		FacebookLink:      p.FacebookLink,
		SnapchatLink:      p.SnapchatLink,
		TiktokLink:        p.TiktokLink,
		YoutubeLink:       p.YoutubeLink,
		JobSectorID:       p.JobSectorID,
		JobTitle:          p.JobTitle,
		HeightID:          p.HeightID,
		Interests:         interests,
	}
}

type step1Request struct {
	Name          string `json:"name"`
	ProfileName   string `json:"profileName"`
	Phone         string `json:"phone"`
	Gender        string `json:"gender"`
	DOB           string `json:"dob"`
	Nationality   string `json:"nationality"`
	PlaceOfLiving string `json:"placeOfLiving"`
	Address       string `json:"address"`
}

// HandleStep1 handles POST /registration/step1
func (h *RegistrationHandler) HandleStep1(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req step1Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.ProfileName == "" || req.Phone == "" {
		respondWithError(w, http.StatusBadRequest, "name, profileName and phone are required")
		return
	}
	dob, err := time.Parse("2006-01-02", req.DOB)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "dob must be in YYYY-MM-DD format")
		return
	}

	reg, err := h.svc.SaveBasicInfo(r.Context(), user.ID, registration.BasicInfoInput{
		Name:          req.Name,
		ProfileName:   req.ProfileName,
		Phone:         req.Phone,
		Gender:        req.Gender,
		DOB:           dob,
		Nationality:   req.Nationality,
		PlaceOfLiving: req.PlaceOfLiving,
		Address:       req.Address,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stepResponse{
		Success: true,
		Message: "Basic information saved successfully",
		Data:    toRegistrationView(reg),
	})
}

// HandleGetStep1 handles GET /registration/step1
func (h *RegistrationHandler) HandleGetStep1(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reg, err := h.svc.BasicInfo(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toRegistrationView(reg)})
}

type step2InterestsRequest struct {
	ModelBefore   bool    `json:"modelBefore"`
	Price         float64 `json:"price"`
	OtherModeling *string `json:"otherModeling"`
	Interests     []int   `json:"interests"`
}

// HandleStep2 handles POST /registration/step2 (interests shape)
func (h *RegistrationHandler) HandleStep2(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req step2InterestsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.svc.SaveInterests(r.Context(), user.ID, registration.InterestsInput{
		ModelBefore:   req.ModelBefore,
		Price:         req.Price,
		OtherModeling: req.OtherModeling,
		InterestIDs:   req.Interests,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stepResponse{
		Success: true,
		Message: "Interests saved successfully",
		Data:    toProfileView(p),
	})
}

type step2ModelingRequest struct {
	ModelBefore     bool    `json:"modelBefore"`
	Price           float64 `json:"price"`
	OtherModeling   *string `json:"otherModeling"`
	OtherProduction *string `json:"otherProduction"`
	OtherPreference *string `json:"otherPreference"`
	HeightID        *int    `json:"heightId"`
	ModelingTypes   []int   `json:"modelingTypes"`
	ProductionTypes []int   `json:"productionTypes"`
	Preferences     []int   `json:"preferences"`
}

type modelingView struct {
	ID              string  `json:"id"`
	ModelBefore     bool    `json:"modelBefore"`
	Price           float64 `json:"price"`
	OtherModeling   *string `json:"otherModeling"`
	OtherProduction *string `json:"otherProduction"`
	OtherPreference *string `json:"otherPreference"`
	ModelingTypes   []int   `json:"modelingTypes"`
	ProductionTypes []int   `json:"productionTypes"`
	Preferences     []int   `json:"preferences"`
}

func toModelingView(m model.Modeling) modelingView {
	emptyIfNil := func(ids []int) []int {
		if ids == nil {
			return []int{}
		}
		return ids
	}
	return modelingView{
		ID:              m.ID.String(),
		ModelBefore:     m.ModelBefore,
		Price:           m.Price,
		OtherModeling:   m.OtherModeling,
		OtherProduction: m.OtherProduction,
		OtherPreference: m.OtherPreference,
		ModelingTypes:   emptyIfNil(m.ModelingTypeIDs),
		ProductionTypes: emptyIfNil(m.ProductionTypeIDs),
		Preferences:     emptyIfNil(m.PreferenceIDs),
	}
}

// HandleStep2Modeling handles POST /registration/step2/modeling (legacy shape)
func (h *RegistrationHandler) HandleStep2Modeling(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req step2ModelingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.svc.SaveModeling(r.Context(), user.ID, registration.ModelingInput{
		ModelBefore:       req.ModelBefore,
		Price:             req.Price,
		OtherModeling:     req.OtherModeling,
		OtherProduction:   req.OtherProduction,
		OtherPreference:   req.OtherPreference,
		HeightID:          req.HeightID,
		ModelingTypeIDs:   req.ModelingTypes,
		ProductionTypeIDs: req.ProductionTypes,
		PreferenceIDs:     req.Preferences,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stepResponse{
		Success: true,
		Message: "Modeling preferences saved successfully",
		Data:    toModelingView(m),
	})
}

type step3Request struct {
	BriefIntro        *string `json:"briefIntro"`
	ProfileVisibility string  `json:"profileVisibility"`
	TwitterLink       string  `json:"twitterLink"`
	InstagramLink     string  `json:"instagramLink"`
	FacebookLink      string  `json:"facebookLink"`
	SnapchatLink      string  `json:"snapchatLink"`
	TiktokLink        string  `json:"tiktokLink"`
	YoutubeLink       string  `json:"youtubeLink"`
	JobSectorID       *int    `json:"jobSectorId"`
	JobTitle          *string `json:"jobTitle"`
	HeightID          *int    `json:"heightId"`
}

// HandleStep3 handles POST /registration/step3
func (h *RegistrationHandler) HandleStep3(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req step3Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfileVisibility != "" && req.ProfileVisibility != "public" && req.ProfileVisibility != "private" {
		respondWithError(w, http.StatusBadRequest, "profileVisibility must be public or private")
		return
	}

	p, err := h.svc.SaveProfile(r.Context(), user.ID, registration.ProfileInput{
		BriefIntro:        req.BriefIntro,
		ProfileVisibility: req.ProfileVisibility,
		TwitterLink:       req.TwitterLink,
		InstagramLink:     req.InstagramLink,
		FacebookLink:      req.FacebookLink,
		SnapchatLink:      req.SnapchatLink,
		TiktokLink:        req.TiktokLink,
		YoutubeLink:       req.YoutubeLink,
		JobSectorID:       req.JobSectorID,
		JobTitle:          req.JobTitle,
		HeightID:          req.HeightID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stepResponse{
		Success: true,
		Message: "Profile saved successfully",
		Data:    toProfileView(p),
	})
}

type step4Request struct {
	CivilID              string `json:"civilId"`
	PassportID           string `json:"passportId"`
	CountryList          string `json:"countryList"`
	BankName             string `json:"bankName"`
	BankAddress          string `json:"bankAddress"`
	AccountHolderName    string `json:"accountHolderName"`
	AccountHolderAddress string `json:"accountHolderAddress"`
	AccountNumberIBAN    string `json:"accountNumberIBAN"`
	SwiftNumber          string `json:"swiftNumber"`
}

type verificationView struct {
	ID                   string `json:"id"`
	CivilID              string `json:"civilId"`
	PassportID           string `json:"passportId"`
	CountryList          string `json:"countryList"`
	BankName             string `json:"bankName"`
	BankAddress          string `json:"bankAddress"`
	AccountHolderName    string `json:"accountHolderName"`
	AccountHolderAddress string `json:"accountHolderAddress"`
	AccountNumberIBAN    string `json:"accountNumberIBAN"`
	SwiftNumber          string `json:"swiftNumber"`
	Status               string `json:"status"`
}

func toVerificationView(v model.Verification) verificationView {
	return verificationView{
		ID:                   v.ID.String(),
		CivilID:              v.CivilID,
		PassportID:           v.PassportID,
		CountryList:          v.CountryList,
		BankName:             v.BankName,
		BankAddress:          v.BankAddress,
		AccountHolderName:    v.AccountHolderName,
		AccountHolderAddress: v.AccountHolderAddress,
		AccountNumberIBAN:    v.AccountNumberIBAN,
		SwiftNumber:          v.SwiftNumber,
		Status:               string(v.Status),
	}
}

// HandleStep4 handles POST /registration/step4
func (h *RegistrationHandler) HandleStep4(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req step4Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CivilID == "" || req.BankName == "" || req.AccountHolderName == "" || req.AccountNumberIBAN == "" {
		respondWithError(w, http.StatusBadRequest, "civilId, bankName, accountHolderName and accountNumberIBAN are required")
		return
	}

	v, err := h.svc.SaveVerification(r.Context(), user.ID, registration.VerificationInput{
		CivilID:              req.CivilID,
		PassportID:           req.PassportID,
		CountryList:          req.CountryList,
		BankName:             req.BankName,
		BankAddress:          req.BankAddress,
		AccountHolderName:    req.AccountHolderName,
		AccountHolderAddress: req.AccountHolderAddress,
		AccountNumberIBAN:    req.AccountNumberIBAN,
		SwiftNumber:          req.SwiftNumber,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stepResponse{
		Success: true,
		Message: "Verification details saved successfully",
		Data:    toVerificationView(v),
	})
}

type sendOTPRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Language     string `json:"language"`
}

type sendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OTP     string `json:"otp,omitempty"`
}

// HandleSendOTP handles POST /registration/phone/send
func (h *RegistrationHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.sendLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MobileNumber == "" {
		respondWithError(w, http.StatusBadRequest, "mobileNumber is required")
		return
	}

	echo, err := h.svc.SendOTP(r.Context(), user.ID, req.MobileNumber, req.Language)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sendOTPResponse{
		Success: true,
		Message: "OTP sent successfully",
		OTP:     echo,
	})
}

type verifyOTPRequest struct {
	MobileNumber string `json:"mobileNumber"`
	Code         string `json:"code"`
}

// HandleVerifyOTP handles POST /registration/phone/verify
func (h *RegistrationHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.verifyLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MobileNumber == "" || req.Code == "" {
		respondWithError(w, http.StatusBadRequest, "mobileNumber and code are required")
		return
	}

	if err := h.svc.VerifyOTP(r.Context(), user.ID, req.MobileNumber, req.Code); err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Phone number verified successfully. Registration complete!",
	})
}

// HandleGetStep2 handles GET /registration/step2
func (h *RegistrationHandler) HandleGetStep2(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.svc.Interests(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toProfileView(p)})
}

// HandleGetStep2Modeling handles GET /registration/step2/modeling
func (h *RegistrationHandler) HandleGetStep2Modeling(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	m, err := h.svc.ModelingRecord(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toModelingView(m)})
}

// HandleGetStep3 handles GET /registration/step3
func (h *RegistrationHandler) HandleGetStep3(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.svc.ProfileRecord(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toProfileView(p)})
}

// HandleGetStep4 handles GET /registration/step4
func (h *RegistrationHandler) HandleGetStep4(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	v, err := h.svc.VerificationRecord(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			respondJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": toVerificationView(v)})
}

// HandleStatus handles GET /registration/status
func (h *RegistrationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.svc.Status(r.Context(), user.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
