package registration

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/humanize/server/internal/model"
	"github.com/humanize/server/internal/repo"
)

const totalSteps = 5

// StepStatuses reports per-step completion for the projection.
type StepStatuses struct {
	Step1 string `json:"step1"`
	Step2 string `json:"step2"`
	Step3 string `json:"step3"`
	Step4 string `json:"step4"`
	Step5 string `json:"step5"`
}

// Status is the derived registration progress projection. Computing it never
// writes state and is safe to call repeatedly and concurrently.
type Status struct {
	Steps          StepStatuses `json:"steps"`
	CompletedSteps int          `json:"completedSteps"`
	TotalSteps     int          `json:"totalSteps"`
	Progress       int          `json:"progress"`
	IsComplete     bool         `json:"isComplete"`
	CurrentState   string       `json:"currentState"`
}

// Status computes the projection for an account:
// step1 = step-1 record exists; step2 = at least one interest association;
// step3 = any of intro/job sector/job title/twitter/instagram filled;
// step4 = step-4 record exists (review outcome deliberately not required);
// step5 = OTP verified.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	var st Status
	st.TotalSteps = totalSteps
	st.CurrentState = "not_started"

	reg, err := s.repos.Registrations.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		st.Steps.Step1 = stepCompleted
		st.CurrentState = string(reg.CurrentState)
	case errors.Is(err, repo.ErrNotFound):
		st.Steps.Step1 = stepPending
	default:
		return Status{}, fmt.Errorf("load registration: %w", err)
	}

	profile, err := s.repos.Profiles.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		st.Steps.Step2 = completedIf(len(profile.InterestIDs) > 0)
		st.Steps.Step3 = completedIf(hasProfileDetails(profile))
	case errors.Is(err, repo.ErrNotFound):
		st.Steps.Step2 = stepPending
		st.Steps.Step3 = stepPending
	default:
		return Status{}, fmt.Errorf("load profile: %w", err)
	}

	_, err = s.repos.Verifications.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		st.Steps.Step4 = stepCompleted
	case errors.Is(err, repo.ErrNotFound):
		st.Steps.Step4 = stepPending
	default:
		return Status{}, fmt.Errorf("load verification: %w", err)
	}

	pv, err := s.repos.Phones.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		st.Steps.Step5 = completedIf(pv.Status == model.VerificationVerified)
	case errors.Is(err, repo.ErrNotFound):
		st.Steps.Step5 = stepPending
	default:
		return Status{}, fmt.Errorf("load phone verification: %w", err)
	}

	for _, step := range []string{st.Steps.Step1, st.Steps.Step2, st.Steps.Step3, st.Steps.Step4, st.Steps.Step5} {
		if step == stepCompleted {
			st.CompletedSteps++
		}
	}
	st.Progress = int(math.Round(100 * float64(st.CompletedSteps) / totalSteps))
	st.IsComplete = st.CompletedSteps == totalSteps
	return st, nil
}

const (
	stepCompleted = "completed"
	stepPending   = "pending"
)

func completedIf(done bool) string {
	if done {
		return stepCompleted
	}
	return stepPending
}

func hasProfileDetails(p model.Profile) bool {
	if p.BriefIntro != nil && *p.BriefIntro != "" {
		return true
	}
	if p.JobSectorID != nil {
		return true
	}
	if p.JobTitle != nil && *p.JobTitle != "" {
		return true
	}
	return p.TwitterLink != "" || p.InstagramLink != ""
}
