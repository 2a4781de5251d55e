package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/intake"
	"github.com/spec-kit/travel-approval-service/internal/repository"
	apperrors "github.com/spec-kit/travel-approval-service/pkg/util/errorutil"
)

// IdentityCandidate is requester data as submitted. Keys are normalized by
// the resolver.
type IdentityCandidate struct {
	Email           string
	NationalID      string
	FirstName       string
	LastName        string
	FullName        string
	Phone           string
	Department      string
	JobTitle        string
	PassportNumber  string
	PassportCountry string
}

func (c IdentityCandidate) fullName() string {
	if name := strings.TrimSpace(c.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// ResolveOutcome tags how a profile was resolved.
type ResolveOutcome string

const (
	ResolveCreated ResolveOutcome = "created"
	ResolveUpdated ResolveOutcome = "updated"
)

// IdentityConflict reports a key that was supplied but already belongs to a
// different profile. The key is left untouched; profiles are never merged.
type IdentityConflict struct {
	Key             string `json:"key"`
	Value           string `json:"value"`
	HolderProfileID string `json:"holder_profile_id"`
	MatchedBy       string `json:"matched_by"`
}

// Detail renders the conflict for audit entries.
func (c *IdentityConflict) Detail() map[string]any {
	return map[string]any{
		"key":               c.Key,
		"value":             c.Value,
		"holder_profile_id": c.HolderProfileID,
		"matched_by":        c.MatchedBy,
	}
}

// Resolution is the tagged result of Resolve. Prior is set on the update path.
type Resolution struct {
	Profile  *domain.Profile
	Outcome  ResolveOutcome
	Prior    *domain.Profile
	Conflict *IdentityConflict
}

// IsNew reports whether the profile was created.
func (r Resolution) IsNew() bool {
	return r.Outcome == ResolveCreated
}

// IdentityService resolves requesters to a single deduplicated Profile.
type IdentityService struct {
	profiles repository.ProfileRepository
	retries  int
	logger   *zap.Logger
}

// IdentityDependencies bundles collaborators.
type IdentityDependencies struct {
	ProfileRepo repository.ProfileRepository
	Retries     int
	Logger      *zap.Logger
}

// NewIdentityService creates the service.
func NewIdentityService(deps IdentityDependencies) *IdentityService {
	if deps.Retries <= 0 {
		deps.Retries = 3
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &IdentityService{profiles: deps.ProfileRepo, retries: deps.Retries, logger: deps.Logger}
}

// Resolve finds the profile by national ID, then by email, and creates one
// when neither matches. Losing a unique-key race against a concurrent
// creator is retried, so both callers end up on the same profile.
func (s *IdentityService) Resolve(ctx context.Context, cand IdentityCandidate) (*Resolution, error) {
	email := intake.NormalizeEmail(cand.Email)
	nationalID := intake.NormalizeNationalID(cand.NationalID)
	if email == "" && nationalID == "" {
		return nil, apperrors.NewIdentityError("an email or a national ID is required to identify the requester")
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		res, err := s.resolveOnce(ctx, cand, email, nationalID)
		if err == nil {
			if res.Conflict != nil {
				s.logger.Warn("identity conflict",
					zap.String("profile_id", res.Profile.ID),
					zap.String("key", res.Conflict.Key),
					zap.String("holder_profile_id", res.Conflict.HolderProfileID))
			}
			return res, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.MapError(err)
		}
		lastErr = err
		s.logger.Debug("identity insert race; retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, apperrors.NewConflict("could not resolve requester identity", map[string]any{"reason": lastErr.Error()})
}

func (s *IdentityService) resolveOnce(ctx context.Context, cand IdentityCandidate, email, nationalID string) (*Resolution, error) {
	if nationalID != "" {
		profile, err := s.profiles.GetByNationalID(ctx, nationalID)
		switch {
		case err == nil:
			return s.update(ctx, profile, cand, "national_id", email, "")
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}
	if email != "" {
		profile, err := s.profiles.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return s.update(ctx, profile, cand, "email", "", nationalID)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, err
		}
	}

	profile := &domain.Profile{
		PrimaryEmail:    optionalString(email),
		NationalID:      optionalString(nationalID),
		FullName:        optionalString(cand.fullName()),
		Phone:           optionalString(cand.Phone),
		Department:      optionalString(cand.Department),
		JobTitle:        optionalString(cand.JobTitle),
		PassportNumber:  optionalString(strings.ToUpper(cand.PassportNumber)),
		PassportCountry: optionalString(cand.PassportCountry),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}
	return &Resolution{Profile: profile, Outcome: ResolveCreated}, nil
}

// update applies supplied mutable fields. newEmail / newNationalID are the
// keys that were not used for matching; each is adopted only when no other
// profile holds it.
func (s *IdentityService) update(ctx context.Context, profile *domain.Profile, cand IdentityCandidate, matchedBy, newEmail, newNationalID string) (*Resolution, error) {
	prior := profile.Clone()
	res := &Resolution{Outcome: ResolveUpdated, Prior: prior}

	if newEmail != "" && derefString(profile.PrimaryEmail) != newEmail {
		holder, err := s.profiles.GetByEmail(ctx, newEmail)
		switch {
		case err == nil && holder.ID != profile.ID:
			res.Conflict = &IdentityConflict{Key: "email", Value: newEmail, HolderProfileID: holder.ID, MatchedBy: matchedBy}
		case errors.Is(err, repository.ErrNotFound):
			profile.PrimaryEmail = strPtr(newEmail)
		case err != nil:
			return nil, err
		}
	}
	if newNationalID != "" && derefString(profile.NationalID) != newNationalID {
		holder, err := s.profiles.GetByNationalID(ctx, newNationalID)
		switch {
		case err == nil && holder.ID != profile.ID:
			res.Conflict = &IdentityConflict{Key: "national_id", Value: newNationalID, HolderProfileID: holder.ID, MatchedBy: matchedBy}
		case errors.Is(err, repository.ErrNotFound):
			profile.NationalID = strPtr(newNationalID)
		case err != nil:
			return nil, err
		}
	}

	overwrite(&profile.FullName, cand.fullName())
	overwrite(&profile.Phone, cand.Phone)
	overwrite(&profile.Department, cand.Department)
	overwrite(&profile.JobTitle, cand.JobTitle)
	overwrite(&profile.PassportNumber, strings.ToUpper(cand.PassportNumber))
	overwrite(&profile.PassportCountry, cand.PassportCountry)

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}
	res.Profile = profile
	return res, nil
}

func overwrite(field **string, value string) {
	if v := optionalString(value); v != nil {
		*field = v
	}
}
