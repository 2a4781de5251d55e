package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	repos repository.Repositories
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.repos = NewStore().Repositories()
}

func strPtr(v string) *string { return &v }

func (s *StoreSuite) createProfile(email, nationalID string) *domain.Profile {
	p := &domain.Profile{}
	if email != "" {
		p.PrimaryEmail = strPtr(email)
	}
	if nationalID != "" {
		p.NationalID = strPtr(nationalID)
	}
	s.Require().NoError(s.repos.Profiles.Create(s.ctx, p))
	return p
}

func (s *StoreSuite) createCase(profileID string) (*domain.Case, *domain.Task) {
	c := &domain.Case{ProfileID: profileID, Source: domain.CaseSourceManual, Status: domain.CaseStatusReceived, Currency: domain.DefaultCurrency}
	task := domain.NewStepTask("", domain.FirstStep())
	s.Require().NoError(s.repos.Cases.CreateWithTask(s.ctx, c, task))
	return c, task
}

func (s *StoreSuite) TestProfileUniqueness() {
	s.createProfile("ana@example.gov", "00112345678")

	s.Run("duplicate email rejected", func() {
		err := s.repos.Profiles.Create(s.ctx, &domain.Profile{PrimaryEmail: strPtr("ana@example.gov")})
		s.Require().ErrorIs(err, repository.ErrDuplicate)
		var dup *repository.DuplicateError
		s.Require().True(errors.As(err, &dup))
		s.Equal(repository.ConstraintProfileEmail, dup.Constraint)
	})

	s.Run("duplicate national id rejected", func() {
		err := s.repos.Profiles.Create(s.ctx, &domain.Profile{NationalID: strPtr("00112345678")})
		var dup *repository.DuplicateError
		s.Require().True(errors.As(err, &dup))
		s.Equal(repository.ConstraintProfileNationalID, dup.Constraint)
	})

	s.Run("update onto another profile's email rejected", func() {
		other := s.createProfile("luis@example.gov", "")
		other.PrimaryEmail = strPtr("ana@example.gov")
		s.ErrorIs(s.repos.Profiles.Update(s.ctx, other), repository.ErrDuplicate)
	})

	s.Run("lookups", func() {
		byEmail, err := s.repos.Profiles.GetByEmail(s.ctx, "ana@example.gov")
		s.Require().NoError(err)
		byID, err := s.repos.Profiles.GetByNationalID(s.ctx, "00112345678")
		s.Require().NoError(err)
		s.Equal(byEmail.ID, byID.ID)

		_, err = s.repos.Profiles.GetByEmail(s.ctx, "nobody@example.gov")
		s.ErrorIs(err, repository.ErrNotFound)
	})
}

func (s *StoreSuite) TestReturnedProfilesAreCopies() {
	p := s.createProfile("ana@example.gov", "")
	loaded, err := s.repos.Profiles.GetByID(s.ctx, p.ID)
	s.Require().NoError(err)
	*loaded.PrimaryEmail = "changed@example.gov"

	again, err := s.repos.Profiles.GetByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("ana@example.gov", *again.PrimaryEmail)
}

func (s *StoreSuite) TestCreateWithTaskRejectsDuplicateClientID() {
	p := s.createProfile("ana@example.gov", "")
	first := &domain.Case{ProfileID: p.ID, ClientGeneratedID: strPtr("tok-1"), Status: domain.CaseStatusReceived}
	s.Require().NoError(s.repos.Cases.CreateWithTask(s.ctx, first, domain.NewStepTask("", domain.FirstStep())))

	second := &domain.Case{ProfileID: p.ID, ClientGeneratedID: strPtr("tok-1"), Status: domain.CaseStatusReceived}
	err := s.repos.Cases.CreateWithTask(s.ctx, second, domain.NewStepTask("", domain.FirstStep()))
	s.Require().ErrorIs(err, repository.ErrDuplicate)

	found, err := s.repos.Cases.GetByClientGeneratedID(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)

	tasks, err := s.repos.Tasks.ListByCase(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Len(tasks, 1)
}

func (s *StoreSuite) TestResolveIsConditional() {
	p := s.createProfile("ana@example.gov", "")
	c, task := s.createCase(p.ID)

	next := domain.NewStepTask(c.ID, domain.StepTechReview)
	err := s.repos.Tasks.Resolve(s.ctx, repository.TaskResolution{
		TaskID: task.ID, CaseID: c.ID, Status: domain.TaskStatusCompleted,
		CompletedAt: time.Now(), CaseStatus: domain.CaseStatusTechReview, Next: next,
	})
	s.Require().NoError(err)
	s.NotEmpty(next.ID)

	err = s.repos.Tasks.Resolve(s.ctx, repository.TaskResolution{
		TaskID: task.ID, CaseID: c.ID, Status: domain.TaskStatusCompleted,
		CompletedAt: time.Now(), CaseStatus: domain.CaseStatusRejected,
	})
	s.ErrorIs(err, repository.ErrStaleState)

	loaded, err := s.repos.Cases.GetByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(domain.CaseStatusTechReview, loaded.Status)
}

func (s *StoreSuite) TestConcurrentResolveHasOneWinner() {
	p := s.createProfile("ana@example.gov", "")
	c, task := s.createCase(p.ID)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.repos.Tasks.Resolve(s.ctx, repository.TaskResolution{
				TaskID: task.ID, CaseID: c.ID, Status: domain.TaskStatusCompleted,
				CompletedAt: time.Now(), CaseStatus: domain.CaseStatusTechReview,
				Next: domain.NewStepTask(c.ID, domain.StepTechReview),
			})
		}()
	}
	wg.Wait()
	close(results)

	var ok, stale int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrStaleState):
			stale++
		}
	}
	s.Equal(1, ok)
	s.Equal(workers-1, stale)

	tasks, err := s.repos.Tasks.ListByCase(s.ctx, c.ID)
	s.Require().NoError(err)
	pending := 0
	for _, t := range tasks {
		if t.Status == domain.TaskStatusPending {
			pending++
		}
	}
	s.Equal(1, pending)
}

func (s *StoreSuite) TestListPendingMatchesUserOrRole() {
	p := s.createProfile("ana@example.gov", "")
	_, task := s.createCase(p.ID)

	analyst, err := s.repos.Tasks.ListPending(s.ctx, "someone", domain.StaffRoleAnalyst)
	s.Require().NoError(err)
	s.Len(analyst, 1)

	manager, err := s.repos.Tasks.ListPending(s.ctx, "mgr-1", domain.StaffRoleManager)
	s.Require().NoError(err)
	s.Empty(manager)

	_, err = s.repos.Tasks.Assign(s.ctx, task.ID, "mgr-1")
	s.Require().NoError(err)
	manager, err = s.repos.Tasks.ListPending(s.ctx, "mgr-1", domain.StaffRoleManager)
	s.Require().NoError(err)
	s.Len(manager, 1)
}

func (s *StoreSuite) TestProcessedMessageLedger() {
	msg := &domain.ProcessedMessage{InternetMessageID: "<a@b>", ProviderMessageID: "m1", Status: domain.ProcessedMessageInFlight}
	inserted, err := s.repos.ProcessedMessages.Insert(s.ctx, msg)
	s.Require().NoError(err)
	s.True(inserted)

	inserted, err = s.repos.ProcessedMessages.Insert(s.ctx, &domain.ProcessedMessage{InternetMessageID: "<a@b>", Status: domain.ProcessedMessageInFlight})
	s.Require().NoError(err)
	s.False(inserted)

	msg.Status = domain.ProcessedMessageOK
	s.Require().NoError(s.repos.ProcessedMessages.Finalize(s.ctx, msg))
	s.ErrorIs(s.repos.ProcessedMessages.Finalize(s.ctx, msg), repository.ErrStaleState)

	stored, err := s.repos.ProcessedMessages.GetByInternetMessageID(s.ctx, "<a@b>")
	s.Require().NoError(err)
	s.Equal(domain.ProcessedMessageOK, stored.Status)
}

func (s *StoreSuite) TestStaffEmailIsCaseInsensitive() {
	s.Require().NoError(s.repos.Staff.Create(s.ctx, &domain.StaffMember{Name: "Ana", Email: "Ana@Example.gov", Role: domain.StaffRoleAnalyst, Active: true}))
	err := s.repos.Staff.Create(s.ctx, &domain.StaffMember{Name: "Ana 2", Email: "ana@example.gov ", Role: domain.StaffRoleHR})
	s.ErrorIs(err, repository.ErrDuplicate)

	found, err := s.repos.Staff.GetByEmail(s.ctx, " ANA@example.gov")
	s.Require().NoError(err)
	s.Equal("Ana", found.Name)
}
