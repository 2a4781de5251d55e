// Package memory provides in-process implementations of the repository
// interfaces. A single mutex guards every table so the unique constraints and
// conditional writes behave like their Postgres counterparts.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/travel-approval-service/internal/domain"
	"github.com/spec-kit/travel-approval-service/internal/repository"
)

// Store holds all tables.
type Store struct {
	mu        sync.RWMutex
	now       func() time.Time
	profiles  map[string]*domain.Profile
	cases     map[string]*domain.Case
	tasks     map[string]*domain.Task
	documents []domain.Document
	messages  map[string]*domain.ProcessedMessage
	audit     []domain.AuditEntry
	staff     map[string]*domain.StaffMember
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:      time.Now,
		profiles: make(map[string]*domain.Profile),
		cases:    make(map[string]*domain.Case),
		tasks:    make(map[string]*domain.Task),
		messages: make(map[string]*domain.ProcessedMessage),
		staff:    make(map[string]*domain.StaffMember),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Profiles:          profileStore{s},
		Cases:             caseStore{s},
		Tasks:             taskStore{s},
		Documents:         documentStore{s},
		ProcessedMessages: messageStore{s},
		Audit:             auditStore{s},
		Staff:             staffStore{s},
	}
}

// Profiles

type profileStore struct{ *Store }

func (s profileStore) Create(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkProfileUnique(profile, ""); err != nil {
		return err
	}
	now := s.now()
	profile.ID = uuid.NewString()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s profileStore) Update(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[profile.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.checkProfileUnique(profile, profile.ID); err != nil {
		return err
	}
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = s.now()
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s profileStore) checkProfileUnique(profile *domain.Profile, selfID string) error {
	for id, other := range s.profiles {
		if id == selfID {
			continue
		}
		if equalPtr(profile.PrimaryEmail, other.PrimaryEmail) {
			return &repository.DuplicateError{Constraint: repository.ConstraintProfileEmail}
		}
		if equalPtr(profile.NationalID, other.NationalID) {
			return &repository.DuplicateError{Constraint: repository.ConstraintProfileNationalID}
		}
	}
	return nil
}

func (s profileStore) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[id]; ok {
		return p.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (s profileStore) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	return s.find(func(p *domain.Profile) bool { return p.PrimaryEmail != nil && *p.PrimaryEmail == email })
}

func (s profileStore) GetByNationalID(_ context.Context, nationalID string) (*domain.Profile, error) {
	return s.find(func(p *domain.Profile) bool { return p.NationalID != nil && *p.NationalID == nationalID })
}

func (s profileStore) find(match func(*domain.Profile) bool) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if match(p) {
			return p.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

// Cases

type caseStore struct{ *Store }

func (s caseStore) CreateWithTask(_ context.Context, c *domain.Case, first *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ClientGeneratedID != nil {
		for _, other := range s.cases {
			if equalPtr(c.ClientGeneratedID, other.ClientGeneratedID) {
				return &repository.DuplicateError{Constraint: repository.ConstraintCaseClientID}
			}
		}
	}
	if _, ok := s.profiles[c.ProfileID]; !ok {
		return repository.ErrNotFound
	}
	now := s.now()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c
	s.cases[c.ID] = &stored

	first.CaseID = c.ID
	s.insertTaskLocked(first)
	return nil
}

func (s caseStore) UpdateDetails(_ context.Context, c *domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cases[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *existing
	updated.DestinationCountry = c.DestinationCountry
	updated.DestinationCity = c.DestinationCity
	updated.DepartureDate = c.DepartureDate
	updated.ReturnDate = c.ReturnDate
	updated.Reason = c.Reason
	updated.EventName = c.EventName
	updated.OrganizingInstitution = c.OrganizingInstitution
	updated.EstimatedAmount = c.EstimatedAmount
	updated.Currency = c.Currency
	updated.CostCenter = c.CostCenter
	updated.Notes = c.Notes
	updated.RawContent = c.RawContent
	updated.UpdatedAt = s.now()
	s.cases[c.ID] = &updated
	c.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s caseStore) GetByID(_ context.Context, id string) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cases[id]; ok {
		out := *c
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (s caseStore) GetByClientGeneratedID(_ context.Context, key string) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cases {
		if c.ClientGeneratedID != nil && *c.ClientGeneratedID == key {
			out := *c
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s caseStore) ListWithFilter(_ context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Case
	for _, c := range s.cases {
		if filter.ProfileID != nil && c.ProfileID != *filter.ProfileID {
			continue
		}
		if len(filter.Sources) > 0 && !contains(filter.Sources, c.Source) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, c.Status) {
			continue
		}
		if filter.CreatedFrom != nil && c.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && c.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if filter.SearchTerm != nil && !caseMatches(c, *filter.SearchTerm) {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return page(result, filter.Limit, filter.Offset), nil
}

func caseMatches(c *domain.Case, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []*string{c.Reason, c.EventName, c.DestinationCountry} {
		if field != nil && strings.Contains(strings.ToLower(*field), term) {
			return true
		}
	}
	return false
}

// Tasks

type taskStore struct{ *Store }

func (s *Store) insertTaskLocked(task *domain.Task) {
	now := s.now()
	task.ID = uuid.NewString()
	task.CreatedAt = now
	task.UpdatedAt = now
	stored := *task
	s.tasks[task.ID] = &stored
}

func (s *Store) hasPendingLocked(caseID string) bool {
	for _, t := range s.tasks {
		if t.CaseID == caseID && t.Status == domain.TaskStatusPending {
			return true
		}
	}
	return false
}

func (s taskStore) GetByID(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tasks[id]; ok {
		out := *t
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (s taskStore) ListByCase(_ context.Context, caseID string) ([]domain.Task, error) {
	return s.collect(func(t *domain.Task) bool { return t.CaseID == caseID }, false), nil
}

func (s taskStore) ListPending(_ context.Context, staffID string, role domain.StaffRole) ([]domain.Task, error) {
	return s.collect(func(t *domain.Task) bool {
		if t.Status != domain.TaskStatusPending {
			return false
		}
		return (t.AssignedStaffID != nil && *t.AssignedStaffID == staffID) ||
			(t.AssignedRole != nil && *t.AssignedRole == role)
	}, true), nil
}

func (s taskStore) collect(match func(*domain.Task) bool, newestFirst bool) []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Task
	for _, t := range s.tasks {
		if match(t) {
			result = append(result, *t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if newestFirst {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s taskStore) Resolve(_ context.Context, res repository.TaskResolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[res.TaskID]
	if !ok || task.CaseID != res.CaseID || task.Status != domain.TaskStatusPending {
		return repository.ErrStaleState
	}
	c, ok := s.cases[res.CaseID]
	if !ok {
		return repository.ErrNotFound
	}

	resolved := *task
	resolved.Status = res.Status
	completedAt := res.CompletedAt
	resolved.CompletedAt = &completedAt
	resolved.UpdatedAt = s.now()
	s.tasks[task.ID] = &resolved

	updated := *c
	updated.Status = res.CaseStatus
	updated.UpdatedAt = s.now()
	s.cases[c.ID] = &updated

	if res.Next != nil {
		if s.hasPendingLocked(res.CaseID) {
			// roll back to keep the one-pending-task constraint
			s.tasks[task.ID] = task
			s.cases[c.ID] = c
			return &repository.DuplicateError{Constraint: repository.ConstraintTaskOnePending}
		}
		res.Next.CaseID = res.CaseID
		s.insertTaskLocked(res.Next)
	}
	return nil
}

func (s taskStore) Assign(_ context.Context, taskID, staffID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok || task.Status != domain.TaskStatusPending {
		return nil, repository.ErrStaleState
	}
	updated := *task
	assignee := staffID
	updated.AssignedStaffID = &assignee
	updated.UpdatedAt = s.now()
	s.tasks[taskID] = &updated
	out := updated
	return &out, nil
}

// Documents

type documentStore struct{ *Store }

func (s documentStore) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = uuid.NewString()
	doc.CreatedAt = s.now()
	s.documents = append(s.documents, *doc)
	return nil
}

func (s documentStore) ListByCase(_ context.Context, caseID string) ([]domain.Document, error) {
	return s.filter(func(d domain.Document) bool { return d.CaseID != nil && *d.CaseID == caseID }), nil
}

func (s documentStore) ListByProfile(_ context.Context, profileID string) ([]domain.Document, error) {
	return s.filter(func(d domain.Document) bool { return d.ProfileID != nil && *d.ProfileID == profileID }), nil
}

func (s documentStore) filter(match func(domain.Document) bool) []domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for _, d := range s.documents {
		if match(d) {
			result = append(result, d)
		}
	}
	return result
}

// Processed messages

type messageStore struct{ *Store }

func (s messageStore) Insert(_ context.Context, msg *domain.ProcessedMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[msg.InternetMessageID]; exists {
		return false, nil
	}
	now := s.now()
	msg.ID = uuid.NewString()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	stored := *msg
	s.messages[msg.InternetMessageID] = &stored
	return true, nil
}

func (s messageStore) GetByInternetMessageID(_ context.Context, internetMessageID string) (*domain.ProcessedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if msg, ok := s.messages[internetMessageID]; ok {
		out := *msg
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (s messageStore) Finalize(_ context.Context, msg *domain.ProcessedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, stored := range s.messages {
		if stored.ID != msg.ID {
			continue
		}
		if stored.Status != domain.ProcessedMessageInFlight {
			return repository.ErrStaleState
		}
		updated := *stored
		updated.Status = msg.Status
		updated.Error = msg.Error
		updated.CaseID = msg.CaseID
		updated.ProfileID = msg.ProfileID
		updated.UpdatedAt = s.now()
		s.messages[key] = &updated
		return nil
	}
	return repository.ErrStaleState
}

// Audit

type auditStore struct{ *Store }

func (s auditStore) Create(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s auditStore) ListByCase(_ context.Context, caseID string) ([]domain.AuditEntry, error) {
	return s.filter(func(e domain.AuditEntry) bool { return e.CaseID != nil && *e.CaseID == caseID }), nil
}

func (s auditStore) ListByProfile(_ context.Context, profileID string) ([]domain.AuditEntry, error) {
	return s.filter(func(e domain.AuditEntry) bool { return e.ProfileID != nil && *e.ProfileID == profileID }), nil
}

func (s auditStore) filter(match func(domain.AuditEntry) bool) []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.AuditEntry
	for _, e := range s.audit {
		if match(e) {
			result = append(result, e)
		}
	}
	return result
}

// Staff

type staffStore struct{ *Store }

func (s staffStore) Create(_ context.Context, staff *domain.StaffMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staff.Email = strings.ToLower(strings.TrimSpace(staff.Email))
	for _, other := range s.staff {
		if other.Email == staff.Email {
			return &repository.DuplicateError{Constraint: repository.ConstraintStaffEmail}
		}
	}
	now := s.now()
	staff.ID = uuid.NewString()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	stored := *staff
	s.staff[staff.ID] = &stored
	return nil
}

func (s staffStore) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.staff[id]; ok {
		out := *m
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (s staffStore) GetByEmail(_ context.Context, email string) (*domain.StaffMember, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.staff {
		if m.Email == email {
			out := *m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s staffStore) List(_ context.Context, filter repository.StaffFilter) ([]domain.StaffMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.StaffMember
	for _, m := range s.staff {
		if filter.Role != nil && m.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && m.Active != *filter.Active {
			continue
		}
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return page(result, filter.Limit, filter.Offset), nil
}

func equalPtr(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
