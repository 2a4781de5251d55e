package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every store the services depend on.
type Repositories struct {
	Profiles          ProfileRepository
	Cases             CaseRepository
	Tasks             TaskRepository
	Documents         DocumentRepository
	ProcessedMessages ProcessedMessageRepository
	Audit             AuditRepository
	Staff             StaffRepository
}

// NewPostgresRepositories wires the Postgres implementations onto one pool.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Profiles:          NewProfileRepository(pool),
		Cases:             NewCaseRepository(pool),
		Tasks:             NewTaskRepository(pool),
		Documents:         NewDocumentRepository(pool),
		ProcessedMessages: NewProcessedMessageRepository(pool),
		Audit:             NewAuditRepository(pool),
		Staff:             NewStaffRepository(pool),
	}
}
