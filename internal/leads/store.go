package leads

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/leadintake/pkg/models"
)

// Store persists completed leads. Rows are append-only.
type Store interface {
	Insert(ctx context.Context, lead *models.Lead) (int64, error)
	ListByContractor(ctx context.Context, contractorID int64) ([]*models.Lead, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Insert writes one row and fills in lead.ID and lead.CreatedAt
func (s *PostgresStore) Insert(ctx context.Context, lead *models.Lead) (int64, error) {
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO leads (project_type, budget, timeline, name, email, phone, zip, score, summary, contractor_id, transcript)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at
    `,
		lead.ProjectType, string(lead.Budget), string(lead.Timeline), lead.Name, lead.Email,
		nullString(lead.Phone), nullString(lead.Zip), lead.Score, lead.Summary, lead.ContractorID, nullString(lead.Transcript),
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return 0, err
	}
	return lead.ID, nil
}

// ListByContractor returns the contractor's leads, newest first
func (s *PostgresStore) ListByContractor(ctx context.Context, contractorID int64) ([]*models.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, project_type, budget, timeline, name, email, phone, zip, score, coalesce(summary,''), contractor_id, transcript, created_at
        FROM leads WHERE contractor_id=$1 ORDER BY created_at DESC, id DESC
    `, contractorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Always return a non-nil slice so JSON encodes as [] instead of null
	out := make([]*models.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLead(scanner interface{ Scan(dest ...any) error }) (*models.Lead, error) {
	var l models.Lead
	var budget, timeline string
	var phone, zip, transcript sql.NullString
	var contractorID sql.NullInt64
	if err := scanner.Scan(&l.ID, &l.ProjectType, &budget, &timeline, &l.Name, &l.Email, &phone, &zip, &l.Score, &l.Summary, &contractorID, &transcript, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Budget = models.Budget(budget)
	l.Timeline = models.Timeline(timeline)
	l.Phone = stringPtr(phone)
	l.Zip = stringPtr(zip)
	l.Transcript = stringPtr(transcript)
	l.ContractorID = contractorID.Int64
	return &l, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// InMemoryStore is a threadsafe in-memory store for tests and local runs
type InMemoryStore struct {
	mu     sync.RWMutex
	leads  []*models.Lead
	nextID int64
	now    func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{now: time.Now}
}

func (s *InMemoryStore) Insert(ctx context.Context, lead *models.Lead) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	lead.ID = s.nextID
	lead.CreatedAt = s.now()
	stored := *lead
	s.leads = append(s.leads, &stored)
	return lead.ID, nil
}

func (s *InMemoryStore) ListByContractor(ctx context.Context, contractorID int64) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Lead, 0)
	for _, l := range s.leads {
		if l.ContractorID == contractorID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
