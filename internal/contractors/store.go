package contractors

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/leadintake/pkg/models"
)

var (
	ErrNotFound       = errors.New("contractor not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

type Store interface {
	Create(ctx context.Context, name *string, email, passwordHash string) (*models.Contractor, error)
	GetByEmail(ctx context.Context, email string) (*models.Contractor, error)
	GetByID(ctx context.Context, id int64) (*models.Contractor, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Create(ctx context.Context, name *string, email, passwordHash string) (*models.Contractor, error) {
	c := &models.Contractor{Name: name, Email: email, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO contractors (name, email, password_hash)
        VALUES ($1,$2,$3)
        RETURNING id, created_at
    `, nullString(name), email, passwordHash).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.Contractor, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, email, password_hash, created_at
        FROM contractors WHERE email=$1
    `, email)
	return scanContractor(row)
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Contractor, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, email, password_hash, created_at
        FROM contractors WHERE id=$1
    `, id)
	return scanContractor(row)
}

func scanContractor(row *sql.Row) (*models.Contractor, error) {
	var c models.Contractor
	var name sql.NullString
	if err := row.Scan(&c.ID, &name, &c.Email, &c.PasswordHash, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if name.Valid {
		c.Name = &name.String
	}
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// InMemoryStore is a threadsafe in-memory store for tests and local runs
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[int64]*models.Contractor
	byEmail map[string]*models.Contractor
	nextID  int64
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[int64]*models.Contractor),
		byEmail: make(map[string]*models.Contractor),
		now:     time.Now,
	}
}

func (s *InMemoryStore) Create(ctx context.Context, name *string, email, passwordHash string) (*models.Contractor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, ErrDuplicateEmail
	}
	s.nextID++
	c := &models.Contractor{ID: s.nextID, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: s.now()}
	s.byID[c.ID] = c
	s.byEmail[email] = c
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) GetByEmail(ctx context.Context, email string) (*models.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) GetByID(ctx context.Context, id int64) (*models.Contractor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}
