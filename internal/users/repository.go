package users

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("users: not found")

type Repository interface {
	Get(ctx context.Context, uid string) (Profile, error)
	List(ctx context.Context) ([]Profile, error)
}

// MemoryRepo is a simple in-memory repository useful for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]Profile
}

func NewMemoryRepo(profiles ...Profile) *MemoryRepo {
	r := &MemoryRepo{users: map[string]Profile{}}
	for _, p := range profiles {
		r.users[p.UID] = p
	}
	return r
}

func (r *MemoryRepo) Put(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[p.UID] = p
}

func (r *MemoryRepo) Get(ctx context.Context, uid string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.users[uid]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, 0, len(r.users))
	for _, p := range r.users {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const profileColumns = `uid, name, email, phone, timezone, schedule_time, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.UID, &p.Name, &p.Email, &p.Phone, &p.Timezone, &p.ScheduleTime, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) Get(ctx context.Context, uid string) (Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE uid = $1`, uid))
}

func (r *PostgresRepo) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM users ORDER BY uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
