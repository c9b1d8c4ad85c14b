package session

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"inforojo/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNoSession         = errors.New("no active session")
	ErrIncompleteSession = errors.New("token and id_usuario are required")
)

const prefCapas = "capas"

// Store persists the login session and user preferences in a local SQLite
// file. The current session is mirrored in memory so Token is cheap.
type Store struct {
	conn    *sql.DB
	writeMu sync.Mutex

	mu      sync.RWMutex
	token   string
	usuario *domain.Usuario
}

func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping session db: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.restore(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) restore(ctx context.Context) error {
	row := s.conn.QueryRowContext(ctx,
		`SELECT token, id_usuario, nombre, rol, id_corredor FROM session WHERE id = 1`)

	var token string
	var u domain.Usuario
	var rol string
	if err := row.Scan(&token, &u.ID, &u.Nombre, &rol, &u.IDCorredor); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoSession
		}
		return fmt.Errorf("restore session: %w", err)
	}
	u.Rol = domain.Rol(rol)

	s.mu.Lock()
	s.token = token
	s.usuario = &u
	s.mu.Unlock()
	return nil
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, token string, u domain.Usuario) error {
	if token == "" || u.ID == "" {
		return fmt.Errorf("save session: %w", ErrIncompleteSession)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
INSERT INTO session (id, token, id_usuario, nombre, rol, id_corredor, created_at)
VALUES (1, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  token = excluded.token,
  id_usuario = excluded.id_usuario,
  nombre = excluded.nombre,
  rol = excluded.rol,
  id_corredor = excluded.id_corredor,
  created_at = excluded.created_at`,
		token, u.ID, u.Nombre, string(u.Rol), u.IDCorredor, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	cp := u
	s.usuario = &cp
	s.mu.Unlock()
	return nil
}

// Clear logs out and forgets which notifications were seen.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_notifications`); err != nil {
		return fmt.Errorf("clear seen notifications: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.mu.Lock()
	s.token = ""
	s.usuario = nil
	s.mu.Unlock()
	return nil
}

// Token implements transitapi.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Usuario() (domain.Usuario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.usuario == nil {
		return domain.Usuario{}, ErrNoSession
	}
	return *s.usuario, nil
}

func (s *Store) SaveCapas(ctx context.Context, capas []domain.Capa) error {
	names := make([]string, len(capas))
	for i, c := range capas {
		names[i] = string(c)
	}
	return s.setPreference(ctx, prefCapas, strings.Join(names, ","))
}

// LoadCapas returns the stored layer list; ok is false when none was saved.
func (s *Store) LoadCapas(ctx context.Context) (capas []domain.Capa, ok bool, err error) {
	v, ok, err := s.preference(ctx, prefCapas)
	if err != nil || !ok {
		return nil, ok, err
	}
	capas = []domain.Capa{}
	for _, part := range strings.Split(v, ",") {
		if part != "" {
			capas = append(capas, domain.Capa(part))
		}
	}
	return capas, true, nil
}

func (s *Store) setPreference(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) preference(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, true, nil
}

// FilterUnseen drops notification ids already marked seen.
func (s *Store) FilterUnseen(ctx context.Context, ns []domain.Notificacion) ([]domain.Notificacion, error) {
	result := make([]domain.Notificacion, 0, len(ns))
	for _, n := range ns {
		var one int
		err := s.conn.QueryRowContext(ctx,
			`SELECT 1 FROM seen_notifications WHERE id_notificacion = ?`, n.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			result = append(result, n)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check seen notification: %w", err)
		}
	}
	return result, nil
}

func (s *Store) MarkSeen(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO seen_notifications (id_notificacion, seen_at) VALUES (?, ?)`, id, now); err != nil {
			return fmt.Errorf("mark seen %s: %w", id, err)
		}
	}
	return tx.Commit()
}
