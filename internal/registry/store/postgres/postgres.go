// Package postgres persists the registry state in PostgreSQL. The database
// transaction is the atomic unit for one mutating call; an advisory lock keeps
// the single-writer discipline across processes, and a singleton height row is
// bumped inside every transaction so aborted calls never consume a height.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"kinregistry/internal/registry"
	"kinregistry/pkg/domain"
	"kinregistry/pkg/platform/sentinel"
)

// registryLockKey is the advisory-lock namespace for mutating calls.
const registryLockKey = 0x6b696e72 // "kinr"

type Store struct {
	db *sql.DB
}

// New wraps an open database handle. Callers run EnsureSchema before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the registry tables and seeds the singleton admin and
// height rows. Seeding is idempotent; an existing admin row is left untouched.
func (s *Store) EnsureSchema(ctx context.Context, admin domain.Identity) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			identity      TEXT PRIMARY KEY,
			registered_at BIGINT NOT NULL,
			metadata      TEXT NOT NULL,
			verified      BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS relations (
			identity TEXT PRIMARY KEY,
			parents  TEXT[] NOT NULL DEFAULT '{}',
			children TEXT[] NOT NULL DEFAULT '{}',
			siblings TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS attestations (
			identity    TEXT NOT NULL,
			relative    TEXT NOT NULL,
			kind        TEXT NOT NULL,
			attested_by TEXT NOT NULL,
			attested_at BIGINT NOT NULL,
			PRIMARY KEY (identity, relative, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			identity  TEXT NOT NULL,
			seq       BIGINT NOT NULL,
			action    TEXT NOT NULL,
			height    BIGINT NOT NULL,
			performer TEXT NOT NULL,
			PRIMARY KEY (identity, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS admin_state (
			id     SMALLINT PRIMARY KEY CHECK (id = 1),
			admin  TEXT NOT NULL,
			paused BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS registry_height (
			id     SMALLINT PRIMARY KEY CHECK (id = 1),
			height BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create registry schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_state (id, admin, paused) VALUES (1, $1, FALSE) ON CONFLICT (id) DO NOTHING`,
		admin.String(),
	); err != nil {
		return fmt.Errorf("seed admin state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_height (id, height) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	); err != nil {
		return fmt.Errorf("seed registry height: %w", err)
	}
	return nil
}

// RunInTx runs one mutating call inside a database transaction. The advisory
// lock serializes writers; the height bump rides the transaction, so a failed
// call rolls it back along with everything else.
func (s *Store) RunInTx(ctx context.Context, fn func(st registry.State) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin registry tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registryLockKey); err != nil {
		return fmt.Errorf("acquire registry lock: %w", err)
	}

	var height uint64
	if err := tx.QueryRowContext(ctx,
		`UPDATE registry_height SET height = height + 1 WHERE id = 1 RETURNING height`,
	).Scan(&height); err != nil {
		return fmt.Errorf("advance registry height: %w", err)
	}

	if err := fn(&txState{ctx: ctx, tx: tx, height: height}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry tx: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Committed reads
// -----------------------------------------------------------------------------

func (s *Store) Height(ctx context.Context) (uint64, error) {
	var height uint64
	err := s.db.QueryRowContext(ctx, `SELECT height FROM registry_height WHERE id = 1`).Scan(&height)
	if err != nil {
		return 0, fmt.Errorf("query registry height: %w", err)
	}
	return height, nil
}

func (s *Store) Admin(ctx context.Context) (domain.Identity, error) {
	var admin string
	err := s.db.QueryRowContext(ctx, `SELECT admin FROM admin_state WHERE id = 1`).Scan(&admin)
	if err != nil {
		return "", fmt.Errorf("query admin identity: %w", err)
	}
	return domain.Identity(admin), nil
}

func (s *Store) Paused(ctx context.Context) (bool, error) {
	var paused bool
	err := s.db.QueryRowContext(ctx, `SELECT paused FROM admin_state WHERE id = 1`).Scan(&paused)
	if err != nil {
		return false, fmt.Errorf("query pause flag: %w", err)
	}
	return paused, nil
}

func (s *Store) Profile(ctx context.Context, id domain.Identity) (registry.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`SELECT registered_at, metadata, verified FROM profiles WHERE identity = $1`, id.String()))
}

func (s *Store) Relations(ctx context.Context, id domain.Identity) (registry.Relations, error) {
	return scanRelations(s.db.QueryRowContext(ctx,
		`SELECT parents, children, siblings FROM relations WHERE identity = $1`, id.String()))
}

func (s *Store) Attestation(ctx context.Context, key registry.AttestationKey) (registry.Attestation, error) {
	return scanAttestation(s.db.QueryRowContext(ctx,
		`SELECT attested_by, attested_at FROM attestations WHERE identity = $1 AND relative = $2 AND kind = $3`,
		key.Identity.String(), key.Relative.String(), key.Kind.String()))
}

func (s *Store) AuditCount(ctx context.Context, id domain.Identity) (uint64, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM audit_entries WHERE identity = $1`, id.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query audit counter: %w", err)
	}
	return count, nil
}

func (s *Store) AuditEntry(ctx context.Context, id domain.Identity, seq uint64) (registry.AuditEntry, error) {
	return scanAuditEntry(s.db.QueryRowContext(ctx,
		`SELECT action, height, performer FROM audit_entries WHERE identity = $1 AND seq = $2`,
		id.String(), seq))
}

// -----------------------------------------------------------------------------
// Transactional state
// -----------------------------------------------------------------------------

type txState struct {
	ctx    context.Context
	tx     *sql.Tx
	height uint64
}

func (t *txState) Height() uint64 { return t.height }

func (t *txState) Admin() (domain.Identity, error) {
	var admin string
	err := t.tx.QueryRowContext(t.ctx, `SELECT admin FROM admin_state WHERE id = 1`).Scan(&admin)
	if err != nil {
		return "", fmt.Errorf("query admin identity: %w", err)
	}
	return domain.Identity(admin), nil
}

func (t *txState) SetAdmin(admin domain.Identity) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE admin_state SET admin = $1 WHERE id = 1`, admin.String())
	if err != nil {
		return fmt.Errorf("store admin identity: %w", err)
	}
	return nil
}

func (t *txState) Paused() (bool, error) {
	var paused bool
	err := t.tx.QueryRowContext(t.ctx, `SELECT paused FROM admin_state WHERE id = 1`).Scan(&paused)
	if err != nil {
		return false, fmt.Errorf("query pause flag: %w", err)
	}
	return paused, nil
}

func (t *txState) SetPaused(paused bool) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE admin_state SET paused = $1 WHERE id = 1`, paused)
	if err != nil {
		return fmt.Errorf("store pause flag: %w", err)
	}
	return nil
}

func (t *txState) Profile(id domain.Identity) (registry.Profile, error) {
	return scanProfile(t.tx.QueryRowContext(t.ctx,
		`SELECT registered_at, metadata, verified FROM profiles WHERE identity = $1`, id.String()))
}

func (t *txState) PutProfile(id domain.Identity, profile registry.Profile) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO profiles (identity, registered_at, metadata, verified)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity) DO UPDATE SET metadata = EXCLUDED.metadata, verified = EXCLUDED.verified`,
		id.String(), profile.RegisteredAt, profile.Metadata, profile.Verified)
	if err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

func (t *txState) Relations(id domain.Identity) (registry.Relations, error) {
	return scanRelations(t.tx.QueryRowContext(t.ctx,
		`SELECT parents, children, siblings FROM relations WHERE identity = $1`, id.String()))
}

func (t *txState) PutRelations(id domain.Identity, relations registry.Relations) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO relations (identity, parents, children, siblings)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity) DO UPDATE SET
			parents = EXCLUDED.parents, children = EXCLUDED.children, siblings = EXCLUDED.siblings`,
		id.String(),
		pq.Array(identityStrings(relations.Parents)),
		pq.Array(identityStrings(relations.Children)),
		pq.Array(identityStrings(relations.Siblings)))
	if err != nil {
		return fmt.Errorf("store relations: %w", err)
	}
	return nil
}

func (t *txState) Attestation(key registry.AttestationKey) (registry.Attestation, error) {
	return scanAttestation(t.tx.QueryRowContext(t.ctx,
		`SELECT attested_by, attested_at FROM attestations WHERE identity = $1 AND relative = $2 AND kind = $3`,
		key.Identity.String(), key.Relative.String(), key.Kind.String()))
}

func (t *txState) PutAttestation(key registry.AttestationKey, attestation registry.Attestation) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO attestations (identity, relative, kind, attested_by, attested_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (identity, relative, kind) DO UPDATE SET
			attested_by = EXCLUDED.attested_by, attested_at = EXCLUDED.attested_at`,
		key.Identity.String(), key.Relative.String(), key.Kind.String(),
		attestation.AttestedBy.String(), attestation.AttestedAt)
	if err != nil {
		return fmt.Errorf("store attestation: %w", err)
	}
	return nil
}

func (t *txState) AppendAudit(id domain.Identity, entry registry.AuditEntry) (uint64, error) {
	var seq uint64
	err := t.tx.QueryRowContext(t.ctx,
		`INSERT INTO audit_entries (identity, seq, action, height, performer)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4 FROM audit_entries WHERE identity = $1
		 RETURNING seq`,
		id.String(), entry.Action, entry.Timestamp, entry.Performer.String()).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("append audit entry: %w", err)
	}
	return seq, nil
}

func (t *txState) AuditCount(id domain.Identity) (uint64, error) {
	var count uint64
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM audit_entries WHERE identity = $1`, id.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query audit counter: %w", err)
	}
	return count, nil
}

func (t *txState) AuditEntry(id domain.Identity, seq uint64) (registry.AuditEntry, error) {
	return scanAuditEntry(t.tx.QueryRowContext(t.ctx,
		`SELECT action, height, performer FROM audit_entries WHERE identity = $1 AND seq = $2`,
		id.String(), seq))
}

// -----------------------------------------------------------------------------
// Row scanning
// -----------------------------------------------------------------------------

func scanProfile(row *sql.Row) (registry.Profile, error) {
	var profile registry.Profile
	err := row.Scan(&profile.RegisteredAt, &profile.Metadata, &profile.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Profile{}, sentinel.ErrNotFound
	} else if err != nil {
		return registry.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	return profile, nil
}

func scanRelations(row *sql.Row) (registry.Relations, error) {
	var parents, children, siblings []string
	err := row.Scan(pq.Array(&parents), pq.Array(&children), pq.Array(&siblings))
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Relations{}, sentinel.ErrNotFound
	} else if err != nil {
		return registry.Relations{}, fmt.Errorf("scan relations: %w", err)
	}
	return registry.Relations{
		Parents:  identities(parents),
		Children: identities(children),
		Siblings: identities(siblings),
	}, nil
}

func scanAttestation(row *sql.Row) (registry.Attestation, error) {
	var attestedBy string
	var attestation registry.Attestation
	err := row.Scan(&attestedBy, &attestation.AttestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Attestation{}, sentinel.ErrNotFound
	} else if err != nil {
		return registry.Attestation{}, fmt.Errorf("scan attestation: %w", err)
	}
	attestation.AttestedBy = domain.Identity(attestedBy)
	return attestation, nil
}

func scanAuditEntry(row *sql.Row) (registry.AuditEntry, error) {
	var performer string
	var entry registry.AuditEntry
	err := row.Scan(&entry.Action, &entry.Timestamp, &performer)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.AuditEntry{}, sentinel.ErrNotFound
	} else if err != nil {
		return registry.AuditEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	entry.Performer = domain.Identity(performer)
	return entry, nil
}

func identityStrings(ids []domain.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func identities(values []string) []domain.Identity {
	if len(values) == 0 {
		return nil
	}
	out := make([]domain.Identity, len(values))
	for i, v := range values {
		out[i] = domain.Identity(v)
	}
	return out
}
