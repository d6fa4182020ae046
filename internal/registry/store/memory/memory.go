// Package memory keeps the registry state in process. It reproduces the
// hosting ledger's call semantics: one mutating call at a time, all-or-nothing
// commit. Mutations run against a copy-on-write draft that merges into the
// base maps only when the callback succeeds.
package memory

import (
	"context"
	"sync"

	"kinregistry/internal/registry"
	"kinregistry/pkg/domain"
	"kinregistry/pkg/platform/sentinel"
)

// Store holds the whole keyed-map universe behind one lock. The write lock is
// the single-writer discipline; readers observe committed state only.
type Store struct {
	mu           sync.RWMutex
	height       uint64
	admin        domain.Identity
	paused       bool
	profiles     map[domain.Identity]registry.Profile
	relations    map[domain.Identity]registry.Relations
	attestations map[registry.AttestationKey]registry.Attestation
	audits       map[domain.Identity][]registry.AuditEntry
}

// New constructs an empty store with the genesis admin identity.
func New(admin domain.Identity) *Store {
	return &Store{
		admin:        admin,
		profiles:     make(map[domain.Identity]registry.Profile),
		relations:    make(map[domain.Identity]registry.Relations),
		attestations: make(map[registry.AttestationKey]registry.Attestation),
		audits:       make(map[domain.Identity][]registry.AuditEntry),
	}
}

// RunInTx executes one mutating call. The callback writes into a draft; a nil
// return merges the draft into the base and advances the height by one, any
// error discards the draft entirely.
func (s *Store) RunInTx(ctx context.Context, fn func(st registry.State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &draft{
		base:         s,
		height:       s.height + 1,
		profiles:     make(map[domain.Identity]registry.Profile),
		relations:    make(map[domain.Identity]registry.Relations),
		attestations: make(map[registry.AttestationKey]registry.Attestation),
		audits:       make(map[domain.Identity][]registry.AuditEntry),
	}
	if err := fn(d); err != nil {
		return err
	}
	d.commit()
	return nil
}

// -----------------------------------------------------------------------------
// Committed reads
// -----------------------------------------------------------------------------

func (s *Store) Height(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

func (s *Store) Admin(_ context.Context) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, nil
}

func (s *Store) Paused(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused, nil
}

func (s *Store) Profile(_ context.Context, id domain.Identity) (registry.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return registry.Profile{}, sentinel.ErrNotFound
	}
	return profile, nil
}

func (s *Store) Relations(_ context.Context, id domain.Identity) (registry.Relations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	relations, ok := s.relations[id]
	if !ok {
		return registry.Relations{}, sentinel.ErrNotFound
	}
	return relations.Clone(), nil
}

func (s *Store) Attestation(_ context.Context, key registry.AttestationKey) (registry.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attestation, ok := s.attestations[key]
	if !ok {
		return registry.Attestation{}, sentinel.ErrNotFound
	}
	return attestation, nil
}

func (s *Store) AuditCount(_ context.Context, id domain.Identity) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.audits[id])), nil
}

func (s *Store) AuditEntry(_ context.Context, id domain.Identity, seq uint64) (registry.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.audits[id]
	if seq < 1 || seq > uint64(len(trail)) {
		return registry.AuditEntry{}, sentinel.ErrNotFound
	}
	return trail[seq-1], nil
}

// -----------------------------------------------------------------------------
// Draft
// -----------------------------------------------------------------------------

// draft overlays uncommitted writes on top of the base maps. Lookups consult
// the overlay first; commit merges the overlay in place. The caller already
// holds the base write lock for the draft's whole lifetime.
type draft struct {
	base         *Store
	height       uint64
	admin        *domain.Identity
	paused       *bool
	profiles     map[domain.Identity]registry.Profile
	relations    map[domain.Identity]registry.Relations
	attestations map[registry.AttestationKey]registry.Attestation
	audits       map[domain.Identity][]registry.AuditEntry
}

func (d *draft) Height() uint64 { return d.height }

func (d *draft) Admin() (domain.Identity, error) {
	if d.admin != nil {
		return *d.admin, nil
	}
	return d.base.admin, nil
}

func (d *draft) SetAdmin(admin domain.Identity) error {
	d.admin = &admin
	return nil
}

func (d *draft) Paused() (bool, error) {
	if d.paused != nil {
		return *d.paused, nil
	}
	return d.base.paused, nil
}

func (d *draft) SetPaused(paused bool) error {
	d.paused = &paused
	return nil
}

func (d *draft) Profile(id domain.Identity) (registry.Profile, error) {
	if profile, ok := d.profiles[id]; ok {
		return profile, nil
	}
	profile, ok := d.base.profiles[id]
	if !ok {
		return registry.Profile{}, sentinel.ErrNotFound
	}
	return profile, nil
}

func (d *draft) PutProfile(id domain.Identity, profile registry.Profile) error {
	d.profiles[id] = profile
	return nil
}

func (d *draft) Relations(id domain.Identity) (registry.Relations, error) {
	if relations, ok := d.relations[id]; ok {
		return relations.Clone(), nil
	}
	relations, ok := d.base.relations[id]
	if !ok {
		return registry.Relations{}, sentinel.ErrNotFound
	}
	return relations.Clone(), nil
}

func (d *draft) PutRelations(id domain.Identity, relations registry.Relations) error {
	d.relations[id] = relations.Clone()
	return nil
}

func (d *draft) Attestation(key registry.AttestationKey) (registry.Attestation, error) {
	if attestation, ok := d.attestations[key]; ok {
		return attestation, nil
	}
	attestation, ok := d.base.attestations[key]
	if !ok {
		return registry.Attestation{}, sentinel.ErrNotFound
	}
	return attestation, nil
}

func (d *draft) PutAttestation(key registry.AttestationKey, attestation registry.Attestation) error {
	d.attestations[key] = attestation
	return nil
}

func (d *draft) AppendAudit(id domain.Identity, entry registry.AuditEntry) (uint64, error) {
	d.audits[id] = append(d.audits[id], entry)
	return uint64(len(d.base.audits[id]) + len(d.audits[id])), nil
}

func (d *draft) AuditCount(id domain.Identity) (uint64, error) {
	return uint64(len(d.base.audits[id]) + len(d.audits[id])), nil
}

func (d *draft) AuditEntry(id domain.Identity, seq uint64) (registry.AuditEntry, error) {
	committed := uint64(len(d.base.audits[id]))
	total := committed + uint64(len(d.audits[id]))
	if seq < 1 || seq > total {
		return registry.AuditEntry{}, sentinel.ErrNotFound
	}
	if seq <= committed {
		return d.base.audits[id][seq-1], nil
	}
	return d.audits[id][seq-committed-1], nil
}

// commit merges the overlay into the base. Runs under the base write lock.
func (d *draft) commit() {
	base := d.base
	for id, profile := range d.profiles {
		base.profiles[id] = profile
	}
	for id, relations := range d.relations {
		base.relations[id] = relations
	}
	for key, attestation := range d.attestations {
		base.attestations[key] = attestation
	}
	for id, appended := range d.audits {
		base.audits[id] = append(base.audits[id], appended...)
	}
	if d.admin != nil {
		base.admin = *d.admin
	}
	if d.paused != nil {
		base.paused = *d.paused
	}
	base.height = d.height
}
