package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/extract"
	"github.com/browsint/browsint/internal/metrics"
	"github.com/browsint/browsint/internal/sources"
	"github.com/browsint/browsint/internal/store"
)

var (
	// ErrInvalidInput marks identifiers that fail validation before any
	// lookup is attempted.
	ErrInvalidInput = errors.New("invalid identifier")
	// ErrNotFound marks lookups for entities that do not exist.
	ErrNotFound = errors.New("entity not found")
)

// Entity kinds as stored in the entities table.
const (
	KindCompany = "company"
	KindPerson  = "person"
)

// Snapshot source names as stored in osint_profiles.
const (
	SourceDomain  = "domain"
	SourceEmail   = "email"
	SourceSocial  = "social"
	SourceWebsite = "website"
)

var emailShape = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Entity is a canonical profiled subject.
type Entity struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Domain    string `json:"domain,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Snapshot is one per-source OSINT result attached to an entity. When the
// stored payload cannot be decoded, Error carries the reason and Raw the
// stored bytes so the rest of the profile still renders.
type Snapshot struct {
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
	Extracted map[string]any `json:"extracted,omitempty"`
	Error     string         `json:"error,omitempty"`
	Raw       string         `json:"raw,omitempty"`
	UpdatedAt string         `json:"updated_at"`
}

// Contact is a persisted email or phone tied to an entity.
type Contact struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Profile is the full assembled view of an entity.
type Profile struct {
	Entity     Entity              `json:"entity"`
	Snapshots  map[string]Snapshot `json:"snapshots"`
	Contacts   []Contact           `json:"contacts"`
	DomainInfo map[string]any      `json:"domain_info,omitempty"`
}

// Summary is the list view of an entity.
type Summary struct {
	Entity  Entity   `json:"entity"`
	Sources []string `json:"sources"`
}

// Service ties entity resolution, source aggregation and persistence
// together.
type Service struct {
	store  *store.Store
	src    *sources.Client
	logger *zap.Logger
}

// NewService builds the profile service.
func NewService(st *store.Store, src *sources.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, src: src, logger: logger}
}

// ResolveOrCreate returns the entity id for (name, kind, domain), inserting
// the row when it does not exist yet. Insert and lookup run in one
// transaction so concurrent callers converge on the same id.
func (s *Service) ResolveOrCreate(ctx context.Context, name, kind, domain string) (int64, error) {
	var id int64
	err := s.store.WithTx(ctx, store.OSINT, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entities (kind, name, domain) VALUES (?, ?, ?)`,
			kind, name, domain)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			id, err = res.LastInsertId()
			return err
		}
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM entities WHERE name = ? AND kind = ? AND domain = ?`,
			name, kind, domain)
		return row.Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveSnapshot upserts one per-source snapshot for an entity. Payloads are
// normalized before storage and the flattened field summary is written next
// to the raw data. Domain snapshots additionally refresh domain_info.
func (s *Service) SaveSnapshot(ctx context.Context, entityID int64, source string, payload map[string]any) error {
	normalized, _ := NormalizeJSON(payload).(map[string]any)
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", source, err)
	}
	extracted := StructuredFields(source, normalized)
	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("encode %s extracted fields: %w", source, err)
	}

	return s.store.WithTx(ctx, store.OSINT, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO osint_profiles (entity_id, source, raw_data, extracted_fields)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(entity_id, source) DO UPDATE SET
				raw_data = excluded.raw_data,
				extracted_fields = excluded.extracted_fields,
				updated_at = CURRENT_TIMESTAMP`,
			entityID, source, string(raw), string(extractedJSON))
		if err != nil {
			return fmt.Errorf("upsert %s snapshot: %w", source, err)
		}
		if source == SourceDomain {
			return upsertDomainInfo(ctx, tx, entityID, extracted)
		}
		return nil
	})
}

func upsertDomainInfo(ctx context.Context, tx *sql.Tx, entityID int64, extracted map[string]any) error {
	nameServers := strings.Join(stringSliceOf(extracted["name_servers"]), ",")
	_, err := tx.ExecContext(ctx, `
		INSERT INTO domain_info (entity_id, registrar, creation_date, expiration_date, org, name_servers)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			registrar = excluded.registrar,
			creation_date = excluded.creation_date,
			expiration_date = excluded.expiration_date,
			org = excluded.org,
			name_servers = excluded.name_servers,
			updated_at = CURRENT_TIMESTAMP`,
		entityID,
		stringOf(extracted["registrar"]),
		stringOf(extracted["creation_date"]),
		stringOf(extracted["expiration_date"]),
		stringOf(extracted["org"]),
		nameServers)
	if err != nil {
		return fmt.Errorf("upsert domain info: %w", err)
	}
	return nil
}

// ExtractAndSaveContacts walks a payload tree for emails and phone numbers
// and persists the new ones, skipping values already stored for the entity.
// Returns the number of contacts inserted.
func (s *Service) ExtractAndSaveContacts(ctx context.Context, entityID int64, payload map[string]any, source string) (int, error) {
	emailSet := map[string]struct{}{}
	phoneSet := map[string]struct{}{}
	walkStrings("", payload, func(key, value string) {
		if keyLooksLikeEmail(key) {
			candidate := strings.ToLower(strings.TrimSpace(value))
			if emailShape.MatchString(candidate) {
				emailSet[candidate] = struct{}{}
			}
		}
		for _, email := range extract.Emails(value) {
			emailSet[email] = struct{}{}
		}
		for _, phone := range extract.FilterPhones(extract.Phones(value, "")) {
			phoneSet[phone] = struct{}{}
		}
	})
	return s.saveContacts(ctx, entityID, sortedSet(emailSet), sortedSet(phoneSet), source)
}

func (s *Service) saveContacts(ctx context.Context, entityID int64, emails, phones []string, source string) (int, error) {
	inserted := 0
	err := s.store.WithTx(ctx, store.OSINT, func(tx *sql.Tx) error {
		for _, email := range emails {
			ok, err := insertContact(ctx, tx, entityID, "email", email, source)
			if err != nil {
				return err
			}
			if ok {
				inserted++
				metrics.ObserveContactSaved("email")
			}
		}
		for _, phone := range phones {
			ok, err := insertContact(ctx, tx, entityID, "phone", phone, source)
			if err != nil {
				return err
			}
			if ok {
				inserted++
				metrics.ObserveContactSaved("phone")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func insertContact(ctx context.Context, tx *sql.Tx, entityID int64, column, value, source string) (bool, error) {
	var exists int
	query := fmt.Sprintf(`SELECT COUNT(1) FROM contacts WHERE entity_id = ? AND %s = ?`, column)
	if err := tx.QueryRowContext(ctx, query, entityID, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s contact: %w", column, err)
	}
	if exists > 0 {
		return false, nil
	}
	insert := fmt.Sprintf(`INSERT INTO contacts (entity_id, %s, source) VALUES (?, ?, ?)`, column)
	if _, err := tx.ExecContext(ctx, insert, entityID, value, source); err != nil {
		return false, fmt.Errorf("insert %s contact: %w", column, err)
	}
	return true, nil
}

// BuildFullProfile assembles the complete stored view of an entity. A
// snapshot whose raw payload fails to decode is reported inline instead of
// failing the whole profile.
func (s *Service) BuildFullProfile(ctx context.Context, entityID int64) (*Profile, error) {
	row, err := s.store.FetchOne(ctx, store.OSINT,
		`SELECT id, kind, name, domain, created_at FROM entities WHERE id = ?`, entityID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: entity %d", ErrNotFound, entityID)
	}
	entity := entityFromRow(row)
	prof := &Profile{Entity: entity, Snapshots: map[string]Snapshot{}}

	snapshotRows, err := s.store.FetchAll(ctx, store.OSINT,
		`SELECT source, raw_data, extracted_fields, updated_at FROM osint_profiles WHERE entity_id = ? ORDER BY source`,
		entityID)
	if err != nil {
		return nil, err
	}
	for _, r := range snapshotRows {
		source := stringOf(r["source"])
		snap := Snapshot{Source: source, UpdatedAt: stringOf(r["updated_at"])}
		raw := stringOf(r["raw_data"])
		if err := json.Unmarshal([]byte(raw), &snap.Data); err != nil {
			s.logger.Warn("stored snapshot is not valid JSON",
				zap.Int64("entity_id", entityID), zap.String("source", source), zap.Error(err))
			snap.Error = "failed to decode stored profile data"
			snap.Raw = raw
		} else if extracted := stringOf(r["extracted_fields"]); extracted != "" {
			_ = json.Unmarshal([]byte(extracted), &snap.Extracted)
		}
		prof.Snapshots[source] = snap
	}

	contactRows, err := s.store.FetchAll(ctx, store.OSINT,
		`SELECT email, phone, source FROM contacts WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, err
	}
	for _, r := range contactRows {
		c := Contact{Source: stringOf(r["source"])}
		if email := stringOf(r["email"]); email != "" {
			c.Type, c.Value = "email", email
		} else {
			c.Type, c.Value = "phone", stringOf(r["phone"])
		}
		prof.Contacts = append(prof.Contacts, c)
	}

	if entity.Kind == KindCompany {
		info, err := s.store.FetchOne(ctx, store.OSINT,
			`SELECT registrar, creation_date, expiration_date, org, name_servers, updated_at FROM domain_info WHERE entity_id = ?`,
			entityID)
		if err != nil {
			return nil, err
		}
		prof.DomainInfo = info
	}
	return prof, nil
}

// ProfileDomain runs the full domain pipeline: validate, resolve the
// entity, aggregate sources, persist the snapshot, sweep the website for
// contacts, and return the assembled profile.
func (s *Service) ProfileDomain(ctx context.Context, raw string) (*Profile, error) {
	domain, ok := extract.ValidateDomain(raw)
	if !ok {
		metrics.ObserveProfileOp(KindCompany, "invalid")
		return nil, fmt.Errorf("%w: %q is not a valid domain", ErrInvalidInput, raw)
	}

	entityID, err := s.ResolveOrCreate(ctx, domain, KindCompany, domain)
	if err != nil {
		metrics.ObserveProfileOp(KindCompany, "error")
		return nil, err
	}

	payload := s.src.DomainOSINT(ctx, domain)
	if err := s.SaveSnapshot(ctx, entityID, SourceDomain, payload); err != nil {
		metrics.ObserveProfileOp(KindCompany, "error")
		return nil, err
	}
	if _, err := s.ExtractAndSaveContacts(ctx, entityID, payload, SourceDomain); err != nil {
		metrics.ObserveProfileOp(KindCompany, "error")
		return nil, err
	}

	if contacts := s.src.WebsiteContacts(ctx, domain); !sources.IsErr(contacts) {
		emails := stringSliceOf(contacts["emails"])
		phones := stringSliceOf(contacts["phones"])
		if _, err := s.saveContacts(ctx, entityID, emails, phones, SourceWebsite); err != nil {
			metrics.ObserveProfileOp(KindCompany, "error")
			return nil, err
		}
	}

	metrics.ObserveProfileOp(KindCompany, "ok")
	return s.BuildFullProfile(ctx, entityID)
}

// ProfileEmail runs the email pipeline for a single address.
func (s *Service) ProfileEmail(ctx context.Context, raw string) (*Profile, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailShape.MatchString(email) {
		metrics.ObserveProfileOp(KindPerson, "invalid")
		return nil, fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, raw)
	}

	entityID, err := s.ResolveOrCreate(ctx, email, KindPerson, "")
	if err != nil {
		metrics.ObserveProfileOp(KindPerson, "error")
		return nil, err
	}

	payload := s.src.EmailOSINT(ctx, email)
	if err := s.SaveSnapshot(ctx, entityID, SourceEmail, payload); err != nil {
		metrics.ObserveProfileOp(KindPerson, "error")
		return nil, err
	}
	if _, err := s.ExtractAndSaveContacts(ctx, entityID, payload, SourceEmail); err != nil {
		metrics.ObserveProfileOp(KindPerson, "error")
		return nil, err
	}

	metrics.ObserveProfileOp(KindPerson, "ok")
	return s.BuildFullProfile(ctx, entityID)
}

// ProfileUsername runs the social presence pipeline for a handle.
func (s *Service) ProfileUsername(ctx context.Context, raw string) (*Profile, error) {
	username := strings.TrimSpace(raw)
	if username == "" || strings.ContainsAny(username, " @/") {
		metrics.ObserveProfileOp(KindPerson, "invalid")
		return nil, fmt.Errorf("%w: %q is not a valid username", ErrInvalidInput, raw)
	}

	entityID, err := s.ResolveOrCreate(ctx, username, KindPerson, "")
	if err != nil {
		metrics.ObserveProfileOp(KindPerson, "error")
		return nil, err
	}

	payload := s.src.SocialProfiles(ctx, username)
	if err := s.SaveSnapshot(ctx, entityID, SourceSocial, payload); err != nil {
		metrics.ObserveProfileOp(KindPerson, "error")
		return nil, err
	}

	metrics.ObserveProfileOp(KindPerson, "ok")
	return s.BuildFullProfile(ctx, entityID)
}

// Summaries lists every entity, newest first, with the distinct snapshot
// sources each one carries.
func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.store.Cached(ctx, store.OSINT,
		`SELECT id, kind, name, domain, created_at FROM entities ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		entity := entityFromRow(row)
		sourceRows, err := s.store.Cached(ctx, store.OSINT,
			`SELECT DISTINCT source FROM osint_profiles WHERE entity_id = ? ORDER BY source`, entity.ID)
		if err != nil {
			return nil, err
		}
		srcs := make([]string, 0, len(sourceRows))
		for _, r := range sourceRows {
			srcs = append(srcs, stringOf(r["source"]))
		}
		summaries = append(summaries, Summary{Entity: entity, Sources: srcs})
	}
	return summaries, nil
}

// ByID returns the full profile for a stored entity.
func (s *Service) ByID(ctx context.Context, id int64) (*Profile, error) {
	return s.BuildFullProfile(ctx, id)
}

// ByIdentifier looks up a stored profile by a loose identifier, guessing
// its shape: an address with '@' is an email, a dotted name without '@' is
// a domain, anything else is a username.
func (s *Service) ByIdentifier(ctx context.Context, identifier string) (*Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidInput)
	}

	name := identifier
	kind := KindPerson
	switch {
	case strings.Contains(identifier, "@"):
		name = strings.ToLower(identifier)
	case strings.Contains(identifier, "."):
		domain, ok := extract.ValidateDomain(identifier)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a valid domain", ErrInvalidInput, identifier)
		}
		name, kind = domain, KindCompany
	}

	row, err := s.store.FetchOne(ctx, store.OSINT,
		`SELECT id FROM entities WHERE name = ? AND kind = ?`, name, kind)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return s.BuildFullProfile(ctx, int64Of(row["id"]))
}

func entityFromRow(row map[string]any) Entity {
	return Entity{
		ID:        int64Of(row["id"]),
		Kind:      stringOf(row["kind"]),
		Name:      stringOf(row["name"]),
		Domain:    stringOf(row["domain"]),
		CreatedAt: stringOf(row["created_at"]),
	}
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func int64Of(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

func stringSliceOf(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
