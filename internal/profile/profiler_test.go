package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/browsint/browsint/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(store.Config{Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return NewService(st, nil, zap.NewNop())
}

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	first, err := svc.ResolveOrCreate(ctx, "example.com", KindCompany, "example.com")
	require.NoError(t, err)
	second, err := svc.ResolveOrCreate(ctx, "example.com", KindCompany, "example.com")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// A person with no domain must also converge on one row.
	p1, err := svc.ResolveOrCreate(ctx, "jdoe@example.com", KindPerson, "")
	require.NoError(t, err)
	p2, err := svc.ResolveOrCreate(ctx, "jdoe@example.com", KindPerson, "")
	require.NoError(t, err)
	require.Equal(t, p1, p2)
	require.NotEqual(t, first, p1)
}

func TestSaveSnapshotUpsertsOneRow(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)

	require.NoError(t, svc.SaveSnapshot(ctx, id, SourceDomain, map[string]any{"target": "acme.test", "run": 1}))
	require.NoError(t, svc.SaveSnapshot(ctx, id, SourceDomain, map[string]any{"target": "acme.test", "run": 2}))

	rows, err := svc.store.FetchAll(ctx, store.OSINT,
		`SELECT raw_data FROM osint_profiles WHERE entity_id = ? AND source = ?`, id, SourceDomain)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Contains(t, rows[0]["raw_data"], `"run":2`)
}

func TestSaveSnapshotNormalizesTimestamps(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)

	created := time.Date(2020, 3, 14, 9, 26, 53, 0, time.UTC)
	payload := map[string]any{
		"whois": map[string]any{
			"creation_date": created,
			"registrar":     "Example Registrar",
			"org":           "Acme Corp",
		},
	}
	require.NoError(t, svc.SaveSnapshot(ctx, id, SourceDomain, payload))

	prof, err := svc.BuildFullProfile(ctx, id)
	require.NoError(t, err)
	whois := prof.Snapshots[SourceDomain].Data["whois"].(map[string]any)
	require.Equal(t, "2020-03-14T09:26:53Z", whois["creation_date"])

	require.NotNil(t, prof.DomainInfo)
	require.Equal(t, "Example Registrar", prof.DomainInfo["registrar"])
	require.Equal(t, "2020-03-14T09:26:53Z", prof.DomainInfo["creation_date"])
	require.Equal(t, "Acme Corp", prof.DomainInfo["org"])
}

func TestExtractAndSaveContactsDeduplicates(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)

	payload := map[string]any{
		"whois": map[string]any{
			"emails": []string{"admin@acme.test", "admin@acme.test"},
			"text":   "reach us at admin@acme.test or +1 415-555-2671",
		},
	}
	n, err := svc.ExtractAndSaveContacts(ctx, id, payload, SourceDomain)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// Re-running finds everything already stored.
	n, err = svc.ExtractAndSaveContacts(ctx, id, payload, SourceDomain)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	prof, err := svc.BuildFullProfile(ctx, id)
	require.NoError(t, err)
	require.Len(t, prof.Contacts, 2)
}

func TestExtractAndSaveContactsKeyMarkedEmail(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)

	// The key marks the value as an email even when the extractor's own
	// filters would not surface it from free text.
	payload := map[string]any{"registrant_email": "X@Acme.Test"}
	n, err := svc.ExtractAndSaveContacts(ctx, id, payload, SourceDomain)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	prof, err := svc.BuildFullProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "x@acme.test", prof.Contacts[0].Value)
}

func TestExtractAndSaveContactsScansRecordLists(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)

	payload := map[string]any{
		"breaches": []map[string]any{
			{"Name": "Adobe", "Description": "notify security-team@acme.test about exposure"},
		},
	}
	n, err := svc.ExtractAndSaveContacts(ctx, id, payload, SourceEmail)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	prof, err := svc.BuildFullProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "security-team@acme.test", prof.Contacts[0].Value)
}

func TestBuildFullProfileReportsDecodeErrorInline(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	id, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)
	require.NoError(t, svc.SaveSnapshot(ctx, id, SourceDomain, map[string]any{"target": "acme.test"}))
	require.NoError(t, svc.SaveSnapshot(ctx, id, SourceSocial, map[string]any{"profiles": map[string]any{}}))

	_, err = svc.store.Exec(ctx, store.OSINT,
		`UPDATE osint_profiles SET raw_data = ? WHERE entity_id = ? AND source = ?`,
		"{not json", id, SourceDomain)
	require.NoError(t, err)

	prof, err := svc.BuildFullProfile(ctx, id)
	require.NoError(t, err)

	broken := prof.Snapshots[SourceDomain]
	require.NotEmpty(t, broken.Error)
	require.Equal(t, "{not json", broken.Raw)
	require.Nil(t, broken.Data)

	intact := prof.Snapshots[SourceSocial]
	require.Empty(t, intact.Error)
	require.NotNil(t, intact.Data)
}

func TestBuildFullProfileUnknownEntity(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	_, err := svc.BuildFullProfile(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProfileDomainRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	_, err := svc.ProfileDomain(context.Background(), "not a domain")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ProfileEmail(context.Background(), "not-an-email")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.ProfileUsername(context.Background(), "has spaces")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSummariesListsSourcesNewestFirst(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	domainID, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)
	require.NoError(t, svc.SaveSnapshot(ctx, domainID, SourceDomain, map[string]any{"target": "acme.test"}))
	require.NoError(t, svc.SaveSnapshot(ctx, domainID, SourceSocial, map[string]any{}))

	personID, err := svc.ResolveOrCreate(ctx, "jdoe@acme.test", KindPerson, "")
	require.NoError(t, err)
	require.NoError(t, svc.SaveSnapshot(ctx, personID, SourceEmail, map[string]any{"target": "jdoe@acme.test"}))

	summaries, err := svc.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byName := map[string][]string{}
	for _, s := range summaries {
		byName[s.Entity.Name] = s.Sources
	}
	require.Equal(t, []string{SourceDomain, SourceSocial}, byName["acme.test"])
	require.Equal(t, []string{SourceEmail}, byName["jdoe@acme.test"])
}

func TestByIdentifierGuessesShape(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	domainID, err := svc.ResolveOrCreate(ctx, "acme.test", KindCompany, "acme.test")
	require.NoError(t, err)
	emailID, err := svc.ResolveOrCreate(ctx, "jdoe@acme.test", KindPerson, "")
	require.NoError(t, err)
	userID, err := svc.ResolveOrCreate(ctx, "acmedev", KindPerson, "")
	require.NoError(t, err)

	prof, err := svc.ByIdentifier(ctx, "https://WWW.acme.test/about")
	require.NoError(t, err)
	require.Equal(t, domainID, prof.Entity.ID)

	prof, err = svc.ByIdentifier(ctx, "JDoe@acme.test")
	require.NoError(t, err)
	require.Equal(t, emailID, prof.Entity.ID)

	prof, err = svc.ByIdentifier(ctx, "acmedev")
	require.NoError(t, err)
	require.Equal(t, userID, prof.Entity.ID)

	_, err = svc.ByIdentifier(ctx, "nobody.test")
	require.ErrorIs(t, err, ErrNotFound)
}
