package invites

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/domain/progress"
	"github.com/FACorreiaa/go-runworld/internal/app/models"
	"github.com/FACorreiaa/go-runworld/internal/app/observability/metrics"
	"github.com/FACorreiaa/go-runworld/internal/pkg/filelock"
)

var testNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

// fakeProgress keeps documents in memory; only Load and Save matter here.
type fakeProgress struct {
	mu   sync.Mutex
	docs map[string]*models.UserDocument
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{docs: map[string]*models.UserDocument{}}
}

func (f *fakeProgress) Load(_ context.Context, userKey string) (*models.UserDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.docs[userKey]; ok {
		return doc, nil
	}
	doc := progress.Heal(nil, testNow)
	f.docs[userKey] = doc
	return doc, nil
}

func (f *fakeProgress) Save(_ context.Context, userKey string, doc *models.UserDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[userKey] = doc
	return nil
}

func (f *fakeProgress) AddRun(context.Context, string, float64, string, string, string, string) (*models.UserDocument, error) {
	panic("not used")
}

func (f *fakeProgress) DeleteRuns(context.Context, string, string, *string) (*models.UserDocument, error) {
	panic("not used")
}

func (f *fakeProgress) AddRunBroadcast(context.Context, string, float64) (*models.UserDocument, error) {
	panic("not used")
}

func (f *fakeProgress) ChooseReward(context.Context, string, bool) (*models.UserDocument, error) {
	panic("not used")
}

func (f *fakeProgress) RewardNarrative(context.Context, string) (*models.RewardNarrative, error) {
	panic("not used")
}

func (f *fakeProgress) SelectRoute(context.Context, string, string) (*models.UserDocument, error) {
	panic("not used")
}

func newTestRegistry(t *testing.T, table models.InviteTable) (*ServiceImpl, string) {
	t.Helper()
	metrics.InitAppMetrics()

	path := filepath.Join(t.TempDir(), "invites.json")
	if table != nil {
		data, err := json.Marshal(table)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	svc := NewServiceImpl(path, time.Second, newFakeProgress(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc, path
}

func readTableFile(t *testing.T, path string) models.InviteTable {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var table models.InviteTable
	require.NoError(t, json.Unmarshal(data, &table))
	return table
}

func TestActivateGrantsExplorerPass(t *testing.T) {
	svc, path := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-001": {Status: models.InviteNew},
	})

	doc, err := svc.Activate(context.Background(), "u_test", "RW-ALPHA-001")
	require.NoError(t, err)

	assert.Equal(t, "invite", doc.Profile.Auth.Mode)
	require.NotNil(t, doc.Profile.Auth.InviteCode)
	assert.Equal(t, "RW-ALPHA-001", *doc.Profile.Auth.InviteCode)

	pass := doc.Profile.Pass
	assert.Equal(t, "explorer", pass.Tier)
	assert.Equal(t, models.PassStatusActive, pass.Status)
	assert.Equal(t, "2024-06-15", *pass.StartsAt)
	assert.Equal(t, "2025-06-15", *pass.EndsAt)
	assert.Equal(t, "manual", pass.Source)
	assert.Equal(t, "alpha", pass.Notes)

	assert.True(t, doc.Profile.Entitlements.AllRoutes, "activation unlocks all routes immediately")
	assert.Equal(t, models.ModePro, doc.Profile.V3.Mode)

	table := readTableFile(t, path)
	assert.Equal(t, models.InviteUsed, table["RW-ALPHA-001"].Status)
	assert.Equal(t, "2024-06-15", table["RW-ALPHA-001"].ActivatedAt)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock released")
}

func TestActivateDistinguishesFailureModes(t *testing.T) {
	svc, _ := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-001": {Status: models.InviteUsed},
		"RW-ALPHA-002": {Status: models.InviteRevoked},
	})
	ctx := context.Background()

	_, err := svc.Activate(ctx, "u_test", "RW-NOPE-001")
	assert.ErrorIs(t, err, models.ErrInviteNotFound)

	_, err = svc.Activate(ctx, "u_test", "RW-ALPHA-001")
	assert.ErrorIs(t, err, models.ErrInviteUsed)

	_, err = svc.Activate(ctx, "u_test", "RW-ALPHA-002")
	assert.ErrorIs(t, err, models.ErrInviteRevoked)

	_, err = svc.Activate(ctx, "u_test", "   ")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestActivateCodeIsSingleUseUnderConcurrency(t *testing.T) {
	svc, _ := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-001": {Status: models.InviteNew},
	})

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Activate(context.Background(), "u_test", "RW-ALPHA-001")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, alreadyUsed := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, models.ErrInviteUsed):
			alreadyUsed++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one caller consumes the code")
	assert.Equal(t, callers-1, alreadyUsed)
}

func TestActivateTimesOutWhenRegistryHeld(t *testing.T) {
	svc, path := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-001": {Status: models.InviteNew},
	})
	svc.lockTimeout = 150 * time.Millisecond

	require.NoError(t, os.WriteFile(path+".lock", nil, 0o644))
	defer os.Remove(path + ".lock")

	_, err := svc.Activate(context.Background(), "u_test", "RW-ALPHA-001")
	assert.ErrorIs(t, err, filelock.ErrTimeout)
}

func TestRevoke(t *testing.T) {
	svc, path := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-001": {Status: models.InviteNew},
	})
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, "RW-ALPHA-001"))
	assert.Equal(t, models.InviteRevoked, readTableFile(t, path)["RW-ALPHA-001"].Status)

	// Idempotent.
	require.NoError(t, svc.Revoke(ctx, "RW-ALPHA-001"))

	assert.ErrorIs(t, svc.Revoke(ctx, "RW-NOPE-001"), models.ErrInviteNotFound)
}

func TestIssueContinuesNumbering(t *testing.T) {
	svc, path := newTestRegistry(t, models.InviteTable{
		"RW-ALPHA-002": {Status: models.InviteUsed},
		"RW-BETA-009":  {Status: models.InviteNew},
	})

	created, err := svc.Issue(context.Background(), 2, "RW-ALPHA", "tester")
	require.NoError(t, err)
	assert.Equal(t, []string{"RW-ALPHA-003", "RW-ALPHA-004"}, created)

	table := readTableFile(t, path)
	rec := table["RW-ALPHA-003"]
	assert.Equal(t, models.InviteNew, rec.Status)
	assert.Equal(t, "tester", rec.IssuedTo)
	assert.Equal(t, "2024-06-15", rec.IssuedAt)

	_, err = svc.Issue(context.Background(), 0, "RW-ALPHA", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIssueIntoEmptyRegistry(t *testing.T) {
	svc, _ := newTestRegistry(t, nil)

	created, err := svc.Issue(context.Background(), 3, "RW-ALPHA", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"RW-ALPHA-001", "RW-ALPHA-002", "RW-ALPHA-003"}, created)
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	svc, path := newTestRegistry(t, nil)
	ctx := context.Background()

	seed := models.InviteTable{"RW-ALPHA-001": {Status: models.InviteNew}}
	require.NoError(t, svc.Seed(ctx, seed))
	assert.Len(t, readTableFile(t, path), 1)

	// A second seed never overwrites live data.
	require.NoError(t, svc.Seed(ctx, models.InviteTable{"RW-OTHER-001": {Status: models.InviteNew}}))
	table := readTableFile(t, path)
	assert.Len(t, table, 1)
	assert.Contains(t, table, "RW-ALPHA-001")
}

func TestStats(t *testing.T) {
	svc, _ := newTestRegistry(t, models.InviteTable{
		"a": {Status: models.InviteNew},
		"b": {Status: models.InviteNew},
		"c": {Status: models.InviteUsed},
		"d": {Status: models.InviteRevoked},
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.InviteStats{New: 2, Used: 1, Revoked: 1}, stats)
}
