package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/cache"
	"github.com/andresuchdata/inventory-analyzer/internal/domain"
	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
	"github.com/andresuchdata/inventory-analyzer/internal/repository"
	"github.com/andresuchdata/inventory-analyzer/internal/storage"
)

const inventoryCSV = `Name,Category,Stock,Sales,Reorder,Cost
Widget,Tools,5,30,10,2
Bolt,Hardware,200,10,20,0.5
Nut,Hardware,0,20,5,0.1
,Hardware,1,1,1,1
`

type fakeCache struct {
	cache.SessionCache
	snapshots   map[string]*analysis.Result
	filtered    map[string][]analysis.EnrichedRow
	filterTTLs  []time.Duration
	invalidated []string
	hits        int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		SessionCache: cache.NewNoopSessionCache(),
		snapshots:    make(map[string]*analysis.Result),
		filtered:     make(map[string][]analysis.EnrichedRow),
	}
}

func (c *fakeCache) GetSnapshot(_ context.Context, id string) (*analysis.Result, bool, error) {
	r, ok := c.snapshots[id]
	if ok {
		c.hits++
	}
	return r, ok, nil
}

func (c *fakeCache) SetSnapshot(_ context.Context, id string, r *analysis.Result, _ time.Duration) error {
	c.snapshots[id] = r
	return nil
}

func (c *fakeCache) GetFiltered(_ context.Context, id string, f analysis.FilterCriteria) ([]analysis.EnrichedRow, bool, error) {
	rows, ok := c.filtered[id+strings.Join(f.Parts(), "|")]
	if ok {
		c.hits++
	}
	return rows, ok, nil
}

func (c *fakeCache) SetFiltered(_ context.Context, id string, f analysis.FilterCriteria, rows []analysis.EnrichedRow, ttl time.Duration) error {
	c.filtered[id+strings.Join(f.Parts(), "|")] = rows
	c.filterTTLs = append(c.filterTTLs, ttl)
	return nil
}

func (c *fakeCache) InvalidateSession(_ context.Context, id string) error {
	c.invalidated = append(c.invalidated, id)
	delete(c.snapshots, id)
	for key := range c.filtered {
		if strings.HasPrefix(key, id) {
			delete(c.filtered, key)
		}
	}
	return nil
}

type failingCache struct {
	cache.SessionCache
}

func (failingCache) GetSnapshot(context.Context, string) (*analysis.Result, bool, error) {
	return nil, false, errors.New("redis down")
}

func (failingCache) SetSnapshot(context.Context, string, *analysis.Result, time.Duration) error {
	return errors.New("redis down")
}

func newTestService(t *testing.T, c cache.SessionCache) (*AnalysisService, repository.SessionRepository) {
	t.Helper()
	repo := repository.NewMemorySessionRepository()
	svc := NewAnalysisService(
		analysis.NewAnalyzer(analysis.DefaultParams(), nil),
		repo,
		c,
		storage.NewArchive(nil, ""),
		metrics.New(),
		AnalysisOptions{SessionTTL: time.Hour, MaxUploadBytes: 1024},
	)
	return svc, repo
}

func upload(t *testing.T, svc *AnalysisService) *domain.UploadResult {
	t.Helper()
	res, err := svc.Upload(context.Background(), domain.UploadedFile{Filename: "stock.csv", Data: []byte(inventoryCSV)})
	require.NoError(t, err)
	return res
}

func TestAnalysisService_Upload(t *testing.T) {
	svc, repo := newTestService(t, nil)
	svc.newID = func() string { return "session-1" }

	res := upload(t, svc)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, "stock.csv", res.Filename)
	assert.Equal(t, 3, res.KPIs.TotalProducts)
	assert.Equal(t, 2, res.KPIs.CriticalAlerts)
	assert.Equal(t, []int{3}, res.Cleaning.DroppedRows)
	assert.NotEmpty(t, res.TopReorders)

	header, ok := res.Mapping.Header(analysis.RoleUnitCost)
	assert.True(t, ok)
	assert.Equal(t, "Cost", header)

	session, err := repo.GetSession(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, 3, session.TotalProducts)
	assert.Empty(t, session.ArchiveKey)
}

func TestAnalysisService_UploadErrors(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, domain.UploadedFile{Filename: "big.csv", Data: bytes.Repeat([]byte("a"), 2048)})
	assert.ErrorIs(t, err, ErrUploadTooLarge)

	_, err = svc.Upload(ctx, domain.UploadedFile{Filename: "empty.csv"})
	assert.ErrorIs(t, err, ErrEmptyUpload)

	_, err = svc.Upload(ctx, domain.UploadedFile{Filename: "stock.pdf", Data: []byte("x")})
	assert.Error(t, err)

	_, err = svc.Upload(ctx, domain.UploadedFile{Filename: "stock.csv", Data: []byte("Name,Stock\nA,1\n")})
	var missing *analysis.MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, missing.Missing, analysis.RoleCategory)
	assert.Contains(t, missing.Missing, analysis.RoleSales)
}

func TestAnalysisService_Queries(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	id := upload(t, svc).SessionID

	kpis, err := svc.KPIs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, kpis.TotalProducts)

	reorders, err := svc.PriorityReorders(ctx, id, 2)
	require.NoError(t, err)
	assert.Len(t, reorders, 2)

	plan, err := svc.ReorderPlan(ctx, id, 0)
	require.NoError(t, err)
	assert.Len(t, plan, 2)

	cats, err := svc.Categories(ctx, id)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Hardware", cats[0].Category)
	assert.Equal(t, 2, cats[0].ProductCount)

	movers, err := svc.Movers(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, movers.Fast, 1)
	assert.Equal(t, "Widget", movers.Fast[0].Name)
	assert.Equal(t, "Bolt", movers.Slow[0].Name)

	opts, err := svc.FilterOptions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hardware", "Tools"}, opts.Categories)

	_, err = svc.Insights(ctx, id)
	require.NoError(t, err)

	info, err := svc.ColumnsInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingSummary{RawRows: 4, ProcessedRows: 3, DroppedRows: 1, OutlierRows: len(info.Quality.OutlierRows)}, info.Summary)
}

func TestAnalysisService_Filter(t *testing.T) {
	fc := newFakeCache()
	svc, repo := newTestService(t, fc)
	ctx := context.Background()
	id := upload(t, svc).SessionID

	criteria, err := analysis.ParseFilterCriteria(map[string]string{"status": "Critical"})
	require.NoError(t, err)

	rows, err := svc.Filter(ctx, id, criteria)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Widget", rows[0].Name)
	assert.Equal(t, "Nut", rows[1].Name)
	assert.Zero(t, fc.hits)

	again, err := svc.Filter(ctx, id, criteria)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
	assert.Equal(t, 1, fc.hits, "filter result served from cache")

	none, err := svc.Filter(ctx, id, analysis.FilterCriteria{Search: "gadget"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	stats, err := repo.GetStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventsByType["upload"])
	assert.Equal(t, 3, stats.EventsByType["filter"], "cached filters are recorded too")
}

func TestAnalysisService_FilterCacheFollowsSessionLifetime(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newTestService(t, fc)
	ctx := context.Background()

	start := time.Now()
	svc.now = func() time.Time { return start }
	id := upload(t, svc).SessionID

	criteria := analysis.FilterCriteria{Category: "Hardware"}
	rows, err := svc.Filter(ctx, id, criteria)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, fc.filterTTLs, 1)
	assert.Equal(t, time.Hour, fc.filterTTLs[0])

	svc.now = func() time.Time { return start.Add(30 * time.Minute) }
	_, err = svc.Filter(ctx, id, analysis.FilterCriteria{Search: "bolt"})
	require.NoError(t, err)
	require.Len(t, fc.filterTTLs, 2)
	assert.Equal(t, 30*time.Minute, fc.filterTTLs[1])

	svc.now = func() time.Time { return start.Add(48 * time.Hour) }
	_, err = svc.Filter(ctx, id, analysis.FilterCriteria{Search: "nut"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{id}, fc.invalidated)
	assert.Empty(t, fc.filtered)
	assert.Empty(t, fc.snapshots)

	_, err = svc.Filter(ctx, id, criteria)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnalysisService_CacheFailuresAreIgnored(t *testing.T) {
	svc, _ := newTestService(t, failingCache{SessionCache: cache.NewNoopSessionCache()})
	ctx := context.Background()
	id := upload(t, svc).SessionID

	kpis, err := svc.KPIs(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, kpis.TotalProducts)
}

func TestAnalysisService_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.KPIs(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.ColumnsInfo(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnalysisService_Export(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()
	id := upload(t, svc).SessionID

	var buf bytes.Buffer
	n, err := svc.Export(ctx, id, analysis.FilterCriteria{Category: "Hardware"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)

	stats, err := repo.GetStats(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EventsByType["export"])
}

func TestAnalysisService_CleanupAndStats(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	id := upload(t, svc).SessionID

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 3, stats.TotalProductsAnalyzed)

	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	later := time.Now().Add(2 * time.Hour)
	svc.now = func() time.Time { return later }
	n, err = svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.KPIs(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAnalysisService_ResolveColumns(t *testing.T) {
	svc, _ := newTestService(t, nil)

	mapping, err := svc.ResolveColumns([]string{"Product Name", "Category", "Qty On Hand", "Units Sold"})
	require.NoError(t, err)
	assert.True(t, mapping.Resolved(analysis.RoleStock))

	_, err = svc.ResolveColumns([]string{"foo"})
	assert.ErrorIs(t, err, analysis.ErrMissingRequiredColumns)
}
