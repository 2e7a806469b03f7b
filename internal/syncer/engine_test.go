package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"catalogsync/internal/logger"
	"catalogsync/internal/mapper"
	"catalogsync/internal/models"
	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
	"catalogsync/internal/source"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu   sync.Mutex
	naps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.naps = append(s.naps, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) longerThan(floor time.Duration) []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, d := range s.naps {
		if d >= floor {
			out = append(out, d)
		}
	}
	return out
}

func newTestEngine(f *fakePlatform, mutate func(*Options)) (*Engine, *sleepRecorder) {
	rec := &sleepRecorder{}
	opts := Options{
		BatchSize:    2,
		RequestDelay: time.Millisecond,
		BatchPause:   2 * time.Millisecond,
		Retry:        retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		ImageLimit:   10,
		Sleep:        rec.sleep,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(f, opts, logger.Nop()), rec
}

func product(handle string, qty int) models.Product {
	return models.Product{
		Handle: handle,
		Title:  "Title " + handle,
		Status: models.StatusActive,
		Variant: models.Variant{
			SKU:                 "SKU-" + handle,
			Price:               decimal.RequireFromString("10.00"),
			InventoryQty:        qty,
			InventoryManagement: models.InventoryManagementTracked,
			InventoryPolicy:     models.InventoryPolicyDeny,
		},
	}
}

func collect(e *Engine) *[]Outcome {
	var outcomes []Outcome
	e.Observe(ObserverFunc(func(ctx context.Context, p *models.Product, o Outcome) {
		outcomes = append(outcomes, o)
	}))
	return &outcomes
}

func TestRunShirtScenario(t *testing.T) {
	res := &source.ParseResult{Schema: source.SchemaNative, Records: []source.RawRecord{
		{Row: 1, Fields: map[string]string{"Handle": "shirt-1", "Title": "Blue Shirt", "Variant Price": "19.99", "Variant Inventory Qty": "0"}},
		{Row: 2, Fields: map[string]string{"Handle": "shirt-2", "Title": "Red Shirt", "Variant Price": "24.50", "Variant Inventory Qty": "5"}},
	}}
	stats := models.NewStatistics()
	sellable, _ := mapper.Partition(mapper.New(mapper.Options{ImageLimit: 10}, logger.Nop()).Map(res), stats)

	f := newFakePlatform()
	e, _ := newTestEngine(f, nil)
	outcomes := collect(e)

	require.NoError(t, e.Run(context.Background(), sellable, stats))

	require.Len(t, *outcomes, 1)
	o := (*outcomes)[0]
	assert.Equal(t, StateCreated, o.State)
	assert.Equal(t, "shirt-2", o.Ref.Handle)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.InventoryUpdated)
	assert.Equal(t, 5, f.inventorySet[o.Ref.InventoryItemID])
	assert.Equal(t, 1, f.callCount("FindProductByHandle"))
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFakePlatform()
	e, _ := newTestEngine(f, nil)
	products := []models.Product{product("a", 1), product("b", 2), product("c", 3)}

	first := models.NewStatistics()
	require.NoError(t, e.Run(context.Background(), products, first))
	second := models.NewStatistics()
	require.NoError(t, e.Run(context.Background(), products, second))

	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Duplicates)
	assert.Len(t, f.live(), 3)
	assert.Equal(t, 3, f.callCount("CreateProduct"))
}

func TestRunPacesRecordsAndBatches(t *testing.T) {
	f := newFakePlatform()
	e, rec := newTestEngine(f, nil)
	products := []models.Product{product("a", 1), product("b", 1), product("c", 1)}

	require.NoError(t, e.Run(context.Background(), products, models.NewStatistics()))

	// Two records in the first batch, one in the second.
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, rec.naps)
}

func TestCreateRetriesWithoutImages(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(p *shopify.Product) error {
		if len(p.Images) > 0 {
			return apiError(http.StatusUnprocessableEntity, `{"errors":{"image":["could not be downloaded"]}}`)
		}
		return nil
	}
	e, _ := newTestEngine(f, nil)
	p := product("with-images", 1)
	p.Images = []string{"https://cdn/x.jpg"}

	o := e.Process(context.Background(), &p)

	assert.Equal(t, StateCreated, o.State)
	assert.True(t, o.ImagesStripped)
	assert.Equal(t, 2, f.callCount("CreateProduct"))
	require.Len(t, f.live(), 1)
	assert.Empty(t, f.live()[0].Images)
}

func TestCreateTransientFailureIsRetriedThenCounted(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(*shopify.Product) error {
		return apiError(http.StatusServiceUnavailable, "upstream down")
	}
	e, _ := newTestEngine(f, nil)
	stats := models.NewStatistics()

	require.NoError(t, e.Run(context.Background(), []models.Product{product("a", 1)}, stats))

	assert.Equal(t, 3, f.callCount("CreateProduct"))
	assert.Equal(t, 1, stats.Errors[string(ErrorKindTransient)])
	assert.Equal(t, 0, stats.Created)
}

func TestCreateValidationFailureIsNotRetried(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(*shopify.Product) error {
		return apiError(http.StatusUnprocessableEntity, "title can't be blank")
	}
	e, _ := newTestEngine(f, nil)
	p := product("a", 1)

	o := e.Process(context.Background(), &p)

	assert.Equal(t, StateCreateFailed, o.State)
	assert.Equal(t, ErrorKindValidation, o.Kind)
	assert.Equal(t, 1, f.callCount("CreateProduct"))
}

func TestLookupFailureSkipsCreate(t *testing.T) {
	f := newFakePlatform()
	f.findHook = func() error { return apiError(http.StatusForbidden, "access denied") }
	e, _ := newTestEngine(f, nil)
	p := product("a", 1)

	o := e.Process(context.Background(), &p)

	assert.Equal(t, StateCreateFailed, o.State)
	assert.Equal(t, ErrorKindLookup, o.Kind)
	assert.Equal(t, 0, f.callCount("CreateProduct"))
}

func TestGovernorCoolsDownAfterConsecutiveFailures(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(*shopify.Product) error {
		return apiError(http.StatusUnprocessableEntity, "rejected")
	}
	e, rec := newTestEngine(f, func(o *Options) {
		o.BatchSize = 10
		o.ErrorThreshold = 2
		o.CooldownBase = 10 * time.Second
		o.CooldownMax = 25 * time.Second
	})
	products := []models.Product{product("a", 1), product("b", 1), product("c", 1), product("d", 1)}

	require.NoError(t, e.Run(context.Background(), products, models.NewStatistics()))

	assert.Equal(t, []time.Duration{20 * time.Second, 25 * time.Second, 25 * time.Second}, rec.longerThan(time.Second))
}

func TestGovernorResetsOnSuccess(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(p *shopify.Product) error {
		if p.Handle == "ok" {
			return nil
		}
		return apiError(http.StatusUnprocessableEntity, "rejected")
	}
	e, rec := newTestEngine(f, func(o *Options) {
		o.BatchSize = 10
		o.ErrorThreshold = 2
		o.CooldownBase = 10 * time.Second
	})
	products := []models.Product{product("a", 1), product("b", 1), product("ok", 1), product("c", 1)}

	require.NoError(t, e.Run(context.Background(), products, models.NewStatistics()))

	assert.Equal(t, []time.Duration{20 * time.Second}, rec.longerThan(time.Second))
}

func TestPostProcessFailuresAreNonFatal(t *testing.T) {
	f := newFakePlatform()
	f.inventoryHook = func() error { return apiError(http.StatusInternalServerError, "inventory down") }
	f.categoryHook = func() error { return apiError(http.StatusUnprocessableEntity, "taxonomy unsupported") }
	f.metafieldHook = func(m shopify.Metafield) error {
		if m.Key == "barcode" {
			return apiError(http.StatusUnprocessableEntity, "bad barcode")
		}
		return nil
	}
	e, _ := newTestEngine(f, func(o *Options) {
		o.Retry.MaxAttempts = 2
		o.TaxonomyGID = shopify.TaxonomyGID("aa-1")
	})
	p := product("figure", 2)
	p.ProductType = "ANIME"
	p.CategoryPath = "ANIME / MANGA"
	p.Variant.Barcode = "4545784069523"
	stats := models.NewStatistics()

	require.NoError(t, e.Run(context.Background(), []models.Product{p}, stats))

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.ErrorCount())
	assert.Equal(t, 1, stats.InventoryErrors)
	assert.Equal(t, 1, stats.CategoryFallback)
	assert.Equal(t, 1, stats.MetadataErrors)
	assert.Equal(t, 2, f.callCount("SetInventoryLevel"))
	assert.Equal(t, 1, f.callCount("SetProductCategory"))
	require.Len(t, f.live(), 1)
	id := f.live()[0].ID
	assert.Equal(t, "ANIME", f.productTypes[id])
	assert.Len(t, f.metafields[id], 2, "sku and category still attached")
}

func TestCategoryAssignedThroughTaxonomy(t *testing.T) {
	f := newFakePlatform()
	gid := shopify.TaxonomyGID("aa-1-2")
	e, _ := newTestEngine(f, func(o *Options) { o.TaxonomyGID = gid })
	p := product("a", 1)
	p.ProductType = "Toys"

	o := e.Process(context.Background(), &p)

	require.Equal(t, StateCreated, o.State)
	assert.Equal(t, StepResult{Name: StepCategory, Status: StepOK}, o.Steps[1])
	assert.Equal(t, gid, f.categories[o.Ref.ID])
	assert.Equal(t, 0, f.callCount("UpdateProductType"))
}

func TestTitleDuplicateKey(t *testing.T) {
	f := newFakePlatform()
	_, err := f.CreateProduct(context.Background(), &shopify.Product{Title: "Title a", Handle: "renamed-elsewhere"})
	require.NoError(t, err)

	byHandle, _ := newTestEngine(f, nil)
	p := product("a", 1)
	p.Handle = "a-new"
	assert.Equal(t, StateCreated, byHandle.Process(context.Background(), &p).State)

	f2 := newFakePlatform()
	_, err = f2.CreateProduct(context.Background(), &shopify.Product{Title: "Title a", Handle: "renamed-elsewhere"})
	require.NoError(t, err)
	byTitle, _ := newTestEngine(f2, func(o *Options) { o.DuplicateKey = DuplicateByTitle })
	assert.Equal(t, StateSkipDuplicate, byTitle.Process(context.Background(), &p).State)

	f3 := newFakePlatform()
	_, err = f3.CreateProduct(context.Background(), &shopify.Product{Title: "Title a", Handle: "renamed-elsewhere"})
	require.NoError(t, err)
	both, _ := newTestEngine(f3, func(o *Options) { o.DuplicateKey = DuplicateByHandleThenTitle })
	assert.Equal(t, StateSkipDuplicate, both.Process(context.Background(), &p).State)
	assert.Equal(t, 1, f3.callCount("FindProductByHandle"))
	assert.Equal(t, 1, f3.callCount("FindProductByTitle"))
}

func TestInventorySkippedWithoutPermission(t *testing.T) {
	f := newFakePlatform()
	f.levelsHook = func() error { return apiError(http.StatusForbidden, "read_inventory scope required") }
	e, _ := newTestEngine(f, nil)
	stats := models.NewStatistics()

	require.NoError(t, e.Run(context.Background(), []models.Product{product("a", 4)}, stats))

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.InventorySkipped)
	assert.Equal(t, 0, f.callCount("SetInventoryLevel"))
}

func TestEachRunProbesPermissionsAgain(t *testing.T) {
	f := newFakePlatform()
	denied := true
	f.levelsHook = func() error {
		if denied {
			return apiError(http.StatusForbidden, "read_inventory scope required")
		}
		return nil
	}
	e, _ := newTestEngine(f, nil)

	first := models.NewStatistics()
	require.NoError(t, e.Run(context.Background(), []models.Product{product("a", 4)}, first))
	assert.Equal(t, 1, first.InventorySkipped)

	denied = false
	second := models.NewStatistics()
	require.NoError(t, e.Run(context.Background(), []models.Product{product("b", 3)}, second))

	assert.Equal(t, 1, second.InventoryUpdated)
	assert.Equal(t, 0, second.InventorySkipped)
	assert.Equal(t, 2, f.callCount("ListInventoryLevels"))
	assert.Equal(t, 1, f.callCount("SetInventoryLevel"))
}

func TestCreateHonorsRetryAfter(t *testing.T) {
	f := newFakePlatform()
	throttled := 0
	f.createHook = func(*shopify.Product) error {
		if throttled < 2 {
			throttled++
			return &shopify.APIError{StatusCode: http.StatusTooManyRequests, Method: http.MethodPost, Path: "/products.json", Wait: 2 * time.Second}
		}
		return nil
	}
	e, rec := newTestEngine(f, func(o *Options) { o.Retry.MaxDelay = 30 * time.Second })
	stats := models.NewStatistics()

	require.NoError(t, e.Run(context.Background(), []models.Product{product("a", 1)}, stats))

	assert.Equal(t, 1, stats.Created)
	assert.Empty(t, stats.Errors)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.longerThan(time.Second))
}

func TestInventoryReloadsProductWithoutVariants(t *testing.T) {
	f := newFakePlatform()
	f.omitVariants = true
	e, _ := newTestEngine(f, nil)
	p := product("a", 9)

	o := e.Process(context.Background(), &p)

	require.Equal(t, StateCreated, o.State)
	assert.Equal(t, 1, f.callCount("GetProduct"))
	assert.NotZero(t, o.Ref.VariantID)
	assert.Equal(t, 9, f.inventorySet[o.Ref.InventoryItemID])
	assert.Equal(t, StepOK, o.Steps[0].Status)
}

func TestInventoryFailsWhenCreatedProductVanished(t *testing.T) {
	f := newFakePlatform()
	e, _ := newTestEngine(f, nil)
	p := product("a", 9)
	e.permissions(context.Background())

	ref := models.RemoteProductRef{ID: 4242, Handle: "a"}
	step := e.setInventory(context.Background(), &p, &ref)

	assert.Equal(t, StepFailed, step.Status)
	assert.Contains(t, step.Err.Error(), "no longer exists")
	assert.True(t, shopify.IsNotFound(step.Err))
	assert.Equal(t, 0, f.callCount("SetInventoryLevel"))
}

func TestInventoryAdjustResolvesItemThroughVariant(t *testing.T) {
	f := newFakePlatform()
	f.omitItemID = true
	e, _ := newTestEngine(f, func(o *Options) { o.InventoryMode = InventoryAdjust })
	p := product("a", 6)

	o := e.Process(context.Background(), &p)

	require.Equal(t, StateCreated, o.State)
	assert.Equal(t, 1, f.callCount("GetVariant"))
	assert.Equal(t, o.Ref.VariantID*7, o.Ref.InventoryItemID)
	assert.Equal(t, 6, f.inventoryDelta[o.Ref.InventoryItemID])
	assert.Equal(t, 0, f.callCount("SetInventoryLevel"))
}

func TestRunStopsBetweenRecordsOnCancel(t *testing.T) {
	f := newFakePlatform()
	e, _ := newTestEngine(f, func(o *Options) { o.BatchSize = 10 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Observe(ObserverFunc(func(context.Context, *models.Product, Outcome) { cancel() }))
	stats := models.NewStatistics()

	err := e.Run(ctx, []models.Product{product("a", 1), product("b", 1), product("c", 1)}, stats)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Created)
}

func TestProbe(t *testing.T) {
	f := newFakePlatform()
	e, _ := newTestEngine(f, func(o *Options) {
		o.ProbeWrite = true
		o.LocationHint = "centro"
	})

	perms := e.Probe(context.Background())

	assert.True(t, perms.ShopRead)
	assert.True(t, perms.ProductsRead)
	assert.True(t, perms.WriteProbed)
	assert.True(t, perms.ProductsWrite)
	assert.True(t, perms.InventoryRead)
	require.NotNil(t, perms.Location)
	assert.Equal(t, int64(2), perms.Location.ID)
	assert.Equal(t, 1, f.callCount("CreateProduct"))
	assert.Equal(t, 1, f.callCount("DeleteProduct"))
	assert.Empty(t, f.live())
}

func TestProbeWriteDeniedIsNotFatal(t *testing.T) {
	f := newFakePlatform()
	f.createHook = func(*shopify.Product) error { return apiError(http.StatusForbidden, "write_products required") }
	e, _ := newTestEngine(f, func(o *Options) { o.ProbeWrite = true })

	perms := e.Probe(context.Background())

	assert.False(t, perms.ProductsWrite)
	assert.True(t, perms.ProductsRead)
	assert.NotEmpty(t, perms.Problems)
}

func TestResolveLocation(t *testing.T) {
	locs := []shopify.Location{
		{ID: 1, Name: "Closed", Active: false},
		{ID: 2, Name: "Main", Active: true},
		{ID: 3, Name: "Almacén Norte", Active: true},
	}
	assert.Equal(t, int64(3), ResolveLocation(locs, "norte").ID)
	assert.Equal(t, int64(2), ResolveLocation(locs, "").ID)
	assert.Equal(t, int64(2), ResolveLocation(locs, "nowhere").ID)
	assert.Nil(t, ResolveLocation(nil, "x"))
}

func TestClassify(t *testing.T) {
	exhausted := fmt.Errorf("create: %w after 3 attempts: %w", retry.ErrExhausted, apiError(503, "x"))
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{context.Canceled, ErrorKindCancelled},
		{exhausted, ErrorKindTransient},
		{errors.New("dial tcp: connection refused"), ErrorKindTransient},
		{apiError(http.StatusUnauthorized, ""), ErrorKindPermission},
		{apiError(http.StatusForbidden, ""), ErrorKindPermission},
		{apiError(http.StatusBadRequest, ""), ErrorKindValidation},
		{apiError(http.StatusNotFound, ""), ErrorKindRemote},
		{errors.New("weird"), ErrorKindRemote},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}

func TestMetafields(t *testing.T) {
	p := product("a", 1)
	p.Dimensions = "150x77x222mm"
	p.CategoryPath = ""

	fields := Metafields(&p, "vendor")

	require.Len(t, fields, 2)
	assert.Equal(t, shopify.Metafield{Namespace: "vendor", Key: "sku", Value: "SKU-a", Type: "single_line_text_field"}, fields[0])
	assert.Equal(t, "dimensions", fields[1].Key)
}
