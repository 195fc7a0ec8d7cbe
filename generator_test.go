package alttext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelforge/alttext/captioner"
	"github.com/pixelforge/alttext/cms"
)

// fakeCaptioner returns a fixed caption, with optional per-asset failures.
type fakeCaptioner struct {
	caption string
	failFor map[string]error
	calls   int
}

func (f *fakeCaptioner) Name() string { return "fake" }

func (f *fakeCaptioner) GenerateCaption(ctx context.Context, asset *cms.Asset) (string, error) {
	f.calls++
	if err, ok := f.failFor[asset.ID()]; ok {
		return "", err
	}
	return f.caption, nil
}

func (f *fakeCaptioner) SupportsAsset(asset *cms.Asset) bool {
	return captioner.SupportsMimeType(asset.MimeType)
}

type fakeStore struct {
	assets    map[string]*cms.Asset
	saveModes []cms.SaveMode
	saveErr   error
}

func newFakeStore(assets ...*cms.Asset) *fakeStore {
	s := &fakeStore{assets: make(map[string]*cms.Asset)}
	for _, a := range assets {
		s.assets[a.ID()] = a
	}
	return s
}

func (s *fakeStore) Find(ctx context.Context, id string) (*cms.Asset, error) {
	a, ok := s.assets[id]
	if !ok {
		return nil, cms.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) Contents(ctx context.Context, a *cms.Asset) ([]byte, error) {
	return nil, errors.New("no contents in fake store")
}

func (s *fakeStore) Save(ctx context.Context, a *cms.Asset, mode cms.SaveMode) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveModes = append(s.saveModes, mode)
	s.assets[a.ID()] = a
	return nil
}

type fakeQueue struct {
	jobs []cms.Job
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job cms.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func testGenerator(t *testing.T, cap captioner.Captioner, store *fakeStore, queue *fakeQueue) *Generator {
	t.Helper()
	cfg := &Config{
		AltTextField:              "alt",
		IgnoreFieldHandle:         "auto_alt_text_ignore",
		AutomaticGenerationEvents: []string{string(cms.EventAssetUploaded)},
	}
	filter, err := NewEligibilityFilter(nil, cfg.IgnoreFieldHandle)
	require.NoError(t, err)
	return NewGenerator(cfg, cap, filter, store, queue, zap.NewNop().Sugar())
}

func imageAsset(path string) *cms.Asset {
	return &cms.Asset{
		Container: "assets",
		Path:      path,
		MimeType:  "image/jpeg",
		Fields:    map[string]any{},
	}
}

func TestHandleGeneratesAndSaves(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	cap := &fakeCaptioner{caption: ` "A dog  on a beach." `}
	g := testGenerator(t, cap, store, &fakeQueue{})

	caption, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.NoError(t, err)
	assert.Equal(t, "A dog on a beach.", caption)
	assert.Equal(t, "A dog on a beach.", asset.FieldString("alt"))
	require.Len(t, store.saveModes, 1)
	assert.Equal(t, cms.SaveNormal, store.saveModes[0])
}

func TestHandleIsIdempotent(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	cap := &fakeCaptioner{caption: "A dog."}
	g := testGenerator(t, cap, store, &fakeQueue{})

	first, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.NoError(t, err)
	assert.Equal(t, "A dog.", first)

	// The field is now populated, so a rerun skips before the provider.
	second, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, cap.calls)
	assert.Equal(t, "A dog.", asset.FieldString("alt"))
}

func TestHandleOverwrite(t *testing.T) {
	asset := imageAsset("photo.jpg")
	asset.SetField("alt", "Stale caption.")
	store := newFakeStore(asset)
	cap := &fakeCaptioner{caption: "Fresh caption."}
	g := testGenerator(t, cap, store, &fakeQueue{})
	g.Overwrite = true

	caption, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.NoError(t, err)
	assert.Equal(t, "Fresh caption.", caption)
	assert.Equal(t, "Fresh caption.", asset.FieldString("alt"))
}

func TestHandlePropagatesProviderError(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	provErr := &captioner.CaptionError{Provider: "fake", Status: 500}
	cap := &fakeCaptioner{failFor: map[string]error{asset.ID(): provErr}}
	g := testGenerator(t, cap, store, &fakeQueue{})

	_, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.Error(t, err)
	assert.Empty(t, asset.FieldString("alt"))
	assert.Empty(t, store.saveModes, "a failed generation must not save")
}

func TestHandleHooks(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	g := testGenerator(t, &fakeCaptioner{caption: "A dog."}, store, &fakeQueue{})

	var before, after []string
	g.Hooks.BeforeGeneration = func(a *cms.Asset) { before = append(before, a.ID()) }
	g.Hooks.AfterGeneration = func(a *cms.Asset, caption string) { after = append(after, caption) }

	_, err := g.Handle(context.Background(), asset, "", cms.SaveNormal)
	require.NoError(t, err)
	assert.Equal(t, []string{asset.ID()}, before)
	assert.Equal(t, []string{"A dog."}, after)
}

func TestHandleBatchIsolatesFailures(t *testing.T) {
	a1 := imageAsset("one.jpg")
	a2 := imageAsset("two.jpg")
	a3 := imageAsset("three.jpg")
	store := newFakeStore(a1, a2, a3)
	cap := &fakeCaptioner{
		caption: "A photo.",
		failFor: map[string]error{a2.ID(): &captioner.CaptionError{Provider: "fake", Status: 502}},
	}
	g := testGenerator(t, cap, store, &fakeQueue{})

	results := g.HandleBatch(context.Background(), []*cms.Asset{a1, a2, a3}, "")
	assert.Equal(t, map[string]string{
		a1.ID(): "A photo.",
		a2.ID(): "",
		a3.ID(): "A photo.",
	}, results)
	assert.Equal(t, "A photo.", a3.FieldString("alt"), "failure at two.jpg must not stop three.jpg")
}

func TestHandleOrQueueFallsBackOnCaptionError(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	queue := &fakeQueue{}
	cap := &fakeCaptioner{failFor: map[string]error{asset.ID(): &captioner.CaptionError{Provider: "fake", Status: 429}}}
	g := testGenerator(t, cap, store, queue)

	caption, queued, err := g.HandleOrQueue(context.Background(), asset, "")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Empty(t, caption)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, asset.ID(), queue.jobs[0].AssetID)
	assert.Equal(t, "alt", queue.jobs[0].Field)
	assert.False(t, queue.jobs[0].Quiet)
}

func TestHandleOrQueueDoesNotQueueConfigErrors(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	queue := &fakeQueue{}
	cap := &fakeCaptioner{failFor: map[string]error{asset.ID(): &captioner.ConfigError{Reason: "missing api key"}}}
	g := testGenerator(t, cap, store, queue)

	_, queued, err := g.HandleOrQueue(context.Background(), asset, "")
	require.Error(t, err)
	assert.False(t, queued)
	assert.Empty(t, queue.jobs, "configuration errors are not retryable")
}

func TestHandleJob(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	g := testGenerator(t, &fakeCaptioner{caption: "A dog."}, store, &fakeQueue{})

	err := g.HandleJob(context.Background(), cms.Job{ID: "j1", AssetID: asset.ID(), Field: "alt", Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, "A dog.", asset.FieldString("alt"))
	require.Len(t, store.saveModes, 1)
	assert.Equal(t, cms.SaveQuiet, store.saveModes[0], "queued event work saves quietly")
}

func TestHandleJobMissingAsset(t *testing.T) {
	g := testGenerator(t, &fakeCaptioner{caption: "A dog."}, newFakeStore(), &fakeQueue{})
	err := g.HandleJob(context.Background(), cms.Job{ID: "j1", AssetID: "assets::gone.jpg"})
	assert.ErrorIs(t, err, cms.ErrNotFound)
}

func TestOnAssetEvent(t *testing.T) {
	asset := imageAsset("photo.jpg")
	store := newFakeStore(asset)
	queue := &fakeQueue{}
	g := testGenerator(t, &fakeCaptioner{caption: "A dog."}, store, queue)

	// Enabled event, empty field: a quiet job is queued, nothing runs inline.
	g.OnAssetEvent(context.Background(), asset, cms.EventAssetUploaded)
	require.Len(t, queue.jobs, 1)
	assert.True(t, queue.jobs[0].Quiet)
	assert.Empty(t, asset.FieldString("alt"))

	// Event kind off the allow-list: ignored.
	g.OnAssetEvent(context.Background(), asset, cms.EventAssetSaving)
	assert.Len(t, queue.jobs, 1)

	// Populated field: ignored.
	asset.SetField("alt", "A dog.")
	g.OnAssetEvent(context.Background(), asset, cms.EventAssetUploaded)
	assert.Len(t, queue.jobs, 1)
}
