package manager

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/schema"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_AllRequiredEmpty(t *testing.T) {
	f := newFixture(t, schema.Event)
	form := f.mgr.Draft()

	_, err := f.mgr.Submit(context.Background(), form)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, ErrValidation)

	want := []string{"title", "description", "imageUrl", "startDate", "endDate",
		"registrationDeadline", "slug", "status", "venue"}
	assert.Len(t, verr.Fields, len(want))
	for _, name := range want {
		assert.Contains(t, verr.Fields, name)
	}
	assert.Equal(t, "Title is required", verr.Fields["title"])
	assert.Equal(t, "Image is required", verr.Fields["imageUrl"])

	inserts, patches := f.store.writes()
	assert.Zero(t, inserts)
	assert.Empty(t, patches)
	assert.Equal(t, StateDraft, form.State())
	pins, _ := f.media.Counts()
	assert.Zero(t, pins, "nothing is uploaded for an invalid form")
}

func TestSubmit_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Event)
	require.NoError(t, f.mgr.Mount(ctx))

	form := f.mgr.Draft()
	fillEvent(t, form)
	form.SetFile(media.File{Name: "fest.png", Data: []byte("png")})
	f.media.NextCID("cidX")

	id, err := f.mgr.Submit(ctx, form)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records := f.mgr.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "cidX", rec.MediaRef)
	assert.Equal(t, "Fall Fest", rec.Title)
	assert.Equal(t, float64(10), rec.Fields["fee"])
	assert.Equal(t, 50, rec.Fields["maxParticipants"])
	assert.Equal(t, true, rec.Fields["registrationRequired"])
	start, ok := rec.Fields["startDate"].(time.Time)
	require.True(t, ok)
	assert.True(t, start.Equal(time.Date(2024, 10, 5, 17, 0, 0, 0, time.UTC)))
	assert.Equal(t, "https://media.test/cidX?ttl=60", rec.ViewURL)

	assert.Equal(t, StatePersisted, f.mgr.State(id))
	assert.Equal(t, "Event created", f.mgr.Status())

	// The draft is reset for the next entry
	assert.Equal(t, StateDraft, form.State())
	assert.Nil(t, form.Value("title"))
	assert.Nil(t, form.File())
}

func TestSubmit_UploadFailureLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Event)
	f.media.FailPin(errors.New("pinning service unreachable"))

	form := f.mgr.Draft()
	fillEvent(t, form)
	form.SetFile(media.File{Name: "fest.png", Data: []byte("png")})
	before := form.Values()

	_, err := f.mgr.Submit(ctx, form)

	assert.ErrorIs(t, err, ErrUpload)
	inserts, _ := f.store.writes()
	assert.Zero(t, inserts, "no write after a failed upload")
	entries, _ := f.store.MemStore.ListAll(ctx, schema.Event.Collection)
	assert.Empty(t, entries)

	assert.Equal(t, StateDraft, form.State())
	assert.Equal(t, before, form.Values())
	assert.NotNil(t, form.File(), "the pending file is kept for another try")
	assert.False(t, f.mgr.Busy())
}

func TestSubmit_PersistFailure(t *testing.T) {
	f := newFixture(t, schema.Recruitment)
	f.store.set(func(s *hookStore) { s.insertErr = errors.New("store down") })

	form := f.mgr.NewDraft()
	require.NoError(t, form.SetField("title", "Robotics Club"))
	require.NoError(t, form.SetField("url", "https://forms.example.com/robotics"))

	_, err := f.mgr.Submit(context.Background(), form)

	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, "Robotics Club", form.Value("title"))
	assert.Equal(t, StateDraft, form.State())
	assert.Equal(t, "Failed to create recruitment", f.mgr.Status())
}

func TestSubmit_NoMediaKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)

	form := f.mgr.NewDraft()
	require.NoError(t, form.SetField("title", "Robotics Club"))
	require.NoError(t, form.SetField("url", "https://forms.example.com/robotics"))

	id, err := f.mgr.Submit(ctx, form)
	require.NoError(t, err)

	rec, ok := f.mgr.Record(id)
	require.True(t, ok)
	assert.Equal(t, "Robotics Club", rec.Title)
	assert.Empty(t, rec.MediaRef)
	assert.Empty(t, rec.ViewURL)
	_, signs := f.media.Counts()
	assert.Zero(t, signs)
}

func TestSubmit_RejectsEditForm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))

	form, err := f.mgr.Edit(id)
	require.NoError(t, err)
	_, err = f.mgr.Submit(ctx, form)
	assert.Error(t, err)
	assert.Error(t, f.mgr.Save(ctx, f.mgr.NewDraft()))
}

func TestRefresh_Deterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	for _, title := range []string{"A", "B", "C", "D"} {
		f.seed(t, "recruitments", schema.Document{"title": title, "url": "https://example.com/" + title})
	}

	first, err := f.mgr.Refresh(ctx)
	require.NoError(t, err)
	second, err := f.mgr.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	titles := make([]string, len(first))
	for i, r := range first {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, titles)
}

func TestRefresh_SortsByOrderField(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Slide)
	f.media.Seed("c1")
	f.seed(t, "homepageSlides", schema.Document{"title": "third", "imageUrl": "c1", "order": float64(3)})
	f.seed(t, "homepageSlides", schema.Document{"title": "first", "imageUrl": "c1", "order": float64(1)})
	f.seed(t, "homepageSlides", schema.Document{"title": "unordered", "imageUrl": "c1"})
	f.seed(t, "homepageSlides", schema.Document{"title": "second", "imageUrl": "c1", "order": float64(2)})

	records, err := f.mgr.Refresh(ctx)
	require.NoError(t, err)

	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = r.Title
		assert.NotEmpty(t, r.ViewURL)
	}
	assert.Equal(t, []string{"first", "second", "third", "unordered"}, titles)
}

func TestRefresh_FetchFailureKeepsLastList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))

	f.store.set(func(s *hookStore) { s.listErr = errors.New("connection reset") })
	records, err := f.mgr.Refresh(ctx)

	assert.ErrorIs(t, err, ErrFetch)
	require.Len(t, records, 1)
	assert.Equal(t, "ACM", records[0].Title)
	assert.Len(t, f.mgr.Records(), 1)
	assert.Contains(t, f.mgr.Status(), "showing last known list")
}

func TestRefresh_ResolveFailureStillLists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Poster)
	f.seed(t, "Posters", schema.Document{"Title": "Hackathon", "FormsLink": "https://forms.example.com/h", "Image": "gone"})
	f.media.FailSign(errors.New("gateway timeout"))

	records, err := f.mgr.Refresh(ctx)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "gone", records[0].MediaRef)
	assert.Empty(t, records[0].ViewURL)
}

func TestDelete_ThenRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))
	assert.Equal(t, StatePersisted, f.mgr.State(id))

	require.NoError(t, f.mgr.Delete(ctx, id))
	_, ok := f.mgr.Record(id)
	assert.False(t, ok)
	assert.Equal(t, StateAbsent, f.mgr.State(id))

	// The gateway reports the second delete
	err := f.mgr.gateway.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// The manager treats it as already deleted but still says so
	err = f.mgr.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StateAbsent, f.mgr.State(id))
	assert.Equal(t, "Recruitment was already deleted", f.mgr.Status())
}

func TestDelete_FailureRestoresPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))
	f.store.set(func(s *hookStore) { s.removeErr = errors.New("write rejected") })

	err := f.mgr.Delete(ctx, id)

	assert.ErrorIs(t, err, ErrPersist)
	assert.Equal(t, StatePersisted, f.mgr.State(id))
	_, ok := f.mgr.Record(id)
	assert.True(t, ok)
}

func TestActivate_Exclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Slide)
	a := f.seed(t, "homepageSlides", schema.Document{"title": "A", "imageUrl": "c", "active": false})
	b := f.seed(t, "homepageSlides", schema.Document{"title": "B", "imageUrl": "c", "active": true})
	c := f.seed(t, "homepageSlides", schema.Document{"title": "C", "imageUrl": "c"})
	require.NoError(t, f.mgr.Mount(ctx))

	require.NoError(t, f.mgr.Activate(ctx, a))

	active := map[string]bool{}
	for _, r := range f.mgr.Records() {
		active[r.ID] = r.IsActive()
	}
	assert.Equal(t, map[string]bool{a: true, b: false, c: false}, active)

	// A first, then the others as separate patches
	_, patches := f.store.writes()
	require.Len(t, patches, 3)
	assert.Equal(t, a, patches[0].id)
	assert.Equal(t, schema.Document{"active": true}, patches[0].doc)
	assert.Equal(t, schema.Document{"active": false}, patches[1].doc)
}

func TestActivate_InterleavedRefreshSeesTwoActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Slide)
	a := f.seed(t, "homepageSlides", schema.Document{"title": "A", "imageUrl": "c"})
	f.seed(t, "homepageSlides", schema.Document{"title": "B", "imageUrl": "c", "active": true})
	f.seed(t, "homepageSlides", schema.Document{"title": "C", "imageUrl": "c"})
	require.NoError(t, f.mgr.Mount(ctx))

	// Observe the collection right after A is activated, before B and C
	// are cleared.
	observed := -1
	f.store.set(func(s *hookStore) {
		s.onPatch = func(id string, doc schema.Document) {
			if id != a || observed >= 0 {
				return
			}
			records, err := f.mgr.Refresh(ctx)
			require.NoError(t, err)
			observed = 0
			for _, r := range records {
				if r.IsActive() {
					observed++
				}
			}
		}
	})

	require.NoError(t, f.mgr.Activate(ctx, a))

	assert.Equal(t, 2, observed, "activation is not atomic")
	activeCount := 0
	for _, r := range f.mgr.Records() {
		if r.IsActive() {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestActivate_PartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Poster)
	a := f.seed(t, "Posters", schema.Document{"Title": "A", "FormsLink": "https://x.example.com", "Image": "c"})
	b := f.seed(t, "Posters", schema.Document{"Title": "B", "FormsLink": "https://x.example.com", "Image": "c", "Active": true})
	require.NoError(t, f.mgr.Mount(ctx))
	f.store.set(func(s *hookStore) { s.patchErrs[b] = errors.New("write rejected") })

	err := f.mgr.Activate(ctx, a)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, CodePersist, opErr.Code)
	assert.Equal(t, b, opErr.ID)

	// A stays active, B was never cleared
	active := 0
	for _, r := range f.mgr.Records() {
		if r.IsActive() {
			active++
		}
	}
	assert.Equal(t, 2, active)
}

func TestActivate_ReadsGroupFromStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Slide)
	a := f.seed(t, "homepageSlides", schema.Document{"title": "A", "imageUrl": "c", "active": true})
	b := f.seed(t, "homepageSlides", schema.Document{"title": "B", "imageUrl": "c"})

	// the initial load fails, so the cached list is empty
	f.store.set(func(s *hookStore) { s.listErr = errors.New("store down") })
	require.ErrorIs(t, f.mgr.Mount(ctx), ErrFetch)
	require.Empty(t, f.mgr.Records())
	f.store.set(func(s *hookStore) { s.listErr = nil })

	require.NoError(t, f.mgr.Activate(ctx, b))

	active := map[string]bool{}
	for _, r := range f.mgr.Records() {
		active[r.ID] = r.IsActive()
	}
	assert.Equal(t, map[string]bool{a: false, b: true}, active)
}

func TestActivate_FetchFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Slide)
	a := f.seed(t, "homepageSlides", schema.Document{"title": "A", "imageUrl": "c"})
	f.seed(t, "homepageSlides", schema.Document{"title": "B", "imageUrl": "c", "active": true})
	require.NoError(t, f.mgr.Mount(ctx))
	f.store.set(func(s *hookStore) { s.listErr = errors.New("store down") })

	err := f.mgr.Activate(ctx, a)

	assert.ErrorIs(t, err, ErrFetch)
	_, patches := f.store.writes()
	assert.Empty(t, patches)
	assert.False(t, f.mgr.Busy())
}

func TestActivate_KindWithoutActiveFlag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Event)
	err := f.mgr.Activate(ctx, "x")
	assert.ErrorIs(t, err, ErrNoActiveGroup)
}

func TestRefresh_DropsStatesOfVanishedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	kept := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	gone := f.seed(t, "recruitments", schema.Document{"title": "IEEE", "url": "https://ieee.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))

	_, err := f.mgr.Edit(kept)
	require.NoError(t, err)
	_, err = f.mgr.Edit(gone)
	require.NoError(t, err)
	require.NoError(t, f.store.MemStore.Remove(ctx, "recruitments", gone))

	_, err = f.mgr.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateEditing, f.mgr.State(kept))
	assert.Equal(t, StateAbsent, f.mgr.State(gone))
	f.mgr.mu.Lock()
	assert.Len(t, f.mgr.states, 1)
	f.mgr.mu.Unlock()
}

func TestEditSave_WritesOnlyChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Poster)
	f.media.Seed("c-old")
	id := f.seed(t, "Posters", schema.Document{"Title": "Hackathon", "FormsLink": "https://forms.example.com/h", "Image": "c-old"})
	require.NoError(t, f.mgr.Mount(ctx))

	form, err := f.mgr.Edit(id)
	require.NoError(t, err)
	assert.Equal(t, StateEditing, form.State())
	assert.Equal(t, StateEditing, f.mgr.State(id))
	require.NoError(t, form.SetField("Title", "Hackathon 2024"))

	require.NoError(t, f.mgr.Save(ctx, form))

	_, patches := f.store.writes()
	require.Len(t, patches, 1)
	assert.Equal(t, schema.Document{"Title": "Hackathon 2024"}, patches[0].doc)
	assert.Equal(t, StatePersisted, f.mgr.State(id))
	rec, _ := f.mgr.Record(id)
	assert.Equal(t, "Hackathon 2024", rec.Title)
	assert.Empty(t, form.Changes())
}

func TestEditSave_NewImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Poster)
	id := f.seed(t, "Posters", schema.Document{"Title": "Hackathon", "FormsLink": "https://forms.example.com/h", "Image": "c-old"})
	require.NoError(t, f.mgr.Mount(ctx))

	form, err := f.mgr.Edit(id)
	require.NoError(t, err)
	form.SetFile(media.File{Name: "new.png", Data: []byte("new")})
	f.media.NextCID("c-new")

	require.NoError(t, f.mgr.Save(ctx, form))

	rec, _ := f.mgr.Record(id)
	assert.Equal(t, "c-new", rec.MediaRef)
	assert.Equal(t, "c-new", form.Value("Image"))
	assert.Nil(t, form.File())
}

func TestEdit_DetachedFromRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})
	require.NoError(t, f.mgr.Mount(ctx))

	form, err := f.mgr.Edit(id)
	require.NoError(t, err)
	require.NoError(t, form.SetField("title", "changed locally"))

	rec, _ := f.mgr.Record(id)
	assert.Equal(t, "ACM", rec.Title)

	form.Reset()
	assert.Equal(t, "ACM", form.Value("title"))

	_, err = f.mgr.Edit("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Partial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Event)
	id := f.seed(t, "events", schema.Document{"title": "Fall Fest", "fee": float64(10), "imageUrl": "c"})

	require.NoError(t, f.mgr.Update(ctx, id, map[string]any{"fee": "12.5"}, nil))

	entries, _ := f.store.MemStore.ListAll(ctx, "events")
	require.Len(t, entries, 1)
	assert.Equal(t, 12.5, entries[0].Fields["fee"])
	assert.Equal(t, "Fall Fest", entries[0].Fields["title"])

	err := f.mgr.Update(ctx, id, map[string]any{"sheet": "not a url"}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Sheet URL must be a valid URL", verr.Fields["sheet"])

	err = f.mgr.Update(ctx, id, map[string]any{"title": ""}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Title is required", verr.Fields["title"])

	err = f.mgr.Update(ctx, id, map[string]any{"bogus": 1}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "bogus")

	err = f.mgr.Update(ctx, id, map[string]any{"fee": "-1"}, nil)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Fee must be zero or more", verr.Fields["fee"])

	err = f.mgr.Update(ctx, "missing", map[string]any{"title": "x"}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_FileOnKindWithoutMedia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})

	err := f.mgr.Update(ctx, id, nil, &media.File{Name: "x.png", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrValidation)
	pins, _ := f.media.Counts()
	assert.Zero(t, pins)
}

func TestBusy_RejectsConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, schema.Recruitment)
	id := f.seed(t, "recruitments", schema.Document{"title": "ACM", "url": "https://acm.example.com"})

	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.set(func(s *hookStore) {
		s.onPatch = func(string, schema.Document) {
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var updateErr error
	go func() {
		defer wg.Done()
		updateErr = f.mgr.Update(ctx, id, map[string]any{"title": "ACM Chapter"}, nil)
	}()

	<-entered
	assert.True(t, f.mgr.Busy())
	err := f.mgr.Delete(ctx, id)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.mgr.Submit(ctx, f.mgr.NewDraft())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	require.NoError(t, updateErr)
	assert.False(t, f.mgr.Busy())
}

func TestClose_CancelsInFlight(t *testing.T) {
	f := newFixture(t, schema.Recruitment)

	entered := make(chan struct{})
	var once sync.Once
	f.store.set(func(s *hookStore) {
		s.onList = func(ctx context.Context) error {
			once.Do(func() { close(entered) })
			<-ctx.Done()
			return ctx.Err()
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.mgr.Refresh(context.Background())
		done <- err
	}()

	<-entered
	f.mgr.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("refresh did not return after Close")
	}

	_, err := f.mgr.Submit(context.Background(), f.mgr.NewDraft())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.mgr.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOperationTimeout(t *testing.T) {
	store := newHookStore()
	store.onList = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	nop := zerolog.Nop()
	mgr := New(schema.Recruitment, Options{Store: store, Media: nil, Logger: &nop, OperationTimeout: 20 * time.Millisecond})
	defer mgr.Close()

	_, err := mgr.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSynchronizer_DiscardsOvertakenRefresh(t *testing.T) {
	ctx := context.Background()
	store := newHookStore()
	nop := zerolog.Nop()
	syncer := NewSynchronizer(schema.Recruitment, store, nil, time.Minute, 2, nil, nop)

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	store.onList = func(context.Context) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		syncer.Refresh(ctx)
	}()
	<-entered

	// The newer refresh lands first
	_, err := syncer.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, syncer.Records())

	// The older one now reads a document the newer one did not see
	store.MemStore.Insert(ctx, "recruitments", schema.Document{"title": "late"})
	close(release)
	<-done

	assert.Empty(t, syncer.Records(), "an overtaken refresh must not replace the list")
}

func TestGateway_CreateRequiresMedia(t *testing.T) {
	store := newHookStore()
	nop := zerolog.Nop()
	g := NewGateway(schema.Slide, store, nil, nop)

	_, err := g.Create(context.Background(), schema.Document{"title": "no image"}, nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Image is required", verr.Fields["imageUrl"])
	inserts, _ := store.writes()
	assert.Zero(t, inserts)
}

func TestGateway_UpdateNotFound(t *testing.T) {
	store := newHookStore()
	nop := zerolog.Nop()
	g := NewGateway(schema.Recruitment, store, nil, nop)

	err := g.Update(context.Background(), "nope", schema.Document{"title": "x"}, nil)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, sdk.ErrNotFound)
}

func TestGateway_WireFormat(t *testing.T) {
	ctx := context.Background()
	store := newHookStore()
	nop := zerolog.Nop()
	g := NewGateway(schema.Recruitment, store, nil, nop)

	when := time.Date(2024, 9, 1, 18, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	id, err := g.Create(ctx, schema.Document{"title": "x", "at": when}, nil)
	require.NoError(t, err)

	entries, _ := store.MemStore.ListAll(ctx, "recruitments")
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "2024-09-01T13:00:00Z", entries[0].Fields["at"])
}
