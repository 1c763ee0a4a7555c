package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"prediction-tracker/internal/entity"
	"prediction-tracker/internal/pipeline"
	"prediction-tracker/internal/platform/youtube"
	"prediction-tracker/internal/repository/postgresql"
)

// ---- fakes ----

type enqueued struct {
	job   entity.PipelineJob
	delay time.Duration
}

type fakeQueue struct {
	enqueuedJobs []enqueued
	// pending simulates what a queue scan would see (ready + delayed +
	// processing); tests set it up to model the scenario
	pending    []entity.PipelineJob
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, job entity.PipelineJob, delay time.Duration) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueuedJobs = append(q.enqueuedJobs, enqueued{job: job, delay: delay})
	return nil
}

func (q *fakeQueue) CountPending(ctx context.Context, creatorID uuid.UUID, types ...entity.JobType) (int, error) {
	count := 0
	for _, j := range q.pending {
		if j.CreatorID != creatorID {
			continue
		}
		if len(types) == 0 {
			count++
			continue
		}
		for _, t := range types {
			if j.Type == t {
				count++
				break
			}
		}
	}
	return count, nil
}

func (q *fakeQueue) byType(t entity.JobType) []enqueued {
	var out []enqueued
	for _, e := range q.enqueuedJobs {
		if e.job.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeStatusStore struct {
	docs    map[uuid.UUID]entity.PipelineStatus
	history []entity.PipelineStatus
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{docs: make(map[uuid.UUID]entity.PipelineStatus)}
}

func (s *fakeStatusStore) Get(ctx context.Context, creatorID uuid.UUID) (*entity.PipelineStatus, error) {
	st, ok := s.docs[creatorID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *fakeStatusStore) Set(ctx context.Context, st entity.PipelineStatus) error {
	s.docs[st.CreatorID] = st
	s.history = append(s.history, st)
	return nil
}

func (s *fakeStatusStore) All(ctx context.Context) ([]entity.PipelineStatus, error) {
	var out []entity.PipelineStatus
	for _, st := range s.docs {
		out = append(out, st)
	}
	return out, nil
}

type fakeVideoStore struct {
	videos map[uuid.UUID]*entity.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[uuid.UUID]*entity.Video)}
}

func (s *fakeVideoStore) add(creatorID uuid.UUID, externalID string, transcript *string, analyzed bool) *entity.Video {
	v := &entity.Video{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		ExternalID:  externalID,
		PublishedAt: time.Now().UTC(),
		Transcript:  transcript,
		Analyzed:    analyzed,
	}
	s.videos[v.ID] = v
	return v
}

func (s *fakeVideoStore) Upsert(ctx context.Context, creatorID uuid.UUID, meta entity.VideoMeta) (uuid.UUID, error) {
	for _, v := range s.videos {
		if v.ExternalID == meta.ExternalID {
			v.Title = meta.Title
			return v.ID, nil
		}
	}
	v := s.add(creatorID, meta.ExternalID, nil, false)
	v.Title = meta.Title
	v.PublishedAt = meta.PublishedAt
	return v.ID, nil
}

func (s *fakeVideoStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *fakeVideoStore) MissingTranscript(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error) {
	var out []entity.Video
	for _, v := range s.videos {
		if v.CreatorID == creatorID && v.Transcript == nil && len(out) < limit {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeVideoStore) AnalyzableByCreator(ctx context.Context, creatorID uuid.UUID, limit int) ([]entity.Video, error) {
	var out []entity.Video
	for _, v := range s.videos {
		if v.CreatorID == creatorID && !v.Analyzed && v.HasUsableTranscript() && len(out) < limit {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (s *fakeVideoStore) CountWithTranscript(ctx context.Context, creatorID uuid.UUID) (int, error) {
	n := 0
	for _, v := range s.videos {
		if v.CreatorID == creatorID && v.Transcript != nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeVideoStore) CountAnalyzed(ctx context.Context, creatorID uuid.UUID) (int, error) {
	n := 0
	for _, v := range s.videos {
		if v.CreatorID == creatorID && v.Analyzed {
			n++
		}
	}
	return n, nil
}

func (s *fakeVideoStore) SetTranscript(ctx context.Context, id uuid.UUID, transcript string) error {
	v, ok := s.videos[id]
	if !ok {
		return postgresql.ErrNotFound
	}
	v.Transcript = &transcript
	return nil
}

func (s *fakeVideoStore) SetAnalysis(ctx context.Context, id uuid.UUID, avgScore *float64) error {
	v, ok := s.videos[id]
	if !ok {
		return postgresql.ErrNotFound
	}
	v.Analyzed = true
	v.AvgScore = avgScore
	return nil
}

func (s *fakeVideoStore) MarkTranscriptsUnavailable(ctx context.Context, creatorID uuid.UUID) (int, error) {
	n := 0
	for _, v := range s.videos {
		if v.CreatorID == creatorID && v.Transcript == nil {
			sentinel := entity.TranscriptUnavailable
			v.Transcript = &sentinel
			n++
		}
	}
	return n, nil
}

func (s *fakeVideoStore) OrphanedAnalysis(ctx context.Context, limit int) ([]entity.Video, error) {
	var out []entity.Video
	for _, v := range s.videos {
		if !v.Analyzed && v.HasUsableTranscript() && len(out) < limit {
			out = append(out, *v)
		}
	}
	return out, nil
}

type fakeCreatorStore struct {
	creators     map[uuid.UUID]*entity.Creator
	recomputed   map[uuid.UUID]int
	recomputeErr error
}

func newFakeCreatorStore() *fakeCreatorStore {
	return &fakeCreatorStore{
		creators:   make(map[uuid.UUID]*entity.Creator),
		recomputed: make(map[uuid.UUID]int),
	}
}

func (s *fakeCreatorStore) add(channelID string) *entity.Creator {
	c := &entity.Creator{ID: uuid.New(), ChannelID: channelID, Name: "creator"}
	s.creators[c.ID] = c
	return c
}

func (s *fakeCreatorStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Creator, error) {
	c, ok := s.creators[id]
	if !ok {
		return nil, postgresql.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *fakeCreatorStore) RecomputeAggregates(ctx context.Context, id uuid.UUID) error {
	if s.recomputeErr != nil {
		return s.recomputeErr
	}
	if _, ok := s.creators[id]; !ok {
		return postgresql.ErrNotFound
	}
	s.recomputed[id]++
	return nil
}

type fakePredictionStore struct {
	counts map[uuid.UUID]int
}

func (s *fakePredictionStore) CountByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	return s.counts[creatorID], nil
}

type fakePlatform struct {
	videos      []entity.VideoMeta
	listErr     error
	listCalls   int
	transcripts map[string]string
	fetchErrs   map[string]error
}

func (p *fakePlatform) ListVideos(ctx context.Context, channelID string, from, to time.Time, max int) ([]entity.VideoMeta, error) {
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	if len(p.videos) > max {
		return p.videos[:max], nil
	}
	return p.videos, nil
}

func (p *fakePlatform) FetchTranscriptText(ctx context.Context, videoExternalID string) (string, error) {
	if err, ok := p.fetchErrs[videoExternalID]; ok {
		return "", err
	}
	if t, ok := p.transcripts[videoExternalID]; ok {
		return t, nil
	}
	return "", youtube.ErrNoTranscript
}

type fakeAnalyzer struct {
	videos   *fakeVideoStore
	failIDs  map[uuid.UUID]bool
	analyzed []uuid.UUID
}

func (a *fakeAnalyzer) AnalyzeVideo(ctx context.Context, video *entity.Video) error {
	if a.failIDs[video.ID] {
		return errors.New("analysis blew up")
	}
	a.analyzed = append(a.analyzed, video.ID)
	score := 0.8
	return a.videos.SetAnalysis(ctx, video.ID, &score)
}

// ---- harness ----

type fixture struct {
	queue       *fakeQueue
	status      *fakeStatusStore
	videos      *fakeVideoStore
	creators    *fakeCreatorStore
	predictions *fakePredictionStore
	platform    *fakePlatform
	analyzer    *fakeAnalyzer
	pipe        *pipeline.Pipeline
	creator     *entity.Creator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		queue:       &fakeQueue{},
		status:      newFakeStatusStore(),
		videos:      newFakeVideoStore(),
		creators:    newFakeCreatorStore(),
		predictions: &fakePredictionStore{counts: make(map[uuid.UUID]int)},
		platform:    &fakePlatform{transcripts: map[string]string{}, fetchErrs: map[string]error{}},
	}
	f.analyzer = &fakeAnalyzer{videos: f.videos, failIDs: map[uuid.UUID]bool{}}
	f.creator = f.creators.add("UC-test-channel")

	f.pipe = pipeline.New(pipeline.Config{
		MonthsBack:        6,
		MaxVideosPerRun:   25,
		TranscriptSpacing: 5 * time.Second,
		AnalysisSpacing:   15 * time.Second,
		CompletionMargin:  time.Minute,
		MaxAttempts:       3,
	}, f.queue, f.status, f.videos, f.creators, f.predictions, f.platform, f.analyzer)
	return f
}

func (f *fixture) currentStatus(t *testing.T) entity.PipelineStatus {
	t.Helper()
	st, err := f.status.Get(context.Background(), f.creator.ID)
	require.NoError(t, err)
	require.NotNil(t, st)
	return *st
}

func metas(n int) []entity.VideoMeta {
	out := make([]entity.VideoMeta, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.VideoMeta{
			ExternalID:  fmt.Sprintf("ext-%d", i),
			Title:       fmt.Sprintf("video %d", i),
			PublishedAt: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

// ---- sync ----

func TestSyncVideos_EnqueuesStaggeredTranscriptJobs(t *testing.T) {
	f := newFixture(t)
	f.platform.videos = metas(3)
	ctx := context.Background()

	err := f.pipe.HandleSyncVideos(ctx, entity.NewSyncJob(f.creator.ID, f.creator.ChannelID, 6))
	require.NoError(t, err)

	jobs := f.queue.byType(entity.JobFetchTranscript)
	require.Len(t, jobs, 3)

	delays := map[time.Duration]bool{}
	for _, e := range jobs {
		delays[e.delay] = true
	}
	require.Equal(t, map[time.Duration]bool{0: true, 5 * time.Second: true, 10 * time.Second: true}, delays)

	st := f.currentStatus(t)
	require.Equal(t, entity.StateFetchingTranscripts, st.State)
	require.Equal(t, 3, st.TotalVideos)
}

func TestSyncVideos_RerunCreatesNoDuplicates(t *testing.T) {
	f := newFixture(t)
	f.platform.videos = metas(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.pipe.HandleSyncVideos(ctx, entity.NewSyncJob(f.creator.ID, f.creator.ChannelID, 6)))
	}

	seen := map[string]int{}
	for _, v := range f.videos.videos {
		seen[v.ExternalID]++
	}
	for ext, n := range seen {
		require.Equal(t, 1, n, "external id %s duplicated", ext)
	}
	require.Len(t, seen, 4)
}

func TestSyncVideos_ZeroVideosJumpsToAnalysis(t *testing.T) {
	f := newFixture(t)
	f.platform.videos = nil
	ctx := context.Background()

	err := f.pipe.HandleSyncVideos(ctx, entity.NewSyncJob(f.creator.ID, f.creator.ChannelID, 6))
	require.NoError(t, err)

	require.Empty(t, f.queue.byType(entity.JobFetchTranscript))
	require.Empty(t, f.queue.byType(entity.JobAnalyzeVideo))
	completions := f.queue.byType(entity.JobCompletePipeline)
	require.Len(t, completions, 1)

	// completion finalizes the empty run
	err = f.pipe.HandleCompletePipeline(ctx, completions[0].job)
	require.NoError(t, err)

	st := f.currentStatus(t)
	require.Equal(t, entity.StateCompleted, st.State)
	require.Equal(t, 0, st.TotalVideos)
	require.NotNil(t, st.CompletedAt)
}

func TestSyncVideos_ListErrorFailsPipeline(t *testing.T) {
	f := newFixture(t)
	f.platform.listErr = errors.New("quota exceeded")
	ctx := context.Background()

	err := f.pipe.HandleSyncVideos(ctx, entity.NewSyncJob(f.creator.ID, f.creator.ChannelID, 6))
	require.Error(t, err)
	require.False(t, pipeline.IsPermanent(err))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateFailed, st.State)
	require.Contains(t, st.Error, "quota exceeded")
}

func TestSyncVideos_CapsFanOut(t *testing.T) {
	f := newFixture(t)
	f.platform.videos = metas(40) // above the 25 cap
	ctx := context.Background()

	err := f.pipe.HandleSyncVideos(ctx, entity.NewSyncJob(f.creator.ID, f.creator.ChannelID, 6))
	require.NoError(t, err)

	require.Len(t, f.queue.byType(entity.JobFetchTranscript), 25)
	require.Equal(t, 25, f.currentStatus(t).TotalVideos)
}

// ---- transcript phase ----

func TestFetchTranscript_StoresTextAndAdvancesWhenLast(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	f.platform.transcripts["ext-0"] = "we will see X by next year"
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID)
	f.queue.pending = []entity.PipelineJob{job} // only ourselves in flight

	err := f.pipe.HandleFetchTranscript(ctx, job)
	require.NoError(t, err)

	stored, _ := f.videos.GetByID(ctx, v.ID)
	require.True(t, stored.HasUsableTranscript())

	require.Len(t, f.queue.byType(entity.JobAnalyzeVideo), 1)
	require.Len(t, f.queue.byType(entity.JobCompletePipeline), 1)
}

func TestFetchTranscript_SiblingsRemainNoAdvance(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	other := f.videos.add(f.creator.ID, "ext-1", nil, false)
	f.platform.transcripts["ext-0"] = "transcript text"
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID)
	f.queue.pending = []entity.PipelineJob{job, entity.NewFetchTranscriptJob(f.creator.ID, other.ID)}

	err := f.pipe.HandleFetchTranscript(ctx, job)
	require.NoError(t, err)

	require.Empty(t, f.queue.byType(entity.JobAnalyzeVideo))
	require.Empty(t, f.queue.byType(entity.JobCompletePipeline))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateFetchingTranscripts, st.State)
	require.Equal(t, 1, st.TranscriptsFetched)
}

func TestFetchTranscript_RedeliveryAfterAdvanceDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	f.platform.transcripts["ext-0"] = "some transcript text"
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID)
	f.queue.pending = []entity.PipelineJob{job}

	require.NoError(t, f.pipe.HandleFetchTranscript(ctx, job))
	require.Equal(t, entity.StateAnalyzing, f.currentStatus(t).State)

	// redelivered after the phase advanced
	require.NoError(t, f.pipe.HandleFetchTranscript(ctx, job))

	require.Equal(t, entity.StateAnalyzing, f.currentStatus(t).State)
	require.Len(t, f.queue.byType(entity.JobAnalyzeVideo), 1, "analysis fan-out must not repeat")
	require.Len(t, f.queue.byType(entity.JobCompletePipeline), 1)
}

func TestFetchTranscript_PermanentFailureWritesSentinel(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	// fakePlatform returns ErrNoTranscript for unknown external ids
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID)
	f.queue.pending = []entity.PipelineJob{job}

	err := f.pipe.HandleFetchTranscript(ctx, job)
	require.NoError(t, err)

	stored, _ := f.videos.GetByID(ctx, v.ID)
	require.NotNil(t, stored.Transcript)
	require.Equal(t, entity.TranscriptUnavailable, *stored.Transcript)
	require.False(t, stored.HasUsableTranscript())
}

func TestFetchTranscript_TransientFailureRetriesWhileBudgetRemains(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	f.platform.fetchErrs["ext-0"] = errors.New("connection reset")
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID) // attempts = 0 of 3
	err := f.pipe.HandleFetchTranscript(ctx, job)
	require.Error(t, err)
	require.False(t, pipeline.IsPermanent(err))

	stored, _ := f.videos.GetByID(ctx, v.ID)
	require.Nil(t, stored.Transcript, "no sentinel while retries remain")
}

func TestFetchTranscript_TransientFailureFinalAttemptSeals(t *testing.T) {
	f := newFixture(t)
	v := f.videos.add(f.creator.ID, "ext-0", nil, false)
	f.platform.fetchErrs["ext-0"] = errors.New("connection reset")
	ctx := context.Background()

	job := entity.NewFetchTranscriptJob(f.creator.ID, v.ID)
	job.Attempts = 2 // third and final try
	f.queue.pending = []entity.PipelineJob{job}

	err := f.pipe.HandleFetchTranscript(ctx, job)
	require.NoError(t, err)

	stored, _ := f.videos.GetByID(ctx, v.ID)
	require.NotNil(t, stored.Transcript)
	require.Equal(t, entity.TranscriptUnavailable, *stored.Transcript)
}

func TestFetchTranscript_MissingVideoIsPermanent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.pipe.HandleFetchTranscript(ctx, entity.NewFetchTranscriptJob(f.creator.ID, uuid.New()))
	require.Error(t, err)
	require.True(t, pipeline.IsPermanent(err))
}

// ---- analysis phase ----

func TestAnalysisPhase_ExcludesSentinelVideos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 5 videos total: 2 already transcribed, 2 permanently unavailable,
	// 1 fetched by the final transcript job below
	text := "transcript"
	sentinel := entity.TranscriptUnavailable
	for i := 0; i < 2; i++ {
		f.videos.add(f.creator.ID, fmt.Sprintf("good-%d", i), &text, false)
	}
	for i := 0; i < 2; i++ {
		f.videos.add(f.creator.ID, fmt.Sprintf("bad-%d", i), &sentinel, false)
	}

	// finish the last transcript job to trigger the advancer
	last := f.videos.add(f.creator.ID, "last", nil, false)
	f.platform.transcripts["last"] = "more transcript"
	job := entity.NewFetchTranscriptJob(f.creator.ID, last.ID)
	f.queue.pending = []entity.PipelineJob{job}
	require.NoError(t, f.pipe.HandleFetchTranscript(ctx, job))

	analyze := f.queue.byType(entity.JobAnalyzeVideo)
	require.Len(t, analyze, 3, "sentinel videos must not be analyzed")

	completions := f.queue.byType(entity.JobCompletePipeline)
	require.Len(t, completions, 1)
	require.Equal(t, 3*15*time.Second+time.Minute, completions[0].delay)
}

func TestAnalyzeVideo_FailureDoesNotFailBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	a := f.videos.add(f.creator.ID, "a", &text, false)
	b := f.videos.add(f.creator.ID, "b", &text, false)
	c := f.videos.add(f.creator.ID, "c", &text, false)
	f.analyzer.failIDs[b.ID] = true

	for _, v := range []*entity.Video{a, b, c} {
		err := f.pipe.HandleAnalyzeVideo(ctx, entity.NewAnalyzeVideoJob(f.creator.ID, v.ID))
		require.NoError(t, err, "a single video's failure must not surface")
	}

	require.Len(t, f.analyzer.analyzed, 2)

	st := f.currentStatus(t)
	require.Equal(t, entity.StateAnalyzing, st.State)
	require.Equal(t, 2, st.VideosAnalyzed)

	// completion still runs and reports the two analyzed videos
	require.NoError(t, f.pipe.HandleCompletePipeline(ctx, entity.NewCompletePipelineJob(f.creator.ID)))
	st = f.currentStatus(t)
	require.Equal(t, entity.StateCompleted, st.State)
	require.Equal(t, 2, st.VideosAnalyzed)
}

func TestAnalyzeVideo_DuplicateDeliveryIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	v := f.videos.add(f.creator.ID, "a", &text, true) // already analyzed

	err := f.pipe.HandleAnalyzeVideo(ctx, entity.NewAnalyzeVideoJob(f.creator.ID, v.ID))
	require.NoError(t, err)
	require.Empty(t, f.analyzer.analyzed)
}

func TestAnalyzeVideo_RedeliveryAfterCompletionKeepsTerminalStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	v := f.videos.add(f.creator.ID, "a", &text, false)

	job := entity.NewAnalyzeVideoJob(f.creator.ID, v.ID)
	require.NoError(t, f.pipe.HandleAnalyzeVideo(ctx, job))
	require.NoError(t, f.pipe.HandleCompletePipeline(ctx, entity.NewCompletePipelineJob(f.creator.ID)))
	require.Equal(t, entity.StateCompleted, f.currentStatus(t).State)

	// a crash between finish and ack redelivers the analyze job after
	// the completion job already sealed the run
	require.NoError(t, f.pipe.HandleAnalyzeVideo(ctx, job))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateCompleted, st.State)
	require.NotNil(t, st.CompletedAt)
}

func TestAnalyzeVideo_RecomputesAggregatesOnSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	v := f.videos.add(f.creator.ID, "a", &text, false)

	require.NoError(t, f.pipe.HandleAnalyzeVideo(ctx, entity.NewAnalyzeVideoJob(f.creator.ID, v.ID)))
	require.Equal(t, 1, f.creators.recomputed[f.creator.ID])
}

// ---- completion ----

func TestCompletePipeline_ReportsDurableCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	f.videos.add(f.creator.ID, "a", &text, true)
	f.videos.add(f.creator.ID, "b", &text, true)
	f.predictions.counts[f.creator.ID] = 5

	require.NoError(t, f.pipe.HandleCompletePipeline(ctx, entity.NewCompletePipelineJob(f.creator.ID)))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateCompleted, st.State)
	require.Equal(t, 2, st.VideosAnalyzed)
	require.Equal(t, "Analyzed 2 videos, 5 predictions tracked", st.CurrentStep)
	require.Equal(t, 1, f.creators.recomputed[f.creator.ID])
}

func TestCompletePipeline_AggregateErrorFailsStatus(t *testing.T) {
	f := newFixture(t)
	f.creators.recomputeErr = errors.New("db down")
	ctx := context.Background()

	err := f.pipe.HandleCompletePipeline(ctx, entity.NewCompletePipelineJob(f.creator.ID))
	require.Error(t, err)

	st := f.currentStatus(t)
	require.Equal(t, entity.StateFailed, st.State)
	require.Contains(t, st.Error, "db down")
}

// ---- controller ----

func TestStart_InitializesStatusAndEnqueuesSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Start(ctx, f.creator.ID))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateSyncing, st.State)
	require.NotNil(t, st.StartedAt)

	syncs := f.queue.byType(entity.JobSyncVideos)
	require.Len(t, syncs, 1)
	require.Equal(t, f.creator.ChannelID, syncs[0].job.ChannelID)
	require.Equal(t, 6, syncs[0].job.MonthsBack)
	require.Equal(t, time.Duration(0), syncs[0].delay)
}

func TestStart_UnknownCreator(t *testing.T) {
	f := newFixture(t)
	err := f.pipe.Start(context.Background(), uuid.New())
	require.ErrorIs(t, err, postgresql.ErrNotFound)
}

func TestStatus_SynthesizesIdleWhenAbsent(t *testing.T) {
	f := newFixture(t)

	st, err := f.pipe.Status(context.Background(), f.creator.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, st.State)
	require.Equal(t, f.creator.ID, st.CreatorID)
}

func TestForceRestartAnalysis_SealsAndEnqueues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	f.videos.add(f.creator.ID, "good", &text, false)
	f.videos.add(f.creator.ID, "stuck", nil, false)

	require.NoError(t, f.pipe.ForceRestartAnalysis(ctx, f.creator.ID))

	for _, v := range f.videos.videos {
		require.NotNil(t, v.Transcript, "video %s left without a transcript value", v.ExternalID)
	}
	require.Len(t, f.queue.byType(entity.JobAnalyzeVideo), 1)
	require.Len(t, f.queue.byType(entity.JobCompletePipeline), 1)
	require.Equal(t, entity.StateAnalyzing, f.currentStatus(t).State)
}

// ---- recovery sweep ----

func TestRecovery_AdvancesStuckTranscriptPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// crash scenario: cached status says fetching-transcripts, queue empty
	f.videos.add(f.creator.ID, "never-fetched", nil, false)
	require.NoError(t, f.status.Set(ctx, entity.PipelineStatus{
		CreatorID: f.creator.ID,
		State:     entity.StateFetchingTranscripts,
	}))

	require.NoError(t, f.pipe.RunRecoverySweep(ctx))

	st := f.currentStatus(t)
	require.Equal(t, entity.StateAnalyzing, st.State)
	require.Len(t, f.queue.byType(entity.JobCompletePipeline), 1)
}

func TestRecovery_LeavesInFlightTranscriptPhaseAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.videos.add(f.creator.ID, "pending", nil, false)
	require.NoError(t, f.status.Set(ctx, entity.PipelineStatus{
		CreatorID: f.creator.ID,
		State:     entity.StateFetchingTranscripts,
	}))
	f.queue.pending = []entity.PipelineJob{entity.NewFetchTranscriptJob(f.creator.ID, v.ID)}

	require.NoError(t, f.pipe.RunRecoverySweep(ctx))

	stored, _ := f.videos.GetByID(ctx, v.ID)
	require.Nil(t, stored.Transcript)
	require.Empty(t, f.queue.byType(entity.JobCompletePipeline))
}

func TestRecovery_RestartsOrphanedAnalysis(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	f.videos.add(f.creator.ID, "orphan-1", &text, false)
	f.videos.add(f.creator.ID, "orphan-2", &text, false)
	// no status document: the soft state expired after the crash

	require.NoError(t, f.pipe.RunRecoverySweep(ctx))

	require.Len(t, f.queue.byType(entity.JobAnalyzeVideo), 2)
	require.Len(t, f.queue.byType(entity.JobCompletePipeline), 1)
	require.Equal(t, entity.StateAnalyzing, f.currentStatus(t).State)
}

func TestRecovery_SkipsActivelyRunningCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := "transcript"
	v := f.videos.add(f.creator.ID, "orphan", &text, false)
	require.NoError(t, f.status.Set(ctx, entity.PipelineStatus{
		CreatorID: f.creator.ID,
		State:     entity.StateAnalyzing,
	}))
	f.queue.pending = []entity.PipelineJob{entity.NewAnalyzeVideoJob(f.creator.ID, v.ID)}

	require.NoError(t, f.pipe.RunRecoverySweep(ctx))
	require.Empty(t, f.queue.enqueuedJobs)
}

// ---- phase monotonicity ----

// canonical state order; failed is terminal and reachable from anywhere
var stateOrder = map[entity.PipelineState]int{
	entity.StateIdle:                0,
	entity.StateSyncing:             1,
	entity.StateFetchingTranscripts: 2,
	entity.StateAnalyzing:           3,
	entity.StateCompleted:           4,
}

func TestFullRun_StatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.platform.videos = metas(3)
	f.platform.transcripts["ext-0"] = "transcript zero"
	f.platform.transcripts["ext-1"] = "transcript one"
	// ext-2 has no captions -> sentinel

	require.NoError(t, f.pipe.Start(ctx, f.creator.ID))

	// drive the queue by hand, single worker style
	for len(f.queue.enqueuedJobs) > 0 {
		next := f.queue.enqueuedJobs[0]
		f.queue.enqueuedJobs = f.queue.enqueuedJobs[1:]
		f.queue.pending = append([]entity.PipelineJob{next.job}, jobsOf(f.queue.enqueuedJobs)...)

		var err error
		switch next.job.Type {
		case entity.JobSyncVideos:
			err = f.pipe.HandleSyncVideos(ctx, next.job)
		case entity.JobFetchTranscript:
			err = f.pipe.HandleFetchTranscript(ctx, next.job)
		case entity.JobAnalyzeVideo:
			err = f.pipe.HandleAnalyzeVideo(ctx, next.job)
		case entity.JobCompletePipeline:
			err = f.pipe.HandleCompletePipeline(ctx, next.job)
		}
		require.NoError(t, err)
	}

	st := f.currentStatus(t)
	require.Equal(t, entity.StateCompleted, st.State)
	require.Equal(t, 3, st.TotalVideos)
	require.Equal(t, 3, st.TranscriptsFetched, "sentinel counts as fetched")
	require.Equal(t, 2, st.VideosAnalyzed, "sentinel video is never analyzed")

	prev := 0
	for _, observed := range f.status.history {
		rank, ok := stateOrder[observed.State]
		require.True(t, ok, "unexpected state %s", observed.State)
		require.GreaterOrEqual(t, rank, prev, "status regressed to %s", observed.State)
		prev = rank
	}
}

func jobsOf(es []enqueued) []entity.PipelineJob {
	out := make([]entity.PipelineJob, 0, len(es))
	for _, e := range es {
		out = append(out, e.job)
	}
	return out
}
