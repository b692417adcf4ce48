package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetgate/internal/ai"
	"fleetgate/internal/events"
	"fleetgate/internal/inspection/domain"
	"fleetgate/internal/inspection/repository"
	"fleetgate/internal/storage"
	"fleetgate/platform/logger"
)

// fakeStore is an in-memory Store with the same compare-and-set semantics
// as the SQL repository: step writes are guarded by the capture token and
// the lock write by the session state.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (f *fakeStore) CreateSession(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.MissionID == session.MissionID && existing.Kind == session.Kind && !existing.Locked() {
			return repository.ErrDuplicate
		}
	}
	session.CreatedAt = time.Now()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStore) FindOpenSession(_ context.Context, missionID uuid.UUID, kind domain.Kind) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.MissionID == missionID && s.Kind == kind && !s.Locked() {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) session(id uuid.UUID) (*domain.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateState(_ context.Context, sessionID uuid.UUID, from, to domain.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(sessionID)
	if err != nil {
		return err
	}
	if s.State != from {
		return repository.ErrStale
	}
	s.State = to
	return nil
}

func (f *fakeStore) UpdateMetadata(_ context.Context, session *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(session.ID)
	if err != nil {
		return err
	}
	if s.Locked() {
		return repository.ErrStale
	}
	s.OverallCondition = session.OverallCondition
	s.FuelLevel = session.FuelLevel
	s.OdometerKm = session.OdometerKm
	s.Notes = session.Notes
	return nil
}

func (f *fakeStore) UpdateCursor(_ context.Context, sessionID uuid.UUID, cursor, highest int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(sessionID)
	if err != nil {
		return err
	}
	if s.Locked() {
		return repository.ErrStale
	}
	s.CursorIndex = cursor
	s.HighestIndex = highest
	return nil
}

func (f *fakeStore) UpdateLocation(_ context.Context, sessionID uuid.UUID, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(sessionID)
	if err != nil {
		return err
	}
	s.LocationAddress = &address
	return nil
}

func (f *fakeStore) step(sessionID uuid.UUID, stepType string) (*domain.PhotoStep, error) {
	s, err := f.session(sessionID)
	if err != nil {
		return nil, err
	}
	step := s.StepByType(stepType)
	if step == nil {
		return nil, repository.ErrNotFound
	}
	return step, nil
}

func (f *fakeStore) BeginCapture(_ context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, localRef string, takenAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, err := f.step(sessionID, stepType)
	if err != nil {
		return err
	}
	step.CaptureToken = &token
	step.LocalRef = &localRef
	step.RemoteURL = nil
	step.AIDescription = nil
	step.DescriptionApproved = false
	step.Verdict = nil
	step.TakenAt = takenAt
	return nil
}

func (f *fakeStore) tokenGuard(step *domain.PhotoStep, token uuid.UUID) error {
	if step.CaptureToken == nil || *step.CaptureToken != token {
		return repository.ErrStale
	}
	return nil
}

func (f *fakeStore) SetStepUploaded(_ context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, remoteURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, err := f.step(sessionID, stepType)
	if err != nil {
		return err
	}
	if err := f.tokenGuard(step, token); err != nil {
		return err
	}
	step.RemoteURL = &remoteURL
	return nil
}

func (f *fakeStore) ClearStepAsset(_ context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, err := f.step(sessionID, stepType)
	if err != nil {
		return err
	}
	if err := f.tokenGuard(step, token); err != nil {
		return err
	}
	step.LocalRef = nil
	step.RemoteURL = nil
	step.AIDescription = nil
	step.DescriptionApproved = false
	step.Verdict = nil
	step.TakenAt = nil
	return nil
}

func (f *fakeStore) SetStepAnalysis(_ context.Context, sessionID uuid.UUID, stepType string, token uuid.UUID, description *string, verdict *domain.DamageVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, err := f.step(sessionID, stepType)
	if err != nil {
		return err
	}
	if err := f.tokenGuard(step, token); err != nil {
		return err
	}
	step.AIDescription = description
	step.Verdict = verdict
	step.DescriptionApproved = false
	return nil
}

func (f *fakeStore) SetStepDescription(_ context.Context, sessionID uuid.UUID, stepType string, description string, approved bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	step, err := f.step(sessionID, stepType)
	if err != nil {
		return err
	}
	step.AIDescription = &description
	step.DescriptionApproved = approved
	return nil
}

func (f *fakeStore) InsertSignature(_ context.Context, sig *domain.Signature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(sig.SessionID)
	if err != nil {
		return err
	}
	if s.SignatureByRole(sig.Role) != nil {
		return nil
	}
	s.Signatures = append(s.Signatures, sig)
	return nil
}

func (f *fakeStore) SetLocked(_ context.Context, sessionID uuid.UUID, lockedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := f.session(sessionID)
	if err != nil {
		return err
	}
	if s.State != domain.StateAwaitingSignatures {
		return repository.ErrStale
	}
	s.State = domain.StateLocked
	s.LockedAt = &lockedAt
	return nil
}

func (f *fakeStore) ListByMission(_ context.Context, missionID uuid.UUID) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, s := range f.sessions {
		if s.MissionID == missionID {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeStorage implements storage.Service. A queue of scripted errors is
// consumed by successive PutObject calls; once drained, puts succeed.
type fakeStorage struct {
	mu       sync.Mutex
	putErrs  []error
	putCalls int
}

func transientFailure() error {
	return &storage.Failure{Transient: true, Err: context.DeadlineExceeded}
}

func terminalFailure() error {
	return &storage.Failure{Transient: false, Err: io.ErrUnexpectedEOF}
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, folder, fileName, _ string, _ io.Reader, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return folder + "/" + fileName, nil
}

func (f *fakeStorage) ObjectURL(bucket, fileKey string) string {
	return "https://storage.local/" + bucket + "/" + fileKey
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, bucket, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{URL: f.ObjectURL(bucket, fileKey), FileKey: fileKey}, nil
}

func (f *fakeStorage) DownloadFile(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, _, _ string) error  { return nil }
func (f *fakeStorage) EnsureBucketExists(_ context.Context, _ string) error { return nil }
func (f *fakeStorage) ValidateContentType(_ string) error                 { return nil }
func (f *fakeStorage) ValidateFileSize(_ int64) error                     { return nil }

// fakeAnalyzer implements ai.Analyzer with scripted results.
type fakeAnalyzer struct {
	description string
	descErr     error
	verdict     *ai.Verdict
	verdictErr  error
}

func (f *fakeAnalyzer) Describe(_ context.Context, _ []byte, _ string) (string, error) {
	return f.description, f.descErr
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ []byte, _ string) (*ai.Verdict, error) {
	return f.verdict, f.verdictErr
}

// recordingBus captures published events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(_ string, _ events.Handler) {}

func (b *recordingBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	storage  *fakeStorage
	analyzer *fakeAnalyzer
	bus      *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		storage:  &fakeStorage{},
		analyzer: &fakeAnalyzer{description: "clean panel", verdict: &ai.Verdict{Severity: "minor"}},
		bus:      &recordingBus{},
	}
	f.svc = New(f.store, f.storage, f.analyzer, nil, f.bus,
		domain.DefaultCatalogue(), Buckets{Photos: "inspection-photos", Signatures: "signatures"},
		logger.New("test"))
	f.svc.retryWait = time.Millisecond
	return f
}

// testJPEG returns a small valid JPEG image.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
