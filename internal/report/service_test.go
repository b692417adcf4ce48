package report

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetgate/internal/email"
	"fleetgate/internal/events"
	"fleetgate/internal/inspection/domain"
	insprepo "fleetgate/internal/inspection/repository"
	missionrepo "fleetgate/internal/missions/repository"
	"fleetgate/internal/pdf"
	"fleetgate/internal/scheduler"
	"fleetgate/internal/storage"
	"fleetgate/platform/logger"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
	reports  map[uuid.UUID]*insprepo.Report
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[uuid.UUID]*domain.Session),
		reports:  make(map[uuid.UUID]*insprepo.Report),
	}
}

func (f *fakeSessionStore) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[id]
	if !ok {
		return nil, insprepo.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessionStore) CreateReport(_ context.Context, rep *insprepo.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.reports[rep.SessionID]; exists {
		return nil // first report wins
	}
	f.reports[rep.SessionID] = rep
	return nil
}

func (f *fakeSessionStore) GetReportBySession(_ context.Context, sessionID uuid.UUID) (*insprepo.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rep, ok := f.reports[sessionID]
	if !ok {
		return nil, insprepo.ErrNotFound
	}
	return rep, nil
}

func (f *fakeSessionStore) GetReportByToken(_ context.Context, token string) (*insprepo.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rep := range f.reports {
		if rep.PublicToken == token {
			return rep, nil
		}
	}
	return nil, insprepo.ErrNotFound
}

type fakeMissions struct {
	mission *missionrepo.Mission
}

func (f *fakeMissions) GetByID(_ context.Context, id uuid.UUID) (*missionrepo.Mission, error) {
	if f.mission == nil || f.mission.ID != id {
		return nil, missionrepo.ErrNotFound
	}
	return f.mission, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) PutObject(_ context.Context, bucket, folder, fileName, _ string, reader io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	key := folder + "/" + fileName
	f.objects[bucket+"/"+key] = data
	return key, nil
}

func (f *fakeStorage) ObjectURL(bucket, fileKey string) string {
	return "https://files.test/" + bucket + "/" + fileKey
}

func (f *fakeStorage) GenerateDownloadURL(_ context.Context, bucket, fileKey string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{
		URL:       "https://files.test/" + bucket + "/" + fileKey + "?signed=1",
		FileKey:   fileKey,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeStorage) DownloadFile(_ context.Context, bucket, fileKey string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+fileKey]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeStorage) DeleteObject(_ context.Context, bucket, fileKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+fileKey)
	return nil
}

func (f *fakeStorage) EnsureBucketExists(_ context.Context, _ string) error { return nil }
func (f *fakeStorage) ValidateContentType(_ string) error                   { return nil }
func (f *fakeStorage) ValidateFileSize(_ int64) error                       { return nil }

type fakeConverter struct {
	mu    sync.Mutex
	calls int
	html  []byte
}

func (f *fakeConverter) ConvertHTML(_ context.Context, indexHTML []byte, _ pdf.ConvertOpts) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.html = indexHTML
	return []byte("%PDF-1.4 fake"), nil
}

type sentEmail struct {
	to          string
	data        email.ReportEmailData
	attachments []email.Attachment
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeSender) SendReportEmail(_ context.Context, to string, data email.ReportEmailData, attachments ...email.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, data: data, attachments: attachments})
	return nil
}

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

type testConfig struct{}

func (testConfig) GetMinioBucketReports() string    { return "reports" }
func (testConfig) GetMinioBucketSignatures() string { return "signatures" }
func (testConfig) GetAppBaseURL() string            { return "https://app.test/" }

type fixture struct {
	svc       *Service
	store     *fakeSessionStore
	storage   *fakeStorage
	converter *fakeConverter
	sender    *fakeSender
	bus       *recordingBus
	mission   *missionrepo.Mission
	session   *domain.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mission := sampleMission()
	session := sampleSession()
	session.MissionID = mission.ID

	store := newFakeSessionStore()
	store.sessions[session.ID] = session

	storageSvc := newFakeStorage()
	converter := &fakeConverter{}
	sender := &fakeSender{}
	bus := &recordingBus{}

	svc := NewService(store, &fakeMissions{mission: mission}, storageSvc,
		converter, sender, bus, testConfig{}, logger.New("error"))

	return &fixture{
		svc: svc, store: store, storage: storageSvc, converter: converter,
		sender: sender, bus: bus, mission: mission, session: session,
	}
}

func TestGenerateStoresReportAndNotifiesClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Generate(ctx, f.session.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	rep, err := f.store.GetReportBySession(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("report not stored: %v", err)
	}
	if len(rep.PublicToken) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(rep.PublicToken))
	}
	if f.storage.puts != 1 {
		t.Errorf("pdf uploads = %d, want 1", f.storage.puts)
	}
	if f.bus.count("report.generated") != 1 {
		t.Errorf("report.generated events = %d, want 1", f.bus.count("report.generated"))
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(f.sender.sent))
	}
	msg := f.sender.sent[0]
	if msg.to != f.mission.ClientEmail {
		t.Errorf("email to = %q, want %q", msg.to, f.mission.ClientEmail)
	}
	if !strings.Contains(msg.data.ReportURL, rep.PublicToken) {
		t.Errorf("report url %q does not carry the public token", msg.data.ReportURL)
	}
	if strings.Contains(msg.data.ReportURL, "//public") {
		t.Errorf("report url %q has a doubled slash from the base url", msg.data.ReportURL)
	}
	if len(msg.data.QRCodePNG) == 0 {
		t.Error("expected a qr code in the email")
	}
	if len(msg.attachments) != 1 || !strings.HasSuffix(msg.attachments[0].FileName, ".pdf") {
		t.Errorf("expected one pdf attachment, got %+v", msg.attachments)
	}

	// the rendered html that went to the converter carries session content
	if !strings.Contains(string(f.converter.html), f.mission.VehiclePlate) {
		t.Error("converted html missing vehicle plate")
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Generate(ctx, f.session.ID); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if err := f.svc.Generate(ctx, f.session.ID); err != nil {
		t.Fatalf("second generate: %v", err)
	}

	if f.converter.calls != 1 {
		t.Errorf("conversions = %d, want 1", f.converter.calls)
	}
	if f.storage.puts != 1 {
		t.Errorf("uploads = %d, want 1", f.storage.puts)
	}
	if len(f.sender.sent) != 1 {
		t.Errorf("emails = %d, want 1", len(f.sender.sent))
	}
}

func TestGenerateRefusesUnlockedSession(t *testing.T) {
	f := newFixture(t)
	f.session.State = domain.StateAwaitingSignatures
	f.session.LockedAt = nil

	if err := f.svc.Generate(context.Background(), f.session.ID); err == nil {
		t.Fatal("expected error for unlocked session")
	}
	if f.converter.calls != 0 || f.storage.puts != 0 {
		t.Error("nothing should be rendered or stored for an unlocked session")
	}
}

func TestGenerateWithoutClientEmailSkipsDelivery(t *testing.T) {
	f := newFixture(t)
	f.mission.ClientEmail = ""

	if err := f.svc.Generate(context.Background(), f.session.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("emails = %d, want 0", len(f.sender.sent))
	}
	if _, err := f.store.GetReportBySession(context.Background(), f.session.ID); err != nil {
		t.Errorf("report should still be stored: %v", err)
	}
}

func TestResolveTokenAndDownloadURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.Generate(ctx, f.session.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}
	stored, _ := f.store.GetReportBySession(ctx, f.session.ID)

	rep, err := f.svc.ResolveToken(ctx, stored.PublicToken)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	presigned, err := f.svc.DownloadURL(ctx, rep)
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if !strings.Contains(presigned.URL, rep.FileKey) {
		t.Errorf("presigned url %q does not reference the report file", presigned.URL)
	}

	if _, err := f.svc.ResolveToken(ctx, "no-such-token"); !errors.Is(err, insprepo.ErrNotFound) {
		t.Errorf("unknown token error = %v, want ErrNotFound", err)
	}
}

type fakeScheduler struct {
	mu       sync.Mutex
	payloads []scheduler.InspectionReportPayload
}

func (f *fakeScheduler) EnqueueInspectionReport(_ context.Context, payload scheduler.InspectionReportPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestLockedEventEnqueuesGeneration(t *testing.T) {
	f := newFixture(t)
	sched := &fakeScheduler{}
	mod := NewModule(f.svc, sched, f.bus, logger.New("error"))

	locked := events.InspectionLocked{
		BaseEvent: events.NewBaseEvent(),
		SessionID: f.session.ID,
		MissionID: f.mission.ID,
		Kind:      string(f.session.Kind),
	}
	if err := mod.onInspectionLocked(context.Background(), locked); err != nil {
		t.Fatalf("handle locked event: %v", err)
	}

	if len(sched.payloads) != 1 {
		t.Fatalf("enqueued tasks = %d, want 1", len(sched.payloads))
	}
	if sched.payloads[0].SessionID != f.session.ID.String() {
		t.Errorf("payload session = %q, want %q", sched.payloads[0].SessionID, f.session.ID)
	}
	if f.converter.calls != 0 {
		t.Error("generation should be deferred to the queue, not run inline")
	}
}

func TestLockedEventGeneratesInlineWithoutQueue(t *testing.T) {
	f := newFixture(t)
	mod := NewModule(f.svc, nil, f.bus, logger.New("error"))

	locked := events.InspectionLocked{
		BaseEvent: events.NewBaseEvent(),
		SessionID: f.session.ID,
		MissionID: f.mission.ID,
		Kind:      string(f.session.Kind),
	}
	if err := mod.onInspectionLocked(context.Background(), locked); err != nil {
		t.Fatalf("handle locked event: %v", err)
	}

	if _, err := f.store.GetReportBySession(context.Background(), f.session.ID); err != nil {
		t.Errorf("report should be generated inline: %v", err)
	}
}
