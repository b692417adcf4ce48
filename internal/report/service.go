// Package report turns locked inspection sessions into shareable PDF
// reports: it renders the session into HTML, converts it through Gotenberg,
// stores the PDF, and mails the client a link plus QR code.
package report

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"fleetgate/internal/email"
	"fleetgate/internal/events"
	"fleetgate/internal/inspection/domain"
	insprepo "fleetgate/internal/inspection/repository"
	missionrepo "fleetgate/internal/missions/repository"
	"fleetgate/internal/pdf"
	"fleetgate/internal/storage"
	"fleetgate/platform/logger"
)

// SessionStore is the slice of the inspection repository the generator needs.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	CreateReport(ctx context.Context, report *insprepo.Report) error
	GetReportBySession(ctx context.Context, sessionID uuid.UUID) (*insprepo.Report, error)
	GetReportByToken(ctx context.Context, token string) (*insprepo.Report, error)
}

// MissionStore resolves the mission an inspection belongs to.
type MissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*missionrepo.Mission, error)
}

// Converter renders HTML into PDF bytes.
type Converter interface {
	ConvertHTML(ctx context.Context, indexHTML []byte, opts pdf.ConvertOpts) ([]byte, error)
}

// Config provides the report settings.
type Config interface {
	GetMinioBucketReports() string
	GetMinioBucketSignatures() string
	GetAppBaseURL() string
}

type Service struct {
	sessions  SessionStore
	missions  MissionStore
	storage   storage.Service
	converter Converter
	sender    email.Sender
	bus       events.Bus
	cfg       Config
	log       *logger.Logger
}

func NewService(
	sessions SessionStore,
	missions MissionStore,
	storageSvc storage.Service,
	converter Converter,
	sender email.Sender,
	bus events.Bus,
	cfg Config,
	log *logger.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		missions:  missions,
		storage:   storageSvc,
		converter: converter,
		sender:    sender,
		bus:       bus,
		cfg:       cfg,
		log:       log,
	}
}

// Generate builds and stores the PDF report for a locked session. It is safe
// to run more than once: the first stored report for a session wins and later
// runs return without side effects.
func (s *Service) Generate(ctx context.Context, sessionID uuid.UUID) error {
	if existing, err := s.sessions.GetReportBySession(ctx, sessionID); err == nil {
		s.log.Info("report already generated", "sessionId", sessionID, "reportId", existing.ID)
		return nil
	} else if !errors.Is(err, insprepo.ErrNotFound) {
		return fmt.Errorf("check existing report: %w", err)
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !sess.Locked() {
		return fmt.Errorf("session %s is not locked", sessionID)
	}

	mission, err := s.missions.GetByID(ctx, sess.MissionID)
	if err != nil {
		return fmt.Errorf("load mission: %w", err)
	}

	signaturesBucket := s.cfg.GetMinioBucketSignatures()
	data := buildReportData(mission, sess, func(imageKey string) string {
		return s.storage.ObjectURL(signaturesBucket, imageKey)
	}, time.Now())

	html, err := renderReportHTML(data)
	if err != nil {
		return err
	}

	pdfBytes, err := s.converter.ConvertHTML(ctx, html, pdf.ReportOpts())
	if err != nil {
		return fmt.Errorf("convert report to pdf: %w", err)
	}

	reportsBucket := s.cfg.GetMinioBucketReports()
	fileName := fmt.Sprintf("inspection-%s-%s.pdf", sess.Kind, sessionID)
	fileKey, err := s.storage.PutObject(ctx, reportsBucket, "reports", fileName,
		"application/pdf", bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return fmt.Errorf("store report pdf: %w", err)
	}

	token, err := generatePublicToken()
	if err != nil {
		return err
	}

	if err := s.sessions.CreateReport(ctx, &insprepo.Report{
		ID:          uuid.New(),
		SessionID:   sessionID,
		FileKey:     fileKey,
		PublicToken: token,
		GeneratedAt: time.Now(),
	}); err != nil {
		return err
	}

	// Re-read so a concurrent generation race still yields the stored row.
	stored, err := s.sessions.GetReportBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read stored report: %w", err)
	}

	s.bus.Publish(ctx, events.ReportGenerated{
		BaseEvent:   events.NewBaseEvent(),
		SessionID:   sessionID,
		FileKey:     stored.FileKey,
		PublicToken: stored.PublicToken,
	})

	s.deliverReport(ctx, mission, sess, stored, pdfBytes)

	s.log.Info("inspection report generated",
		"sessionId", sessionID, "missionId", mission.ID, "fileKey", stored.FileKey)
	return nil
}

// PublicReportURL builds the shareable link for a report token.
func (s *Service) PublicReportURL(token string) string {
	return strings.TrimRight(s.cfg.GetAppBaseURL(), "/") + "/public/reports/" + token
}

// ResolveToken returns the report for a public token.
func (s *Service) ResolveToken(ctx context.Context, token string) (*insprepo.Report, error) {
	return s.sessions.GetReportByToken(ctx, token)
}

// DownloadURL creates a presigned URL for the report PDF.
func (s *Service) DownloadURL(ctx context.Context, rep *insprepo.Report) (*storage.PresignedURL, error) {
	return s.storage.GenerateDownloadURL(ctx, s.cfg.GetMinioBucketReports(), rep.FileKey)
}

// deliverReport mails the client. Delivery is best-effort: the report exists
// and is reachable by link whether or not the email goes out.
func (s *Service) deliverReport(ctx context.Context, mission *missionrepo.Mission, sess *domain.Session, rep *insprepo.Report, pdfBytes []byte) {
	if mission.ClientEmail == "" {
		return
	}

	reportURL := s.PublicReportURL(rep.PublicToken)

	qrPNG, err := qrcode.Encode(reportURL, qrcode.Medium, 256)
	if err != nil {
		s.log.Error("failed to encode report qr code", "error", err)
		qrPNG = nil
	}

	vehicleLabel := strings.TrimSpace(mission.VehicleBrand + " " + mission.VehicleModel)
	if mission.VehiclePlate != "" {
		vehicleLabel += " (" + mission.VehiclePlate + ")"
	}

	err = s.sender.SendReportEmail(ctx, mission.ClientEmail, email.ReportEmailData{
		ClientName:       mission.ClientName,
		MissionReference: mission.Reference,
		VehicleLabel:     vehicleLabel,
		Kind:             kindLabel(sess.Kind),
		ReportURL:        reportURL,
		QRCodePNG:        qrPNG,
	}, email.Attachment{
		FileName: fmt.Sprintf("inspection-report-%s.pdf", mission.Reference),
		Content:  pdfBytes,
	})
	if err != nil {
		s.log.Error("failed to send report email",
			"sessionId", sess.ID, "to", mission.ClientEmail, "error", err)
	}
}

func generatePublicToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
