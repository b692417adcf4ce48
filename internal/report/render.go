package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"fleetgate/internal/inspection/domain"
	missionrepo "fleetgate/internal/missions/repository"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html"))

type reportData struct {
	Mission     *missionrepo.Mission
	Session     *domain.Session
	KindLabel   string
	LockedAt    time.Time
	GeneratedAt time.Time
	Steps       []stepView
	Signatures  []signatureView
}

type stepView struct {
	Label    string
	Required bool
	PhotoURL string
	// Description is empty when analysis was unavailable and nobody wrote
	// one manually; DescriptionPending flags that case for the template.
	Description        string
	DescriptionPending bool
	Verdict            *domain.DamageVerdict
}

type signatureView struct {
	RoleLabel  string
	SignerName string
	ImageURL   string
	SignedAt   time.Time
}

func kindLabel(kind domain.Kind) string {
	switch kind {
	case domain.KindDeparture:
		return "Departure inspection"
	case domain.KindArrival:
		return "Arrival inspection"
	default:
		return string(kind)
	}
}

func roleLabel(role domain.SignerRole) string {
	switch role {
	case domain.RoleOperator:
		return "Operator"
	case domain.RoleCounterparty:
		return "Counterparty"
	default:
		return string(role)
	}
}

func buildReportData(mission *missionrepo.Mission, sess *domain.Session, signatureURL func(imageKey string) string, now time.Time) reportData {
	lockedAt := now
	if sess.LockedAt != nil {
		lockedAt = *sess.LockedAt
	}

	data := reportData{
		Mission:     mission,
		Session:     sess,
		KindLabel:   kindLabel(sess.Kind),
		LockedAt:    lockedAt,
		GeneratedAt: now,
	}

	for _, step := range sess.Steps {
		if !step.Complete() {
			continue
		}
		view := stepView{
			Label:    step.Label,
			Required: step.Required,
			PhotoURL: *step.RemoteURL,
			Verdict:  step.Verdict,
		}
		switch {
		case step.AnalysisUnavailable():
			view.DescriptionPending = true
		case step.AIDescription != nil:
			view.Description = *step.AIDescription
		}
		data.Steps = append(data.Steps, view)
	}

	for _, sig := range sess.Signatures {
		data.Signatures = append(data.Signatures, signatureView{
			RoleLabel:  roleLabel(sig.Role),
			SignerName: sig.SignerName,
			ImageURL:   signatureURL(sig.ImageKey),
			SignedAt:   sig.SignedAt,
		})
	}

	return data
}

func renderReportHTML(data reportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report template: %w", err)
	}
	return buf.Bytes(), nil
}
