package service

import (
	"context"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recaudo/internal/model"
	"recaudo/internal/pdf"
	"recaudo/internal/repository"
	"recaudo/internal/signer"
	"recaudo/internal/storage"
	"recaudo/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBaseURL = "https://actas.example.test"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ActaEvent
}

func (p *recordingPublisher) PublishActaEvent(e model.ActaEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	db         *gorm.DB
	deps       ActaDeps
	storageDir string
	events     *recordingPublisher

	actas     ActaService
	approvals ApprovalService
	documents DocumentService
	audit     AuditService

	admin   *model.User
	creator *model.User
	other   *model.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	storageDir := filepath.Join(t.TempDir(), "blobs")
	blobs, err := storage.NewLocalStore(storageDir)
	require.NoError(t, err)
	sig, err := signer.New("test-link-secret")
	require.NoError(t, err)

	events := &recordingPublisher{}
	deps := ActaDeps{
		Tx:             repository.NewTransactionManager(db),
		Actas:          repository.NewActaRepository(db),
		Approvals:      repository.NewApprovalRepository(db),
		Documents:      repository.NewDocumentRepository(db),
		Audit:          repository.NewAuditRepository(db),
		Blobs:          blobs,
		Signer:         sig,
		Renderer:       pdf.NewRenderer("Oficina de Recaudo"),
		Events:         events,
		PublicBaseURL:  testBaseURL,
		MaxUploadBytes: 1 << 20,
		Clock:          func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
	}

	return &harness{
		db:         db,
		deps:       deps,
		storageDir: storageDir,
		events:     events,
		actas:      NewActaService(deps),
		approvals:  NewApprovalService(deps),
		documents:  NewDocumentService(deps),
		audit:      NewAuditService(deps.Audit, deps.Actas),
		admin:      testutil.CreateUser(t, db, "admin", model.RoleAdmin),
		creator:    testutil.CreateUser(t, db, "creator", model.RoleStaff),
		other:      testutil.CreateUser(t, db, "other", model.RoleStaff),
	}
}

func callerOf(u *model.User) Caller {
	return Caller{UserID: u.ID, Role: u.Role}
}

// draftActa creates an acta owned by h.creator with the named participants.
func (h *harness) draftActa(t *testing.T, names ...string) *ActaResponse {
	t.Helper()
	req := CreateActaRequest{Title: "Comité de cartera", Content: "Orden del día", MeetingDate: "2024-05-30", Location: "Sala 1"}
	for _, n := range names {
		req.Participants = append(req.Participants, ParticipantInput{FullName: n, Email: n + "@example.test"})
	}
	acta, err := h.actas.CreateActa(context.Background(), req, callerOf(h.creator))
	require.NoError(t, err)
	return acta
}

// submittedActa creates and submits an acta, returning the participant links keyed by name.
func (h *harness) submittedActa(t *testing.T, names ...string) (*ActaResponse, map[string]LinkParams) {
	t.Helper()
	acta := h.draftActa(t, names...)
	res, err := h.actas.SubmitForApproval(context.Background(), acta.ID, callerOf(h.creator))
	require.NoError(t, err)

	links := make(map[string]LinkParams, len(res.Links))
	for _, l := range res.Links {
		links[l.FullName] = linkParams(t, l.ApprovalURL)
	}
	return &res.Acta, links
}

func linkParams(t *testing.T, raw string) LinkParams {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	return LinkParams{ActaID: q.Get("acta"), ParticipantID: q.Get("integrante"), Signature: q.Get("firma")}
}

func (h *harness) actaStatus(t *testing.T, id string) model.ActaStatus {
	t.Helper()
	var a model.Acta
	require.NoError(t, h.db.First(&a, "id = ?", id).Error)
	return a.Status
}

func (h *harness) countAudit(t *testing.T, entityID, action string) int64 {
	t.Helper()
	n, err := h.deps.Audit.CountByAction(context.Background(), entityID, action)
	require.NoError(t, err)
	return n
}

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
