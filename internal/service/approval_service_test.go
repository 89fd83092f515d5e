package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"recaudo/internal/model"
	"recaudo/internal/signer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestApprovalFlow_TwoParticipants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto")

	view, err := h.approvals.GetLinkState(ctx, links["Ana"])
	require.NoError(t, err)
	assert.Equal(t, "Ana", view.ParticipantName)
	assert.False(t, view.AlreadyApproved)
	assert.Equal(t, 2, view.ParticipantCount)

	view, err = h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{
		LinkParams: links["Ana"],
		Photo:      pngBytes,
		PhotoMime:  "image/jpeg",
		ClientIP:   "10.0.0.1",
		UserAgent:  "test",
	})
	require.NoError(t, err)
	assert.True(t, view.AlreadyApproved)
	assert.True(t, view.HasPhoto)
	assert.Equal(t, 1, view.ApprovedCount)
	assert.Equal(t, model.ActaPendingApproval, h.actaStatus(t, acta.ID))

	view, err = h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Beto"]})
	require.NoError(t, err)
	assert.False(t, view.HasPhoto)
	assert.Equal(t, 2, view.ApprovedCount)
	assert.Equal(t, string(model.ActaApproved), view.ActaStatus)
	assert.Equal(t, model.ActaApproved, h.actaStatus(t, acta.ID))

	assert.EqualValues(t, 2, h.countAudit(t, acta.ID, model.ActionApproveParticipant))
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionActaApproved))
	assert.Equal(t, 2, h.events.count(model.EventParticipantApproved))

	var rec model.ApprovalRecord
	require.NoError(t, h.db.First(&rec, "participant_id = ?", links["Ana"].ParticipantID).Error)
	assert.Equal(t, "image/png", rec.PhotoMime)
	assert.Equal(t, links["Ana"].Signature, rec.Signature)
	assert.Equal(t, "10.0.0.1", rec.ClientIP)
	require.NotNil(t, rec.ApprovedAt)
}

func TestSubmitApproval_AlreadyApprovedKeepsEvidence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto")

	_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Ana"], Photo: pngBytes})
	require.NoError(t, err)
	var first model.ApprovalRecord
	require.NoError(t, h.db.First(&first, "participant_id = ?", links["Ana"].ParticipantID).Error)
	files := countFiles(t, h.storageDir)

	view, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Ana"], Photo: pngBytes})
	assert.ErrorIs(t, err, ErrAlreadyApproved)
	require.NotNil(t, view)
	assert.True(t, view.AlreadyApproved)

	var after model.ApprovalRecord
	require.NoError(t, h.db.First(&after, "participant_id = ?", links["Ana"].ParticipantID).Error)
	assert.Equal(t, first.PhotoPath, after.PhotoPath)
	assert.True(t, first.ApprovedAt.Equal(*after.ApprovedAt))
	assert.Equal(t, files, countFiles(t, h.storageDir), "no photo written for a repeat")
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionApproveParticipant))
}

func TestSubmitApproval_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana")
	ana := links["Ana"]
	other, otherLinks := h.submittedActa(t, "Zoe")

	tests := []struct {
		name   string
		params LinkParams
		want   error
	}{
		{"empty signature", LinkParams{ActaID: ana.ActaID, ParticipantID: ana.ParticipantID}, ErrInvalidSignature},
		{"tampered signature", LinkParams{ActaID: ana.ActaID, ParticipantID: ana.ParticipantID, Signature: ana.Signature[:63] + "0"}, ErrInvalidSignature},
		{"signature of another participant", LinkParams{ActaID: ana.ActaID, ParticipantID: ana.ParticipantID, Signature: otherLinks["Zoe"].Signature}, ErrInvalidSignature},
		{"participant of another acta", LinkParams{ActaID: ana.ActaID, ParticipantID: otherLinks["Zoe"].ParticipantID, Signature: otherLinks["Zoe"].Signature}, ErrNotFound},
		{"unknown acta", LinkParams{ActaID: "2f1b7c43-54c6-4c3b-9a55-2b8f3c1e0d11", ParticipantID: ana.ParticipantID, Signature: ana.Signature}, ErrNotFound},
		{"malformed ids", LinkParams{ActaID: "x", ParticipantID: "y", Signature: ana.Signature}, ErrNotFound},
	}
	if ana.Signature[63] == '0' {
		tests[1].params.Signature = ana.Signature[:63] + "1"
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: tt.params})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, model.ActaPendingApproval, h.actaStatus(t, acta.ID))
	assert.Equal(t, model.ActaPendingApproval, h.actaStatus(t, other.ID))
	assert.EqualValues(t, 0, h.countAudit(t, acta.ID, model.ActionApproveParticipant))
}

func TestSubmitApproval_DraftIsNotOpen(t *testing.T) {
	h := newHarness(t)
	acta := h.draftActa(t, "Ana")
	pid := acta.Participants[0].ID

	params := LinkParams{
		ActaID:        acta.ID,
		ParticipantID: pid,
		Signature:     h.deps.Signer.Sign(signer.KindApproval, acta.ID, pid, ""),
	}
	_, err := h.approvals.SubmitApproval(context.Background(), SubmitApprovalRequest{LinkParams: params})
	assert.ErrorIs(t, err, ErrActaNotOpen)
	assert.Equal(t, model.ActaDraft, h.actaStatus(t, acta.ID))
}

func TestSubmitApproval_RejectsNonImagePhoto(t *testing.T) {
	h := newHarness(t)
	_, links := h.submittedActa(t, "Ana")

	_, err := h.approvals.SubmitApproval(context.Background(), SubmitApprovalRequest{
		LinkParams: links["Ana"],
		Photo:      []byte("%PDF-1.4 not a photo"),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.approvals.SubmitApproval(context.Background(), SubmitApprovalRequest{
		LinkParams: links["Ana"],
		Photo:      pngBytes,
		PhotoMime:  "application/pdf",
	})
	assert.ErrorIs(t, err, ErrValidation, "declared type must be an image")

	big := append(append([]byte{}, pngBytes...), make([]byte, 2<<20)...)
	_, err = h.approvals.SubmitApproval(context.Background(), SubmitApprovalRequest{LinkParams: links["Ana"], Photo: big})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, countFiles(t, h.storageDir))
}

func TestSubmitApproval_ConcurrentLastApprovals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto", "Caro")

	_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Ana"]})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, name := range []string{"Beto", "Caro"} {
		wg.Add(1)
		go func(p LinkParams) {
			defer wg.Done()
			_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: p, Photo: pngBytes})
			errs <- err
		}(links[name])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, model.ActaApproved, h.actaStatus(t, acta.ID))
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionActaApproved))
	// one from submitting, one from the closing approval
	assert.Equal(t, 2, h.events.count(model.EventActaStatusChanged))
}

func TestSubmitApproval_ConcurrentDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana", "Beto")

	const attempts = 4
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Ana"], Photo: pngBytes})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyApproved)
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionApproveParticipant))
	assert.Equal(t, model.ActaPendingApproval, h.actaStatus(t, acta.ID))
}
