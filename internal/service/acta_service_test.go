package service

import (
	"context"
	"strings"
	"testing"

	"recaudo/internal/model"
	"recaudo/internal/signer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateActa_SeedsPendingRecords(t *testing.T) {
	h := newHarness(t)
	acta := h.draftActa(t, "Ana", "Beto")

	assert.Equal(t, string(model.ActaDraft), acta.Status)
	assert.Equal(t, "2024-05-30", acta.MeetingDate)
	require.Len(t, acta.Participants, 2)
	assert.Equal(t, 1, acta.Participants[0].Ordinal)
	assert.Equal(t, 2, acta.Participants[1].Ordinal)
	for _, p := range acta.Participants {
		assert.Equal(t, string(model.ApprovalPending), p.ApprovalStatus)
		assert.False(t, p.HasPhoto)
	}

	var records int64
	require.NoError(t, h.db.Model(&model.ApprovalRecord{}).Where("acta_id = ?", acta.ID).Count(&records).Error)
	assert.EqualValues(t, 2, records)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionCreateActa))
}

func TestCreateActa_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateActaRequest
	}{
		{"blank title", CreateActaRequest{Title: "  ", MeetingDate: "2024-05-30"}},
		{"bad date", CreateActaRequest{Title: "X", MeetingDate: "30/05/2024"}},
		{"bad proceso", CreateActaRequest{Title: "X", MeetingDate: "2024-05-30", ProcesoID: "nope"}},
		{"nameless participant", CreateActaRequest{Title: "X", MeetingDate: "2024-05-30", Participants: []ParticipantInput{{FullName: " "}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.actas.CreateActa(ctx, tt.req, callerOf(h.creator))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	var n int64
	require.NoError(t, h.db.Model(&model.Acta{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAddParticipant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta := h.draftActa(t, "Ana")

	p, err := h.actas.AddParticipant(ctx, acta.ID, ParticipantInput{FullName: "Beto"}, callerOf(h.creator))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Ordinal)
	assert.Equal(t, string(model.ApprovalPending), p.ApprovalStatus)

	_, err = h.actas.AddParticipant(ctx, acta.ID, ParticipantInput{FullName: "Caro"}, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.actas.SubmitForApproval(ctx, acta.ID, callerOf(h.creator))
	require.NoError(t, err)
	_, err = h.actas.AddParticipant(ctx, acta.ID, ParticipantInput{FullName: "Caro"}, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitForApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	empty := h.draftActa(t)
	_, err := h.actas.SubmitForApproval(ctx, empty.ID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, model.ActaDraft, h.actaStatus(t, empty.ID))

	acta := h.draftActa(t, "Ana", "Beto")
	_, err = h.actas.SubmitForApproval(ctx, acta.ID, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := h.actas.SubmitForApproval(ctx, acta.ID, callerOf(h.creator))
	require.NoError(t, err)
	assert.Equal(t, string(model.ActaPendingApproval), res.Acta.Status)
	assert.NotNil(t, res.Acta.SubmittedAt)
	require.Len(t, res.Links, 2)
	for _, l := range res.Links {
		assert.True(t, strings.HasPrefix(l.ApprovalURL, testBaseURL+"/public/actas/aprobar?"))
		p := linkParams(t, l.ApprovalURL)
		assert.Equal(t, acta.ID, p.ActaID)
		assert.Equal(t, l.ParticipantID, p.ParticipantID)
		assert.True(t, h.deps.Signer.Verify(signer.KindApproval, p.ActaID, p.ParticipantID, "", p.Signature))
	}
	assert.Equal(t, 1, h.events.count(model.EventActaStatusChanged))

	_, err = h.actas.SubmitForApproval(ctx, acta.ID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionSubmitActa))
}

func TestGetLinks_Deterministic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.draftActa(t, "Ana")
	_, err := h.actas.GetLinks(ctx, draft.ID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	acta, links := h.submittedActa(t, "Ana")
	again, err := h.actas.GetLinks(ctx, acta.ID, callerOf(h.admin))
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, links["Ana"], linkParams(t, again[0].ApprovalURL))
}

func TestGetActa_Authorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta := h.draftActa(t, "Ana")

	_, err := h.actas.GetActa(ctx, acta.ID, callerOf(h.creator))
	assert.NoError(t, err)
	_, err = h.actas.GetActa(ctx, acta.ID, callerOf(h.admin))
	assert.NoError(t, err)
	_, err = h.actas.GetActa(ctx, acta.ID, callerOf(h.other))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.actas.GetActa(ctx, "not-a-uuid", callerOf(h.admin))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.actas.GetActa(ctx, "2f1b7c43-54c6-4c3b-9a55-2b8f3c1e0d11", callerOf(h.admin))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActas_ScopesToOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.draftActa(t, "Ana")
	h.draftActa(t, "Beto")
	_, err := h.actas.CreateActa(ctx, CreateActaRequest{Title: "Ajena", MeetingDate: "2024-05-01"}, callerOf(h.other))
	require.NoError(t, err)

	mine, total, err := h.actas.ListActas(ctx, ActaListFilter{}, callerOf(h.creator))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)

	all, total, err := h.actas.ListActas(ctx, ActaListFilter{}, callerOf(h.admin))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	_, _, err = h.actas.ListActas(ctx, ActaListFilter{Status: "archived"}, callerOf(h.admin))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListActas_DefaultPageSize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < defaultPageSize+1; i++ {
		h.draftActa(t)
	}

	page, total, err := h.actas.ListActas(ctx, ActaListFilter{}, callerOf(h.creator))
	require.NoError(t, err)
	assert.EqualValues(t, defaultPageSize+1, total)
	assert.Len(t, page, defaultPageSize)

	rest, _, err := h.actas.ListActas(ctx, ActaListFilter{Page: 2}, callerOf(h.creator))
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestMarkSent_RequiresApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acta, links := h.submittedActa(t, "Ana")

	_, err := h.actas.MarkSent(ctx, acta.ID, callerOf(h.creator))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.approvals.SubmitApproval(ctx, SubmitApprovalRequest{LinkParams: links["Ana"]})
	require.NoError(t, err)

	sent, err := h.actas.MarkSent(ctx, acta.ID, callerOf(h.creator))
	require.NoError(t, err)
	assert.Equal(t, string(model.ActaSent), sent.Status)
	assert.NotNil(t, sent.SentAt)
	assert.EqualValues(t, 1, h.countAudit(t, acta.ID, model.ActionActaSent))
}
