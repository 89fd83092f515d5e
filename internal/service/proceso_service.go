package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"recaudo/internal/model"
	"recaudo/internal/repository"
	"recaudo/internal/semaforo"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateProcesoRequest struct {
	Radicado         string `json:"radicado" binding:"required"`
	TaxpayerName     string `json:"taxpayer_name" binding:"required"`
	TaxpayerNIT      string `json:"taxpayer_nit"`
	Tax              string `json:"tax"`
	Amount           string `json:"amount"`
	PrescriptionDate string `json:"prescription_date"` // YYYY-MM-DD, optional
}

type ProcesoResponse struct {
	ID               string          `json:"id"`
	Radicado         string          `json:"radicado"`
	TaxpayerName     string          `json:"taxpayer_name"`
	TaxpayerNIT      string          `json:"taxpayer_nit"`
	Tax              string          `json:"tax"`
	Amount           string          `json:"amount"`
	PrescriptionDate *string         `json:"prescription_date"`
	Semaforo         semaforo.Status `json:"semaforo"`
}

type LevelSummary struct {
	Level       semaforo.Level `json:"level"`
	Label       string         `json:"label"`
	Count       int            `json:"count"`
	TotalAmount string         `json:"total_amount"`
}

type SemaforoSummary struct {
	ReferenceDate string         `json:"reference_date"`
	Total         int            `json:"total"`
	Levels        []LevelSummary `json:"levels"`
}

// --- Interface ---

// ProcesoService backs the collection-process dashboard.
type ProcesoService interface {
	CreateProceso(ctx context.Context, req CreateProcesoRequest, caller Caller) (*ProcesoResponse, error)
	// ListPrioritized classifies every proceso against reference and orders red first,
	// then by fewest days remaining. An empty level keeps all of them.
	ListPrioritized(ctx context.Context, reference time.Time, level string) ([]ProcesoResponse, error)
	Summary(ctx context.Context, reference time.Time) (*SemaforoSummary, error)
}

type procesoService struct {
	tx    repository.TransactionManager
	repo  repository.ProcesoRepository
	audit repository.AuditRepository
	cache *cache.Cache
}

func NewProcesoService(tx repository.TransactionManager, repo repository.ProcesoRepository, audit repository.AuditRepository) ProcesoService {
	return &procesoService{
		tx:    tx,
		repo:  repo,
		audit: audit,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (s *procesoService) CreateProceso(ctx context.Context, req CreateProcesoRequest, caller Caller) (*ProcesoResponse, error) {
	radicado := strings.TrimSpace(req.Radicado)
	if radicado == "" || strings.TrimSpace(req.TaxpayerName) == "" {
		return nil, validationError("radicado and taxpayer_name are required")
	}
	if _, err := s.repo.GetByRadicado(ctx, radicado); err == nil {
		return nil, validationError("radicado %s already exists", radicado)
	}

	amount := decimal.Zero
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || parsed.IsNegative() {
			return nil, validationError("amount must be a non-negative number")
		}
		amount = parsed
	}

	p := &model.Proceso{
		Radicado:     radicado,
		TaxpayerName: strings.TrimSpace(req.TaxpayerName),
		TaxpayerNIT:  strings.TrimSpace(req.TaxpayerNIT),
		Tax:          strings.TrimSpace(req.Tax),
		Amount:       amount,
		CreatedBy:    &caller.UserID,
	}
	if req.PrescriptionDate != "" {
		d, err := time.Parse("2006-01-02", req.PrescriptionDate)
		if err != nil {
			return nil, validationError("prescription_date must be YYYY-MM-DD")
		}
		p.PrescriptionDate = &d
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, p); err != nil {
			return fmt.Errorf("failed to create proceso: %w", err)
		}
		return writeAudit(txCtx, s.audit, newAuditEntry(&caller.UserID, "", model.ActionCreateProceso, p.ID.String(), p.Radicado, map[string]interface{}{
			"amount": p.Amount.String(),
		}))
	})
	if err != nil {
		return nil, err
	}

	s.cache.Flush()
	resp := toProcesoResponse(*p, time.Now())
	return &resp, nil
}

func (s *procesoService) ListPrioritized(ctx context.Context, reference time.Time, level string) ([]ProcesoResponse, error) {
	filter := semaforo.Level(level)
	switch filter {
	case "", semaforo.LevelNone, semaforo.LevelGreen, semaforo.LevelYellow, semaforo.LevelRed:
	default:
		return nil, validationError("unknown level %q", level)
	}

	procesos, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ProcesoResponse, 0, len(procesos))
	for _, p := range procesos {
		resp := toProcesoResponse(p, reference)
		if level != "" && resp.Semaforo.Level != filter {
			continue
		}
		out = append(out, resp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := semaforo.Rank(out[i].Semaforo.Level), semaforo.Rank(out[j].Semaforo.Level)
		if ri != rj {
			return ri < rj
		}
		di, dj := out[i].Semaforo.DaysRemaining, out[j].Semaforo.DaysRemaining
		if di != nil && dj != nil && *di != *dj {
			return *di < *dj
		}
		return out[i].Radicado < out[j].Radicado
	})
	return out, nil
}

// Summary is cached per reference day and flushed whenever a proceso is created.
func (s *procesoService) Summary(ctx context.Context, reference time.Time) (*SemaforoSummary, error) {
	key := "summary:" + reference.Format("2006-01-02")
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*SemaforoSummary), nil
	}

	procesos, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	levels := []semaforo.Level{semaforo.LevelRed, semaforo.LevelYellow, semaforo.LevelGreen, semaforo.LevelNone}
	counts := make(map[semaforo.Level]int, len(levels))
	totals := make(map[semaforo.Level]decimal.Decimal, len(levels))
	for _, p := range procesos {
		lvl := semaforo.Classify(storedDate(p.PrescriptionDate), reference)
		counts[lvl]++
		totals[lvl] = totals[lvl].Add(p.Amount)
	}

	summary := &SemaforoSummary{ReferenceDate: reference.Format("2006-01-02"), Total: len(procesos)}
	for _, lvl := range levels {
		summary.Levels = append(summary.Levels, LevelSummary{
			Level:       lvl,
			Label:       semaforo.Label(lvl),
			Count:       counts[lvl],
			TotalAmount: totals[lvl].StringFixed(2),
		})
	}

	s.cache.Set(key, summary, cache.DefaultExpiration)
	return summary, nil
}

// storedDate reads a DATE column back as local midnight of the same calendar day.
// Dates are written as UTC midnight, and drivers disagree on the zone they return.
func storedDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.UTC().Date()
	local := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &local
}

func toProcesoResponse(p model.Proceso, reference time.Time) ProcesoResponse {
	deadline := storedDate(p.PrescriptionDate)
	resp := ProcesoResponse{
		ID:           p.ID.String(),
		Radicado:     p.Radicado,
		TaxpayerName: p.TaxpayerName,
		TaxpayerNIT:  p.TaxpayerNIT,
		Tax:          p.Tax,
		Amount:       p.Amount.StringFixed(2),
		Semaforo:     semaforo.Evaluate(deadline, reference),
	}
	if deadline != nil {
		s := deadline.Format("2006-01-02")
		resp.PrescriptionDate = &s
	}
	return resp
}
