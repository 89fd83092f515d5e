// Package pdf renders approved actas as PDF documents.
package pdf

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// ParticipantLine is one row of the approvals table.
type ParticipantLine struct {
	ID         string
	FullName   string
	Position   string
	Status     string
	ApprovedAt *time.Time
	HasPhoto   bool
}

// ActaData is everything printed on the document.
type ActaData struct {
	ID           string
	Title        string
	Content      string
	Location     string
	MeetingDate  time.Time
	Status       string
	CreatorName  string
	Participants []ParticipantLine
	GeneratedAt  time.Time
}

// Digest is the SHA-256 over the canonical acta content and approvals. It is printed on every
// page so a paper copy can be checked against the system.
func Digest(d ActaData) string {
	var b strings.Builder
	b.WriteString("acta|" + d.ID + "|" + d.Title + "|" + d.MeetingDate.Format("2006-01-02") + "|" + d.Location + "\n")
	b.WriteString(d.Content + "\n")
	for _, p := range d.Participants {
		approvedAt := ""
		if p.ApprovedAt != nil {
			approvedAt = p.ApprovedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "integrante|%s|%s|%s|%s|%t\n", p.ID, p.FullName, p.Status, approvedAt, p.HasPhoto)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Renderer turns ActaData into PDF bytes.
type Renderer struct {
	Organization string
}

func NewRenderer(organization string) *Renderer {
	return &Renderer{Organization: organization}
}

// RenderActa builds the document in memory.
func (r *Renderer) RenderActa(d ActaData) ([]byte, error) {
	digest := Digest(d)

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(d.Title, true)
	doc.SetAuthor(r.Organization, true)
	doc.SetCreationDate(d.GeneratedAt)
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 25)

	doc.SetFooterFunc(func() {
		doc.SetY(-18)
		doc.SetFont("Helvetica", "I", 7)
		doc.CellFormat(0, 4, "Huella SHA-256: "+digest, "", 1, "C", false, 0, "")
		doc.CellFormat(0, 4, tr(fmt.Sprintf("Página %d", doc.PageNo())), "", 0, "C", false, 0, "")
	})

	doc.AddPage()

	if r.Organization != "" {
		doc.SetFont("Helvetica", "", 9)
		doc.CellFormat(0, 5, tr(r.Organization), "", 1, "R", false, 0, "")
	}

	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 8, tr(d.Title), "", "C", false)
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 10)
	meta := [][2]string{
		{"Acta No.", d.ID},
		{"Fecha de reunión", d.MeetingDate.Format("2006-01-02")},
		{"Lugar", d.Location},
		{"Elaborada por", d.CreatorName},
		{"Estado", d.Status},
		{"Generada", d.GeneratedAt.Format("2006-01-02 15:04")},
	}
	for _, m := range meta {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(45, 6, tr(m[0]+":"), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(0, 6, tr(m[1]), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, tr("Desarrollo"), "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 5, tr(d.Content), "", "J", false)
	doc.Ln(6)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, tr("Aprobaciones"), "", 1, "L", false, 0, "")

	widths := []float64{55, 40, 25, 35, 15}
	headers := []string{"Integrante", "Cargo", "Estado", "Fecha", "Foto"}
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(230, 230, 230)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, p := range d.Participants {
		approvedAt := "-"
		if p.ApprovedAt != nil {
			approvedAt = p.ApprovedAt.Format("2006-01-02 15:04")
		}
		photo := "No"
		if p.HasPhoto {
			photo = "Sí"
		}
		cells := []string{p.FullName, p.Position, p.Status, approvedAt, photo}
		for i, c := range cells {
			doc.CellFormat(widths[i], 6, tr(c), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}

	if doc.Err() {
		return nil, fmt.Errorf("failed to render acta pdf: %w", doc.Error())
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write acta pdf: %w", err)
	}
	return buf.Bytes(), nil
}
