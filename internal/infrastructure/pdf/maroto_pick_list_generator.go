// Package pdf implementa la hoja de picking imprimible de un consumidor (orden de trabajo
// u orden de traslado).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: HOJA DE PICKING + consumidor  │  Fecha de emisión   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: LP | Ubicación | Lote | Vence | Reservado | Pendiente│
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: líneas / pendiente por recoger                    │
//	│  FOOTER: QR con la referencia del consumidor                │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/lp-engine/internal/application/allocation"
	"github.com/jhoicas/lp-engine/internal/domain/entity"
)

var _ allocation.PickListGenerator = (*MarotoPickListGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// MarotoPickListGenerator implementa allocation.PickListGenerator usando Maroto v2.
type MarotoPickListGenerator struct{}

// NewMarotoPickListGenerator construye el generador.
func NewMarotoPickListGenerator() *MarotoPickListGenerator { return &MarotoPickListGenerator{} }

// GeneratePickList genera el PDF y devuelve sus bytes.
func (g *MarotoPickListGenerator) GeneratePickList(_ context.Context, doc allocation.PickListDocument) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Hoja de picking "+doc.Consumer.String(), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(doc.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc.Lines))

	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow(doc))

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar hoja de picking: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func consumerLabel(c entity.ConsumerRef) string {
	if c.Kind() == entity.ConsumerTransferOrder {
		return "Orden de traslado"
	}
	return "Orden de trabajo"
}

func headerRow(doc allocation.PickListDocument) core.Row {
	return row.New(18).Add(
		col.New(8).Add(
			text.New("HOJA DE PICKING", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(consumerLabel(doc.Consumer)+": "+doc.Consumer.ID(), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(4).Add(
			text.New("Emitida", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(doc.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 9, Align: align.Right, Top: 7,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("LP", 3, align.Left),
		h("Ubicación", 2, align.Left),
		h("Lote", 2, align.Left),
		h("Vence", 1, align.Center),
		h("Reservado", 2, align.Right),
		h("Pendiente", 2, align.Right),
	)
}

// tableDetailRows una fila por reserva activa.
func tableDetailRows(lines []allocation.PickListLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	for _, l := range lines {
		lpNumber, location, batch, expiry, uom := l.Reservation.LicensePlateID, "—", "—", "—", ""
		if lp := l.LicensePlate; lp != nil {
			lpNumber = nonEmpty(lp.LPNumber, lp.ID)
			location = nonEmpty(lp.LocationID, "—")
			batch = nonEmpty(lp.BatchNumber, "—")
			if lp.ExpiryDate != nil {
				expiry = lp.ExpiryDate.Format("02/01/2006")
			}
			if lp.UOM != "" {
				uom = " " + lp.UOM
			}
		}
		result = append(result, row.New(7).Add(
			cell(lpNumber, 3, align.Left),
			cell(location, 2, align.Left),
			cell(batch, 2, align.Left),
			cell(expiry, 1, align.Center),
			cell(l.Reservation.ReservedQty.String()+uom, 2, align.Right),
			cell(l.Reservation.RemainingQty().String()+uom, 2, align.Right),
		))
	}
	return result
}

func totalsRow(lines []allocation.PickListLine) core.Row {
	pending := decimal.Zero
	for _, l := range lines {
		pending = pending.Add(l.Reservation.RemainingQty())
	}
	return row.New(12).Add(
		col.New(6),
		col.New(6).Add(
			text.New(fmt.Sprintf("Líneas: %d", len(lines)), props.Text{
				Size: 9, Align: align.Right, Right: 1, Top: 1,
			}),
			text.New("Pendiente por recoger: "+pending.String(), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 6,
			}),
		),
	)
}

// footerRow QR con la referencia del consumidor para escanear en el piso.
func footerRow(doc allocation.PickListDocument) core.Row {
	return row.New(40).Add(
		col.New(3).Add(code.NewQr(doc.Consumer.String(), props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Escanee el código al iniciar y al cerrar el picking.", props.Text{
				Size: 8, Top: 4, Left: 3, Color: colorGray,
			}),
			text.New("Recoja en el orden listado.", props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 12, Left: 3, Color: colorPrimary,
			}),
		),
	)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
