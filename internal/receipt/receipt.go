// Package receipt renders printable HTML receipts for orders.
package receipt

import (
	_ "embed"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-orders/internal/model"
)

//go:embed receipt.html
var page string

// Renderer formats times in a fixed location.
type Renderer struct {
	tmpl *template.Template
}

// New parses the receipt template.  It panics on a malformed template,
// which can only happen at build time.
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"when":  func(t time.Time) string { return t.In(loc).Format("2006-01-02 15:04") },
		"deref": func(p *int) int { return *p },
	}
	return &Renderer{
		tmpl: template.Must(template.New("receipt").Funcs(funcs).Parse(page)),
	}
}

// Render writes the receipt of d to w.
func (r *Renderer) Render(w io.Writer, d model.OrderDetail) error {
	return r.tmpl.Execute(w, d)
}
