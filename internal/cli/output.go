package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/domain/cart"
	"github.com/example/catering-cart/internal/session"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// Success outputs a result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if t, ok := data.(textRenderer); ok {
		return t.renderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Warn writes a diagnostic line to the error writer
func (f *OutputFormatter) Warn(format string, args ...any) {
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}

type textRenderer interface {
	renderText(w io.Writer) error
}

type cartView struct {
	Phase         string          `json:"phase"`
	Customer      string          `json:"customer,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	HasAccess     bool            `json:"hasAccess"`
	OrderID       int64           `json:"orderId,omitempty"`
	Items         []cart.LineItem `json:"items"`
	TotalItems    int             `json:"totalItems"`
	TotalPrice    float64         `json:"totalPrice"`
	Sync          string          `json:"sync"`
	LastSyncedAt  *time.Time      `json:"lastSyncedAt,omitempty"`
	LastSyncError string          `json:"lastSyncError,omitempty"`
}

func newCartView(s *session.Session) cartView {
	access := s.Access()
	v := cartView{
		Phase:        s.Phase().String(),
		Customer:     s.Customer(),
		CustomerName: access.SelectedCustomerName,
		HasAccess:    access.HasAccess,
		OrderID:      s.RemoteOrderID(),
		Items:        s.Items(),
		TotalItems:   s.TotalItems(),
		TotalPrice:   s.TotalPrice(),
		Sync:         s.SyncState().String(),
	}
	if v.Items == nil {
		v.Items = []cart.LineItem{}
	}
	if at := s.LastSyncedAt(); !at.IsZero() {
		v.LastSyncedAt = &at
	}
	if err := s.LastSyncError(); err != nil {
		v.LastSyncError = err.Error()
	}
	return v
}

func (v cartView) renderText(w io.Writer) error {
	switch {
	case v.CustomerName != "":
		fmt.Fprintf(w, "Customer: %s (%s)\n", v.CustomerName, v.Customer)
	case v.Customer != "":
		fmt.Fprintf(w, "Customer: %s\n", v.Customer)
	}
	if len(v.Items) == 0 {
		fmt.Fprintln(w, "Cart is empty")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tUNIT\tSUBTOTAL")
		for _, it := range v.Items {
			name := it.ProductName
			if it.DisplayName != "" {
				name = it.DisplayName
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%.2f\t%.2f\n", it.ProductID, name, it.Quantity, it.UnitPrice, it.Subtotal())
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Items: %d  Total: %.2f\n", v.TotalItems, v.TotalPrice)
	if v.OrderID > 0 {
		fmt.Fprintf(w, "Draft order: %d\n", v.OrderID)
	}
	_, err := fmt.Fprintf(w, "Sync: %s\n", v.Sync)
	return err
}

type customersView struct {
	Selected  string          `json:"selected,omitempty"`
	HasAccess bool            `json:"hasAccess"`
	Customers []auth.Customer `json:"customers"`
}

func (v customersView) renderText(w io.Writer) error {
	if len(v.Customers) == 0 {
		_, err := fmt.Fprintln(w, "No customers available")
		return err
	}
	for _, c := range v.Customers {
		mark := " "
		if c.ID == v.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", mark, c.ID, c.Name)
	}
	return nil
}

type messageView struct {
	Message string `json:"message"`
}

func (v messageView) renderText(w io.Writer) error {
	_, err := fmt.Fprintln(w, v.Message)
	return err
}
