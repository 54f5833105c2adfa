package bot

import (
	"context"
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/pulse/internal/service/billing"
)

// Requester performs raw Bot API calls the library has no config type for.
type Requester interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// InvoiceLinker creates Stars invoice links through createInvoiceLink.
type InvoiceLinker struct {
	api Requester
}

func NewInvoiceLinker(api Requester) *InvoiceLinker {
	return &InvoiceLinker{api: api}
}

func (l *InvoiceLinker) CreateInvoiceLink(_ context.Context, inv billing.Invoice) (string, error) {
	params := tgbotapi.Params{
		"title":       inv.Title,
		"description": inv.Description,
		"payload":     inv.Payload,
		"currency":    inv.Currency,
	}
	// Stars invoices carry no provider token.
	params["provider_token"] = ""
	if err := params.AddInterface("prices", []tgbotapi.LabeledPrice{{Label: inv.Title, Amount: inv.Amount}}); err != nil {
		return "", err
	}

	resp, err := l.api.MakeRequest("createInvoiceLink", params)
	if err != nil {
		return "", fmt.Errorf("createInvoiceLink: %w", err)
	}
	var link string
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("createInvoiceLink result: %w", err)
	}
	return link, nil
}
