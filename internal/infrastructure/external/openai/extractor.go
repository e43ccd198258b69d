// Package openai implements the ingest.Extractor contract with GPT vision
// models. Receipts and invoice documents are sent as images; PDFs are
// rasterized page by page first.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dmorneau/ledgerbook/internal/ingest"
)

// First pages carry the header and items; later pages are mostly receipt
// scans the expense list already covers.
const maxPDFPages = 2

// Extractor calls the vision API to read receipts and invoice documents.
type Extractor struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

var _ ingest.Extractor = (*Extractor)(nil)

// NewExtractor creates a vision extractor.
func NewExtractor(apiKey, model string, temperature float32, logger *zap.Logger) *Extractor {
	return &Extractor{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// receiptWire mirrors the JSON the model is asked to produce for receipts.
type receiptWire struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
}

// invoiceDocWire mirrors the JSON for invoice documents.
type invoiceDocWire struct {
	CompanyName     string `json:"company_name"`
	CompanyAddress  string `json:"company_address"`
	InvoiceNumber   int    `json:"invoice_number"`
	Date            string `json:"date"`
	Items           []struct {
		StartDate       string  `json:"start_date"`
		EndDate         string  `json:"end_date"`
		Description     string  `json:"description"`
		Quantity        float64 `json:"quantity"`
		RateDescription string  `json:"rate_description"`
		Amount          float64 `json:"amount"`
		Approver        string  `json:"approver"`
	} `json:"items"`
	PerDiemQuantity int           `json:"per_diem_quantity"`
	Expenses        []receiptWire `json:"expenses"`
	Notes           string        `json:"notes"`
}

// ExtractReceipt reads one receipt file into an expense candidate.
func (e *Extractor) ExtractReceipt(ctx context.Context, data []byte, mimeType string, allowedCategories []string) (*ingest.ReceiptExtraction, error) {
	images, err := e.toImages(data, mimeType)
	if err != nil {
		return nil, err
	}

	content, err := e.visionCompletion(ctx, receiptSystemPrompt, buildReceiptPrompt(allowedCategories), images)
	if err != nil {
		return nil, err
	}

	var wire receiptWire
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		e.logger.Error("Failed to parse receipt response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	e.logger.Info("Receipt extracted",
		zap.String("description", wire.Description),
		zap.Float64("amount", wire.Amount),
		zap.String("category", wire.Category))

	return &ingest.ReceiptExtraction{ExtractedExpense: toExpenseCandidate(wire)}, nil
}

// ExtractInvoiceDocument reads an invoice document into an invoice
// candidate with its embedded expenses.
func (e *Extractor) ExtractInvoiceDocument(ctx context.Context, data []byte, mimeType string) (*ingest.InvoiceDocExtraction, error) {
	images, err := e.toImages(data, mimeType)
	if err != nil {
		return nil, err
	}

	content, err := e.visionCompletion(ctx, invoiceDocSystemPrompt, buildInvoiceDocPrompt(), images)
	if err != nil {
		return nil, err
	}

	var wire invoiceDocWire
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		e.logger.Error("Failed to parse invoice document response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &ingest.InvoiceDocExtraction{
		CompanyName:     wire.CompanyName,
		CompanyAddress:  wire.CompanyAddress,
		InvoiceNumber:   wire.InvoiceNumber,
		Date:            wire.Date,
		PerDiemQuantity: wire.PerDiemQuantity,
		Notes:           wire.Notes,
	}
	for _, it := range wire.Items {
		out.Items = append(out.Items, ingest.ExtractedInvoiceItem{
			StartDate:       it.StartDate,
			EndDate:         it.EndDate,
			Description:     it.Description,
			Quantity:        it.Quantity,
			RateDescription: it.RateDescription,
			Amount:          decimal.NewFromFloat(it.Amount),
			Approver:        it.Approver,
		})
	}
	for _, exp := range wire.Expenses {
		out.Expenses = append(out.Expenses, toExpenseCandidate(exp))
	}

	e.logger.Info("Invoice document extracted",
		zap.String("company", out.CompanyName),
		zap.Int("items", len(out.Items)),
		zap.Int("expenses", len(out.Expenses)))

	return out, nil
}

// toImages turns the input file into one or more JPEG/PNG page images.
func (e *Extractor) toImages(data []byte, mimeType string) ([][]byte, error) {
	if mimeType == "application/pdf" {
		return e.pdfToImages(data, maxPDFPages)
	}
	return [][]byte{data}, nil
}

// visionCompletion sends the prompt plus page images and returns the raw
// JSON content of the first choice.
func (e *Extractor) visionCompletion(ctx context.Context, systemPrompt, userPrompt string, images [][]byte) (string, error) {
	contentParts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: userPrompt,
	}}
	for _, img := range images {
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(img)),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   4096,
		Temperature: e.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: contentParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return "", fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from vision API")
	}

	return resp.Choices[0].Message.Content, nil
}

func toExpenseCandidate(wire receiptWire) ingest.ExtractedExpense {
	return ingest.ExtractedExpense{
		Date:        wire.Date,
		Description: wire.Description,
		Amount:      decimal.NewFromFloat(wire.Amount),
		Currency:    wire.Currency,
		Category:    wire.Category,
	}
}
