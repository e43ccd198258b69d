package openai

import (
	"fmt"
	"strings"
)

const receiptSystemPrompt = "You are an expert at reading purchase receipts. " +
	"You read dates, amounts and merchant names with perfect accuracy. " +
	"Always respond with valid JSON."

const invoiceDocSystemPrompt = "You are an expert at reading freelance contractor invoices. " +
	"You read billing parties, line items, day rates and per-diem counts with perfect accuracy. " +
	"Always respond with valid JSON."

// buildReceiptPrompt constrains the category choice to the caller's set.
func buildReceiptPrompt(allowedCategories []string) string {
	categories := strings.Join(allowedCategories, ", ")
	if categories == "" {
		categories = "Misc"
	}

	return fmt.Sprintf(`Examine this purchase receipt and extract the expense it represents.

Return a JSON object with this exact structure:
{
  "date": "YYYY-MM-DD",
  "description": "string",
  "amount": number,
  "currency": "3-letter code, e.g. CAD or USD",
  "category": "string"
}

IMPORTANT:
- "category" MUST be one of: %s. Pick the closest match.
- "description" is the merchant name plus what was bought, short.
- "amount" is the final total paid, as a number without currency symbols.
- If the currency is not visible, use "CAD".
- Extract EXACTLY what you see. Do not guess or make up values.
- If a field is not visible or unclear, use empty string "" or 0.`, categories)
}

// buildInvoiceDocPrompt asks for a full invoice document: header, items,
// per-diem count and embedded receipts.
func buildInvoiceDocPrompt() string {
	return `Examine this contractor invoice document and extract ALL information.

Return a JSON object with this exact structure:
{
  "company_name": "string, the company being billed",
  "company_address": "string",
  "invoice_number": number,
  "date": "YYYY-MM-DD, the invoice date",
  "items": [{
    "start_date": "YYYY-MM-DD",
    "end_date": "YYYY-MM-DD or empty for single days",
    "description": "string",
    "quantity": number,
    "rate_description": "string, how the rate is labelled, e.g. 'Day rate' or 'Hourly'",
    "amount": number,
    "approver": "string, who approved the work, if listed"
  }],
  "per_diem_quantity": number,
  "expenses": [{
    "date": "YYYY-MM-DD",
    "description": "string",
    "amount": number,
    "currency": "3-letter code",
    "category": "string"
  }],
  "notes": "string"
}

IMPORTANT:
- "items" are the billed work lines; "expenses" are reimbursable receipts listed on the invoice.
- "per_diem_quantity" is the total number of per-diem days claimed, 0 if none.
- For amounts, use numbers without currency symbols.
- Extract EXACTLY what you see. Do not guess or make up values.
- If a field is not visible or unclear, use empty string "" or 0.`
}
