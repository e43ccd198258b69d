package entity

// UserProfile is the invoicing party's own name and address, printed in the
// "Pay to" block of rendered invoices. Singleton; created on first use.
type UserProfile struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}
