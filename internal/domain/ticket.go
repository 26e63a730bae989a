package domain

// TicketAccess is the relationship chain the chat access policy needs,
// resolved from ticket -> receipt -> dispatch -> vendor -> owning user.
// Optional links are nil when the chain stops early.
type TicketAccess struct {
	TicketID          string
	Title             string
	CreatorID         string
	AssigneeID        *string
	ReceiptID         *string
	ReceiptVerifierID *string
	VendorUserID      *string
}

// IsCreator reports whether userID created the ticket.
func (t *TicketAccess) IsCreator(userID string) bool {
	return t != nil && t.CreatorID != "" && t.CreatorID == userID
}

// IsAssignee reports whether userID is the current assignee.
func (t *TicketAccess) IsAssignee(userID string) bool {
	return t != nil && t.AssigneeID != nil && *t.AssigneeID == userID
}

// IsVendor reports whether userID owns the vendor behind the linked dispatch.
func (t *TicketAccess) IsVendor(userID string) bool {
	return t != nil && t.VendorUserID != nil && *t.VendorUserID == userID
}

// IsReceiptVerifier reports whether userID verified the linked receipt.
func (t *TicketAccess) IsReceiptVerifier(userID string) bool {
	return t != nil && t.ReceiptVerifierID != nil && *t.ReceiptVerifierID == userID
}
