package channelstate

import "fmt"

// ErrUnexpectedMessage is a protocol validation error: the peer sent a
// message this Phase does not accept.
type ErrUnexpectedMessage struct {
	Phase   Phase
	Message string
}

func (e *ErrUnexpectedMessage) Error() string {
	return fmt.Sprintf("unexpected message %s in phase %s", e.Message, e.Phase)
}

// ErrIllegalCommand is a local precondition failure: the host issued a
// command this Phase cannot service.
type ErrIllegalCommand struct {
	Phase Phase
}

func (e *ErrIllegalCommand) Error() string {
	return fmt.Sprintf("command not legal in phase %s", e.Phase)
}

// ErrHtlcAmountOutOfInvoiceRange is a protocol validation error: an
// incoming HTLC's amount falls outside [invoiceAmount, 2*invoiceAmount].
type ErrHtlcAmountOutOfInvoiceRange struct {
	InvoiceAmount, HtlcAmount uint64
}

func (e *ErrHtlcAmountOutOfInvoiceRange) Error() string {
	return fmt.Sprintf("htlc amount %d msat outside [%d, %d] for invoice",
		e.HtlcAmount, e.InvoiceAmount, 2*e.InvoiceAmount)
}

// ErrNoMatchingInvoice is raised when ProcessAdd can't resolve the
// invoice behind a received HTLC's payment hash.
type ErrNoMatchingInvoice struct {
	PaymentHash [32]byte
}

func (e *ErrNoMatchingInvoice) Error() string {
	return fmt.Sprintf("no invoice matches payment hash %x", e.PaymentHash)
}
