package ledger

// MoveType is the document type of a journal entry.
type MoveType string

const (
	TypeEntry      MoveType = "entry"
	TypeOutInvoice MoveType = "out_invoice"
	TypeOutRefund  MoveType = "out_refund"
	TypeInInvoice  MoveType = "in_invoice"
	TypeInRefund   MoveType = "in_refund"
	TypeOutReceipt MoveType = "out_receipt"
	TypeInReceipt  MoveType = "in_receipt"
)

// AllMoveTypes lists every document type.
var AllMoveTypes = []MoveType{
	TypeEntry, TypeOutInvoice, TypeOutRefund, TypeInInvoice, TypeInRefund, TypeOutReceipt, TypeInReceipt,
}

type typeInfo struct {
	// productSign is the sign of product line balances: -1 books revenue as credit
	productSign int
	// paymentSign is the sign of the receivable/payable residual
	paymentSign int
	refund      MoveType
	inbound     bool
	isReceipt   bool
	isRefund    bool
}

var typeTable = map[MoveType]typeInfo{
	TypeEntry:      {productSign: 0, paymentSign: 0, refund: TypeEntry},
	TypeOutInvoice: {productSign: -1, paymentSign: 1, refund: TypeOutRefund, inbound: true},
	TypeOutRefund:  {productSign: 1, paymentSign: -1, refund: TypeOutInvoice, isRefund: true},
	TypeInInvoice:  {productSign: 1, paymentSign: -1, refund: TypeInRefund},
	TypeInRefund:   {productSign: -1, paymentSign: 1, refund: TypeInInvoice, inbound: true, isRefund: true},
	TypeOutReceipt: {productSign: -1, paymentSign: 1, refund: TypeOutRefund, inbound: true, isReceipt: true},
	TypeInReceipt:  {productSign: 1, paymentSign: -1, refund: TypeInRefund, isReceipt: true},
}

// Valid reports whether t is a known document type.
func (t MoveType) Valid() bool {
	_, ok := typeTable[t]
	return ok
}

// ProductSign is +1 when product lines are debits, -1 when they are credits,
// 0 for miscellaneous entries whose lines are taken as entered.
func (t MoveType) ProductSign() int {
	return typeTable[t].productSign
}

// PaymentSign is the sign of the open receivable or payable balance.
func (t MoveType) PaymentSign() int {
	return typeTable[t].paymentSign
}

// RefundType returns the type of the counter document.
func (t MoveType) RefundType() MoveType {
	return typeTable[t].refund
}

// IsInvoice reports whether the type is an invoice, credit note, or optionally a receipt.
func (t MoveType) IsInvoice(includeReceipts bool) bool {
	info, ok := typeTable[t]
	if !ok || t == TypeEntry {
		return false
	}
	return includeReceipts || !info.isReceipt
}

// IsInbound reports whether money flows in when the document is settled.
func (t MoveType) IsInbound() bool {
	return typeTable[t].inbound
}

// IsRefund reports whether the type is a credit note.
func (t MoveType) IsRefund() bool {
	return typeTable[t].isRefund
}

// IsSale reports whether the type belongs to the customer side.
func (t MoveType) IsSale() bool {
	return t == TypeOutInvoice || t == TypeOutRefund || t == TypeOutReceipt
}
