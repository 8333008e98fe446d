package services

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/xevcp/backend/internal/config"
	"github.com/xevcp/backend/internal/models"
	"github.com/xevcp/backend/pkg/logger"
)

const (
	StatusSettled = "ACSC" // AcceptedSettlementCompleted
	StatusPending = "PDNG"

	currencyVND = "VND"
)

// ISO20022Service exports reconciled bank transfers as ISO 20022 messages for
// the accounting side.
type ISO20022Service struct {
	bookings BookingStore
	bank     config.BankConfig
	now      func() time.Time
}

func NewISO20022Service(bookings BookingStore, bank config.BankConfig) *ISO20022Service {
	return &ISO20022Service{
		bookings: bookings,
		bank:     bank,
		now:      time.Now,
	}
}

// PaymentStatusReport returns a pacs.002 status report for a booking's payment
// @Summary Payment status report
// @Description ISO 20022 pacs.002 report: ACSC once the transfer is reconciled, PDNG before
// @Tags iso20022
// @Produce xml
// @Security BearerAuth
// @Param bookingCode path string true "Booking code"
// @Success 200 {string} string "pacs.002.001.08 document"
// @Failure 404 {object} ErrorResponse
// @Router /admin/payments/{bookingCode}/status-report [get]
func (iso *ISO20022Service) PaymentStatusReport(w http.ResponseWriter, r *http.Request) {
	b, ok := iso.booking(w, r)
	if !ok {
		return
	}

	doc, err := iso.CreatePacs002(b)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}
	iso.writeXML(w, r, doc)
}

// CreditTransfer returns the reconciled transfer as a pacs.008 message
// @Summary Credit transfer export
// @Description ISO 20022 pacs.008 view of the customer's bank transfer for a paid booking
// @Tags iso20022
// @Produce xml
// @Security BearerAuth
// @Param bookingCode path string true "Booking code"
// @Success 200 {string} string "pacs.008.001.08 document"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /admin/payments/{bookingCode}/credit-transfer [get]
func (iso *ISO20022Service) CreditTransfer(w http.ResponseWriter, r *http.Request) {
	b, ok := iso.booking(w, r)
	if !ok {
		return
	}
	if b.Payment == nil || b.Payment.Status != models.PaymentCompleted {
		SendErrorResponse(w, "Booking has no completed payment", http.StatusBadRequest, nil)
		return
	}

	doc, err := iso.CreatePacs008(b)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}
	iso.writeXML(w, r, doc)
}

func (iso *ISO20022Service) booking(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	return findBooking(w, r, iso.bookings, chi.URLParam(r, "bookingCode"))
}

func (iso *ISO20022Service) writeXML(w http.ResponseWriter, r *http.Request, doc any) {
	xmlData, err := iso.ConvertToXML(doc)
	if err != nil {
		logger.FromContext(r.Context()).Error("ISO 20022 export failed", "error", err)
		SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xmlData))
}

// transactionRef is the bank reference of the payment, or the booking code
// when nothing has been received yet.
func transactionRef(b *models.Booking) string {
	if b.Payment != nil && b.Payment.TransactionID != nil && *b.Payment.TransactionID != "" {
		return *b.Payment.TransactionID
	}
	return b.BookingCode
}

// CreatePacs002 creates a pacs.002 payment status report
func (iso *ISO20022Service) CreatePacs002(b *models.Booking) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := iso.now()

	status := StatusPending
	if b.Payment != nil && b.Payment.Status == models.PaymentCompleted {
		status = StatusSettled
	}
	txRef := transactionRef(b)

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(txRef)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(b.BookingCode)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(txRef)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0],
			},
		},
	}

	return doc, nil
}

// CreatePacs008 creates a pacs.008 message for the customer's transfer
func (iso *ISO20022Service) CreatePacs008(b *models.Booking) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if b.Payment == nil {
		return nil, fmt.Errorf("booking %s has no payment", b.BookingCode)
	}

	msgId := uuid.New().String()
	creDtTm := iso.now()
	settlementDate := creDtTm
	if b.Payment.PaidAt != nil {
		settlementDate = *b.Payment.PaidAt
	}
	amount := float64(b.Payment.Amount)
	txRef := transactionRef(b)

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currencyVND),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(txRef)}[0],
					EndToEndId: common.Max35Text(b.BookingCode),
					TxId:       &[]common.Max35Text{common.Max35Text(txRef)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currencyVND),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(b.CustomerName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(iso.bank.BankID),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(iso.bank.AccountName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
