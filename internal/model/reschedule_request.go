package model

import "time"

type RescheduleInitiator string

const (
	InitiatorAdmin    RescheduleInitiator = "admin"    // Админ предлагает три альтернативы
	InitiatorAttorney RescheduleInitiator = "attorney" // Адвокат предлагает один слот
)

// Request status constants, shared with access-style negotiations
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
	RequestStatusClosed   = "closed" // Кейс ушёл из переговоров иначе: одобрен, отклонён, отменён
)

// RescheduleRequest holds one round of slot negotiation for a case
type RescheduleRequest struct {
	ID               int64               `json:"id"`
	CaseID           int64               `json:"case_id"`
	Initiator        RescheduleInitiator `json:"initiator"`
	InitiatedBy      int64               `json:"initiated_by"`
	OriginalSlot     Slot                `json:"original_slot"`
	AlternateSlots   []Slot              `json:"alternate_slots,omitempty"` // admin flavor
	ProposedSlot     *Slot               `json:"proposed_slot,omitempty"`   // attorney flavor
	SelectedSlot     *Slot               `json:"selected_slot,omitempty"`
	Status           string              `json:"status"`
	Reason           string              `json:"reason"`
	AttorneyComments string              `json:"attorney_comments"`
	AdminComments    string              `json:"admin_comments"`
	AttorneyResponse string              `json:"attorney_response"`
	ResolvedBy       *int64              `json:"resolved_by"`
	CreatedAt        time.Time           `json:"created_at"`
	ResolvedAt       *time.Time          `json:"resolved_at"`
}

// IsPending checks if request is pending
func (r *RescheduleRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Offers checks if slot is one of the admin-offered alternates
func (r *RescheduleRequest) Offers(slot Slot) bool {
	for _, s := range r.AlternateSlots {
		if s == slot {
			return true
		}
	}
	return false
}
