package api

import (
	"time"

	"residence-billing-backend/internal/billing"
	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/store"
	"residence-billing-backend/internal/sweeper"
)

const dateLayout = "2006-01-02"

// DormResponse represents the API response for a single dormitory.
type DormResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	Rooms     int64  `json:"rooms"`
	TotalBeds int64  `json:"totalBeds"`
	FreeBeds  int64  `json:"freeBeds"`
	MaxFloor  int    `json:"maxFloor"`
}

func newDormResponse(d store.DormitorySummary) DormResponse {
	return DormResponse{
		ID: d.ID, Name: d.Name, Address: d.Address,
		Rooms: d.Rooms, TotalBeds: d.TotalBeds, FreeBeds: d.FreeBeds, MaxFloor: d.MaxFloor,
	}
}

type roomTypeResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Capacity     int    `json:"capacity"`
	DailyRate    string `json:"dailyRate"`
	SemesterRate string `json:"semesterRate"`
}

type bedResponse struct {
	ID         int64  `json:"id"`
	BedNumber  int    `json:"bedNumber"`
	RoomID     int64  `json:"roomId"`
	OccupantID *int64 `json:"occupantId,omitempty"`
}

type roomResponse struct {
	ID           int64            `json:"id"`
	DormitoryID  int64            `json:"dormitoryId"`
	Number       string           `json:"number"`
	Floor        int              `json:"floor"`
	OccupantType model.Role       `json:"occupantType"`
	Quota        int              `json:"quota"`
	RoomType     roomTypeResponse `json:"roomType"`
	Beds         []bedResponse    `json:"beds"`
}

func newRoomResponse(r model.Room) roomResponse {
	beds := make([]bedResponse, len(r.Beds))
	for i, b := range r.Beds {
		beds[i] = newBedResponse(b)
	}
	return roomResponse{
		ID: r.ID, DormitoryID: r.DormitoryID, Number: r.Number, Floor: r.Floor,
		OccupantType: r.OccupantType, Quota: r.Quota,
		RoomType: roomTypeResponse{
			ID: r.RoomType.ID, Name: r.RoomType.Name, Capacity: r.RoomType.Capacity,
			DailyRate:    r.RoomType.DailyRate.StringFixed(2),
			SemesterRate: r.RoomType.SemesterRate.StringFixed(2),
		},
		Beds: beds,
	}
}

func newBedResponse(b model.Bed) bedResponse {
	return bedResponse{ID: b.ID, BedNumber: b.BedNumber, RoomID: b.RoomID, OccupantID: b.OccupantID}
}

type chargeResponse struct {
	ID              int64               `json:"id"`
	OccupantID      int64               `json:"occupantId"`
	PaymentTypeID   int64               `json:"paymentTypeId"`
	PaymentType     string              `json:"paymentType,omitempty"`
	DateFrom        string              `json:"dateFrom"`
	DateTo          string              `json:"dateTo"`
	Amount          string              `json:"amount"`
	Status          model.PaymentStatus `json:"status"`
	ProofRef        string              `json:"proofRef,omitempty"`
	ProofUploadedAt *time.Time          `json:"proofUploadedAt,omitempty"`
	ProcessedBy     *int64              `json:"processedBy,omitempty"`
}

func newChargeResponse(p model.Payment) chargeResponse {
	return chargeResponse{
		ID: p.ID, OccupantID: p.UserID, PaymentTypeID: p.PaymentTypeID, PaymentType: p.PaymentType.Name,
		DateFrom: p.DateFrom.Format(dateLayout), DateTo: p.DateTo.Format(dateLayout),
		Amount: p.Amount.StringFixed(2), Status: p.Status,
		ProofRef: p.ProofRef, ProofUploadedAt: p.ProofUploadedAt, ProcessedBy: p.ProcessedBy,
	}
}

type semesterRecordResponse struct {
	ID                  int64                `json:"id"`
	OccupantID          int64                `json:"occupantId"`
	Semester            string               `json:"semester"`
	Amount              string               `json:"amount"`
	DueDate             string               `json:"dueDate"`
	PaidDate            *time.Time           `json:"paidDate,omitempty"`
	PaymentStatus       model.ApprovalStatus `json:"paymentStatus"`
	DormitoryStatus     model.ApprovalStatus `json:"dormitoryStatus"`
	PaymentApprovedBy   *int64               `json:"paymentApprovedBy,omitempty"`
	DormitoryApprovedBy *int64               `json:"dormitoryApprovedBy,omitempty"`
	PaymentNote         string               `json:"paymentNote,omitempty"`
	DormitoryNote       string               `json:"dormitoryNote,omitempty"`
}

func newSemesterRecordResponse(r model.SemesterPayment) semesterRecordResponse {
	return semesterRecordResponse{
		ID: r.ID, OccupantID: r.UserID, Semester: r.Semester,
		Amount: r.Amount.StringFixed(2), DueDate: r.DueDate.Format(dateLayout), PaidDate: r.PaidDate,
		PaymentStatus: r.PaymentStatus, DormitoryStatus: r.DormitoryStatus,
		PaymentApprovedBy: r.PaymentApprovedBy, DormitoryApprovedBy: r.DormitoryApprovedBy,
		PaymentNote: r.PaymentNote, DormitoryNote: r.DormitoryNote,
	}
}

type billingReportResponse struct {
	Trigger  billing.Trigger   `json:"trigger"`
	Created  []chargeResponse  `json:"created"`
	Skipped  int               `json:"skipped"`
	Failures []billing.Failure `json:"failures"`
}

func newBillingReportResponse(r *billing.Report) *billingReportResponse {
	if r == nil {
		return nil
	}
	created := make([]chargeResponse, len(r.Created))
	for i, p := range r.Created {
		created[i] = newChargeResponse(p)
	}
	failures := r.Failures
	if failures == nil {
		failures = []billing.Failure{}
	}
	return &billingReportResponse{Trigger: r.Trigger, Created: created, Skipped: r.Skipped, Failures: failures}
}

type bedAssignmentResponse struct {
	Bed         bedResponse            `json:"bed"`
	PreviousBed *bedResponse           `json:"previousBed,omitempty"`
	Unchanged   bool                   `json:"unchanged"`
	Trigger     billing.Trigger        `json:"trigger,omitempty"`
	Billing     *billingReportResponse `json:"billing,omitempty"`
}

type sweepReportResponse struct {
	Scanned int                `json:"scanned"`
	Demoted []demotionResponse `json:"demoted"`
	Failed  int                `json:"failed"`
}

type demotionResponse struct {
	OccupantID  int64  `json:"occupantId"`
	ChargeID    int64  `json:"chargeId"`
	PaymentType string `json:"paymentType"`
	DateFrom    string `json:"dateFrom"`
}

func newSweepReportResponse(r *sweeper.Report) sweepReportResponse {
	demoted := make([]demotionResponse, len(r.Demoted))
	for i, d := range r.Demoted {
		demoted[i] = demotionResponse{
			OccupantID: d.OccupantID, ChargeID: d.ChargeID, PaymentType: d.PaymentType,
			DateFrom: d.DateFrom.Format(dateLayout),
		}
	}
	return sweepReportResponse{Scanned: r.Scanned, Demoted: demoted, Failed: r.Failed}
}
