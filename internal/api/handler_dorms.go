package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"residence-billing-backend/internal/model"
	"residence-billing-backend/internal/store"
)

// GetDorms handles GET /api/dormitories.
func (h *Handler) GetDorms(c *gin.Context) {
	dorms, err := h.svc.ListDormitories(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	responses := make([]DormResponse, 0, len(dorms))
	for _, d := range dorms {
		responses = append(responses, newDormResponse(d))
	}
	c.JSON(http.StatusOK, responses)
}

type createDormRequest struct {
	Name    string `json:"name" binding:"required,max=128"`
	Address string `json:"address" binding:"max=256"`
}

// CreateDorm handles POST /api/dormitories.
func (h *Handler) CreateDorm(c *gin.Context) {
	var req createDormRequest
	if !bindJSON(c, &req) || !h.requireApprover(c) {
		return
	}

	dorm := model.Dormitory{Name: req.Name, Address: req.Address}
	if err := h.svc.CreateDormitory(c.Request.Context(), &dorm); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, DormResponse{ID: dorm.ID, Name: dorm.Name, Address: dorm.Address})
}

// GetAvailableBeds handles GET /api/dormitories/{dorm_id}/available-beds.
// occupant_type is required; room_type_id and floor narrow the result.
func (h *Handler) GetAvailableBeds(c *gin.Context) {
	dormID, ok := pathID(c, "dorm_id")
	if !ok {
		return
	}

	occupantType := model.Role(c.Query("occupant_type"))
	if !occupantType.IsOccupant() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "occupant_type must be student or guest"})
		return
	}

	var filter store.BedFilter
	if raw := c.Query("room_type_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid room_type_id"})
			return
		}
		filter.RoomTypeID = id
	}
	if raw := c.Query("floor"); raw != "" {
		floor, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid floor"})
			return
		}
		filter.Floor = &floor
	}

	rooms, err := h.svc.ListAvailableBeds(c.Request.Context(), dormID, occupantType, filter)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	response := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		response = append(response, newRoomResponse(r))
	}
	c.JSON(http.StatusOK, response)
}

type createRoomRequest struct {
	RoomTypeID   int64      `json:"roomTypeId" binding:"required"`
	Number       string     `json:"number" binding:"required,max=32"`
	Floor        int        `json:"floor"`
	OccupantType model.Role `json:"occupantType" binding:"required,oneof=student guest"`
	Quota        *int       `json:"quota" binding:"omitempty,gte=0"`
}

// CreateRoom handles POST /api/dormitories/{dorm_id}/rooms. One bed is
// created per unit of the room type's capacity; an omitted quota opens all of them.
func (h *Handler) CreateRoom(c *gin.Context) {
	dormID, ok := pathID(c, "dorm_id")
	if !ok {
		return
	}
	var req createRoomRequest
	if !bindJSON(c, &req) || !h.requireApprover(c) {
		return
	}

	room := model.Room{
		DormitoryID: dormID, RoomTypeID: req.RoomTypeID, Number: req.Number,
		Floor: req.Floor, OccupantType: req.OccupantType,
	}
	if err := h.svc.CreateRoom(c.Request.Context(), &room, req.Quota); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRoomResponse(room))
}

type setQuotaRequest struct {
	Quota *int `json:"quota" binding:"required"`
}

// SetRoomQuota handles PUT /api/rooms/{room_id}/quota.
func (h *Handler) SetRoomQuota(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	var req setQuotaRequest
	if !bindJSON(c, &req) || !h.requireApprover(c) {
		return
	}

	if err := h.svc.SetRoomQuota(c.Request.Context(), roomID, *req.Quota); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "quota": *req.Quota})
}

type createPaymentTypeRequest struct {
	Name              string          `json:"name" binding:"required"`
	Frequency         string          `json:"frequency" binding:"required"`
	CalculationMethod string          `json:"calculationMethod" binding:"required"`
	FixedAmount       decimal.Decimal `json:"fixedAmount"`
	TargetRole        model.Role      `json:"targetRole" binding:"required"`
	TriggerEvent      string          `json:"triggerEvent" binding:"required"`
}

// CreatePaymentType handles POST /api/payment-types.
func (h *Handler) CreatePaymentType(c *gin.Context) {
	var req createPaymentTypeRequest
	if !bindJSON(c, &req) || !h.requireApprover(c) {
		return
	}

	pt := model.PaymentType{
		Name: req.Name, Frequency: req.Frequency, CalculationMethod: req.CalculationMethod,
		FixedAmount: req.FixedAmount, TargetRole: req.TargetRole, TriggerEvent: req.TriggerEvent,
	}
	if err := h.svc.DefinePaymentType(c.Request.Context(), &pt); err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id": pt.ID, "name": pt.Name, "frequency": pt.Frequency, "calculationMethod": pt.CalculationMethod,
		"fixedAmount": pt.FixedAmount.StringFixed(2), "targetRole": pt.TargetRole, "triggerEvent": pt.TriggerEvent,
	})
}
