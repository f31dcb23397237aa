package dto

// CheckInRequest 平安确认回应，yes 或 no
type CheckInRequest struct {
	Response string `json:"response"`
}
