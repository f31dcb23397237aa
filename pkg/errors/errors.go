package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// Is 让 errors.Is 按错误码比较，包装后的 Definition 也能识别
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	return ok && t.Code == d.Code
}

// 通用错误。
var (
	InvalidRequest    = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	ValidationError   = Definition{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	Unauthorized      = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	Forbidden         = Definition{Code: "FORBIDDEN", Message: "Forbidden"}
	NotFound          = Definition{Code: "NOT_FOUND", Message: "Resource not found"}
	RateLimitExceeded = Definition{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded"}
	InternalError     = Definition{Code: "INTERNAL_ERROR", Message: "Internal error"}
)

// 行程模块错误。
var (
	JourneyNotFound      = Definition{Code: "JOURNEY_NOT_FOUND", Message: "Journey not found"}
	JourneyNotActive     = Definition{Code: "JOURNEY_NOT_ACTIVE", Message: "Journey is not active"}
	ContactsRequired     = Definition{Code: "CONTACTS_REQUIRED", Message: "Select at least one contact"}
	ContactNotFound      = Definition{Code: "CONTACT_NOT_FOUND", Message: "Contact not found"}
	ConfirmationRequired = Definition{Code: "CONFIRMATION_REQUIRED", Message: "Explicit confirmation required"}
	CheckInIntervalRange = Definition{Code: "CHECKIN_INTERVAL_INVALID", Message: "Check-in interval must be between 1 and 60 minutes"}
	CheckInResponseBad   = Definition{Code: "CHECKIN_RESPONSE_INVALID", Message: "Check-in response must be yes or no"}
)

// 定位与路线错误。
var (
	InvalidCoordinates       = Definition{Code: "INVALID_COORDINATES", Message: "Invalid coordinates"}
	LocationPermissionDenied = Definition{Code: "LOCATION_PERMISSION_DENIED", Message: "Location permission denied"}
	AddressNotFound          = Definition{Code: "ADDRESS_NOT_FOUND", Message: "Address could not be located"}
	RouteUnavailable         = Definition{Code: "ROUTE_UNAVAILABLE", Message: "Route service unavailable"}
	RealtimeUnavailable      = Definition{Code: "REALTIME_UNAVAILABLE", Message: "Live updates are temporarily unavailable"}
)

// SkipMessageError 消费端遇到它直接 ack，不再重试
type SkipMessageError struct {
	Reason string
}

func (e SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:           InvalidRequest,
	ValidationError.Code:          ValidationError,
	Unauthorized.Code:             Unauthorized,
	Forbidden.Code:                Forbidden,
	NotFound.Code:                 NotFound,
	RateLimitExceeded.Code:        RateLimitExceeded,
	InternalError.Code:            InternalError,
	JourneyNotFound.Code:          JourneyNotFound,
	JourneyNotActive.Code:         JourneyNotActive,
	ContactsRequired.Code:         ContactsRequired,
	ContactNotFound.Code:          ContactNotFound,
	ConfirmationRequired.Code:     ConfirmationRequired,
	CheckInIntervalRange.Code:     CheckInIntervalRange,
	CheckInResponseBad.Code:       CheckInResponseBad,
	InvalidCoordinates.Code:       InvalidCoordinates,
	LocationPermissionDenied.Code: LocationPermissionDenied,
	AddressNotFound.Code:          AddressNotFound,
	RouteUnavailable.Code:         RouteUnavailable,
	RealtimeUnavailable.Code:      RealtimeUnavailable,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
