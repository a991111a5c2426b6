package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type SubscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SubscribeResponse is the body returned by the subscribe endpoint. A
// "success" response never carries Error; an "error" response always does.
type SubscribeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
}

func Success(message, id string) SubscribeResponse {
	return SubscribeResponse{
		Status:  StatusSuccess,
		Message: message,
		ID:      id,
	}
}

func Failure(message string) SubscribeResponse {
	return SubscribeResponse{
		Status: StatusError,
		Error:  message,
	}
}

func (r SubscribeResponse) IsSuccess() bool {
	return r.Status == StatusSuccess
}
