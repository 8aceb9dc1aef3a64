package dto

import "time"

type WebhookResponse struct {
	Success    bool      `json:"success"`
	MessageID  string    `json:"messageId"`
	DBID       int64     `json:"dbId"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func Error(msg string) ErrorResponse {
	return ErrorResponse{Success: false, Error: msg}
}
