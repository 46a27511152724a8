package server

import "robotctl/internal/domain"

// Request payloads. JSON fields are camelCase throughout the API.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CommandRequest struct {
	CommandText string `json:"commandText"`
	Robot       string `json:"robot"`
	User        string `json:"user"`
}

// Response payloads

type HealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Message string `json:"message" example:"API is healthy"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type CommandAcceptedResponse struct {
	Message   string `json:"message" example:"Command accepted"`
	CommandID int64  `json:"commandId"`
}

type CommandUpdatedResponse struct {
	Message        string         `json:"message" example:"Command updated"`
	UpdatedCommand domain.Command `json:"updatedCommand"`
}

func commandFromRequest(req CommandRequest) domain.Command {
	return domain.Command{
		CommandText: req.CommandText,
		Robot:       req.Robot,
		User:        req.User,
	}
}
