package common

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type CreatePipelineResponse struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`
}
