package request

// SignInRequest is the request body for anonymous sign-in
type SignInRequest struct {
	DisplayName string `json:"display_name"`
}

// RegisterRequest is the request body for registering an identity
type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateSessionRequest is the request body for publishing a session
type CreateSessionRequest struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity,omitempty"`
	IsPrivate bool   `json:"is_private"`
	HostAddr  string `json:"host_addr"`
}

// JoinByCodeRequest is the request body for joining with a join code
type JoinByCodeRequest struct {
	Code string `json:"code"`
}
