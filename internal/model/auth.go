package model

// LoginRequest is the body of POST /Users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token string `json:"token"`
}

// RegisterRequest is the body of POST /Users/register.
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	Message string `json:"message"`
}

// MinPasswordLength is the shortest password the register form accepts.
const MinPasswordLength = 7

// Registration carries the register form values, including the
// confirmation field that is never sent to the API.
type Registration struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate runs the checks that must pass before any request is issued.
func (r Registration) Validate() error {
	switch {
	case r.FullName == "":
		return FieldError{Field: "fullName", Message: "Full name is required."}
	case r.Email == "":
		return FieldError{Field: "email", Message: "Email is required."}
	case len(r.Password) < MinPasswordLength:
		return FieldError{Field: "password", Message: "Password must be at least 7 characters."}
	case r.Password != r.ConfirmPassword:
		return FieldError{Field: "confirmPassword", Message: "Passwords do not match."}
	}
	return nil
}

// Request returns the API payload for this registration.
func (r Registration) Request() RegisterRequest {
	return RegisterRequest{FullName: r.FullName, Email: r.Email, Password: r.Password}
}
