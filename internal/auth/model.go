package auth

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the request body for registration
type RegisterRequest struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
}

// LoginUser is the trimmed user view returned by login
type LoginUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// RegisteredUser is the trimmed user view returned by registration
type RegisteredUser struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	RegistrationNumber string `json:"registrationNumber"`
	Role               string `json:"role"`
}

// RegisterResponse is the body of a successful registration
type RegisterResponse struct {
	Message string         `json:"message"`
	User    RegisteredUser `json:"user"`
}
