package model

type RegisterRequest struct {
	Email       string   `json:"email" validate:"required,email,max=255"`
	Password    string   `json:"password" validate:"required,password_bytes,password"`
	FirstName   string   `json:"firstName" validate:"required,min=1,max=50"`
	LastName    string   `json:"lastName" validate:"required,min=1,max=50"`
	Role        string   `json:"role" validate:"required,oneof=FREELANCER CLIENT"`
	HourlyRate  *float64 `json:"hourlyRate" validate:"omitempty,gt=0,lte=10000"`
	Bio         string   `json:"bio" validate:"max=2000"`
	CompanyName string   `json:"companyName" validate:"max=100"`
	Skills      []string `json:"skills" validate:"omitempty,max=30,dive,required,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,password_bytes,password"`
}
