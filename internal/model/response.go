package model

import "go-freelance/pkg/apierror"

type APIResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Code    string                `json:"code,omitempty"`
	Data    any                   `json:"data,omitempty"`
	Errors  []apierror.FieldError `json:"errors,omitempty"`
}
