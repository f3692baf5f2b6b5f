package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already in use")
	ErrRegNumTaken  = errors.New("registration number is already in use")
	ErrLastAdmin    = errors.New("cannot remove the last admin")
	ErrInvalidInput = errors.New("invalid input")
)
